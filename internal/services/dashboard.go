package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"logitrack/internal/aggregate"
	"logitrack/internal/models"
	"logitrack/internal/repository"
	"logitrack/pkg/cache"
)

var kpiRouteStatuses = []models.RouteStatus{
	models.RouteStatusPlanned,
	models.RouteStatusInProgress,
	models.RouteStatusDelayed,
}

// DashboardKPIs is refreshed every 30 seconds while observed.
func (s *Service) DashboardKPIs(ctx context.Context) cache.Result[aggregate.DashboardKPIs] {
	return cache.Query(ctx, s.cache, cache.K(QueryDashboardKPIs), s.fetchKPIs, kpiOptions)
}

// fetchKPIs loads every input of the KPI reducer in parallel. Any failed read
// fails the whole computation.
func (s *Service) fetchKPIs(ctx context.Context) (aggregate.DashboardKPIs, error) {
	var (
		in       = aggregate.KPIInput{OnTimeDefault: s.onTimeDefault}
		midnight = s.midnight()
		window   = s.now().AddDate(0, 0, -aggregate.FuelWindowDays)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Vehicles, err = s.repos.Vehicles.FindAll(ctx, repository.VehicleFilter{})
		return err
	})
	g.Go(func() (err error) {
		in.Drivers, err = s.repos.Drivers.FindAll(ctx, repository.DriverFilter{})
		return err
	})
	g.Go(func() (err error) {
		in.Routes, err = s.repos.Routes.FindAll(ctx, repository.RouteFilter{Status: kpiRouteStatuses})
		return err
	})
	g.Go(func() (err error) {
		in.CompletedRoutes, err = s.repos.Routes.FindCompleted(ctx, repository.OnTimeSample)
		return err
	})
	g.Go(func() (err error) {
		in.AlertsToday, err = s.repos.Alerts.FindSince(ctx, midnight)
		return err
	})
	g.Go(func() (err error) {
		in.TelemetryToday, err = s.repos.Telemetry.Since(ctx, midnight)
		return err
	})
	g.Go(func() (err error) {
		in.FuelWindow, err = s.repos.Fuel.FindSince(ctx, window)
		return err
	})
	g.Go(func() error {
		n, err := s.repos.Safety.CountEventsSince(ctx, midnight)
		in.IncidentsToday = int(n)
		return err
	})
	if err := g.Wait(); err != nil {
		return aggregate.DashboardKPIs{}, err
	}
	return aggregate.KPIs(in), nil
}

// RecentActivity merges the latest alerts, routes and maintenance records.
func (s *Service) RecentActivity(ctx context.Context) cache.Result[[]aggregate.Activity] {
	return cache.Query(ctx, s.cache, cache.K(QueryRecentActivity), func(ctx context.Context) ([]aggregate.Activity, error) {
		var (
			alerts      []models.Alert
			routes      []models.Route
			maintenance []models.MaintenanceRecord
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			alerts, err = s.repos.Alerts.Recent(ctx, aggregate.ActivityPerType)
			return err
		})
		g.Go(func() (err error) {
			routes, err = s.repos.Routes.Recent(ctx, aggregate.ActivityPerType)
			return err
		})
		g.Go(func() (err error) {
			maintenance, err = s.repos.Maintenance.Recent(ctx, aggregate.ActivityPerType)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return aggregate.RecentActivity(alerts, routes, maintenance, aggregate.ActivityLimit), nil
	}, defaults)
}

// FuelStats summarises the trailing 30 days of fuel records.
func (s *Service) FuelStats(ctx context.Context) cache.Result[aggregate.FuelStats] {
	return cache.Query(ctx, s.cache, cache.K(QueryFuelStats), func(ctx context.Context) (aggregate.FuelStats, error) {
		records, err := s.repos.Fuel.FindSince(ctx, s.now().AddDate(0, 0, -aggregate.FuelWindowDays))
		if err != nil {
			return aggregate.FuelStats{}, err
		}
		return aggregate.Fuel(records), nil
	}, defaults)
}

const rankingSize = 10

// DriverRanking lists the best rated drivers with their point totals.
func (s *Service) DriverRanking(ctx context.Context) cache.Result[[]aggregate.LeaderboardEntry] {
	return cache.Query(ctx, s.cache, cache.K(QueryDriverRanking), func(ctx context.Context) ([]aggregate.LeaderboardEntry, error) {
		drivers, err := s.repos.Drivers.TopRated(ctx, rankingSize)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(drivers))
		for i, d := range drivers {
			ids[i] = d.ID
		}
		points, err := s.repos.Gamification.PointsFor(ctx, ids)
		if err != nil {
			return nil, err
		}
		return aggregate.Ranking(drivers, points), nil
	}, defaults)
}

func (s *Service) Leaderboard(ctx context.Context) cache.Result[[]aggregate.LeaderboardEntry] {
	return cache.Query(ctx, s.cache, cache.K(QueryLeaderboard), func(ctx context.Context) ([]aggregate.LeaderboardEntry, error) {
		var (
			drivers []models.Driver
			points  []models.DriverPoints
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			drivers, err = s.repos.Drivers.FindAll(ctx, repository.DriverFilter{})
			return err
		})
		g.Go(func() (err error) {
			points, err = s.repos.Gamification.Points(ctx, "")
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return aggregate.Leaderboard(drivers, points), nil
	}, defaults)
}
