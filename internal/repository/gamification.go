package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

type GamificationRepository struct {
	base
}

func NewGamificationRepository(db store.Store, now func() time.Time) *GamificationRepository {
	return &GamificationRepository{base: newBase(db, models.TableChallenges, now, false)}
}

func (r *GamificationRepository) Challenges(ctx context.Context) ([]models.Challenge, error) {
	return list[models.Challenge](ctx, r.db, store.From(models.TableChallenges).OrderBy("start_date", true))
}

// ActiveChallenges returns enabled challenges that have not ended.
func (r *GamificationRepository) ActiveChallenges(ctx context.Context) ([]models.Challenge, error) {
	q := store.From(models.TableChallenges).
		Where(store.Eq("is_active", true), store.Gte("end_date", r.now())).
		OrderBy("end_date", false)
	return list[models.Challenge](ctx, r.db, q)
}

func (r *GamificationRepository) CreateChallenge(ctx context.Context, c *models.Challenge) (*models.Challenge, error) {
	if c.ID == "" {
		c.ID = NewID()
	}
	c.CreatedAt = r.now()
	if err := checkStruct("create", models.TableChallenges, c); err != nil {
		return nil, err
	}
	if err := r.db.Insert(ctx, models.TableChallenges, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *GamificationRepository) UpdateChallenge(ctx context.Context, id string, update models.ChallengeUpdate) (*models.Challenge, error) {
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	c, err := one[models.Challenge](ctx, r.db, store.From(models.TableChallenges).Where(store.Eq("_id", id)))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("update", models.TableChallenges, id)
	}
	return c, nil
}

// DriverChallenges returns a driver's enrolments with the challenge resolved.
func (r *GamificationRepository) DriverChallenges(ctx context.Context, driverID string) ([]models.DriverChallenge, error) {
	q := store.From(models.TableDriverChallenges).
		Where(store.Eq("driver_id", driverID)).
		OrderBy("created_at", true)
	rows, err := list[models.DriverChallenge](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var ids idSet
	for _, dc := range rows {
		ids.addValue(dc.ChallengeID)
	}
	challenges, err := byIDs(ctx, r.db, models.TableChallenges, ids.ids, func(c models.Challenge) string { return c.ID })
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if c, ok := challenges[rows[i].ChallengeID]; ok {
			c := c
			rows[i].Challenge = &c
		}
	}
	return rows, nil
}

// Points returns ledger entries newest first. An empty driverID returns the
// whole ledger.
func (r *GamificationRepository) Points(ctx context.Context, driverID string) ([]models.DriverPoints, error) {
	q := store.From(models.TableDriverPoints).OrderBy("earned_at", true)
	if driverID != "" {
		q = q.Where(store.Eq("driver_id", driverID))
	}
	return list[models.DriverPoints](ctx, r.db, q)
}

// PointsFor returns the ledger entries of the given drivers.
func (r *GamificationRepository) PointsFor(ctx context.Context, driverIDs []string) ([]models.DriverPoints, error) {
	if len(driverIDs) == 0 {
		return []models.DriverPoints{}, nil
	}
	q := store.From(models.TableDriverPoints).Where(store.In("driver_id", driverIDs))
	return list[models.DriverPoints](ctx, r.db, q)
}

func (r *GamificationRepository) AwardPoints(ctx context.Context, p *models.DriverPoints) (*models.DriverPoints, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.EarnedAt.IsZero() {
		p.EarnedAt = r.now()
	}
	if err := checkStruct("create", models.TableDriverPoints, p); err != nil {
		return nil, err
	}
	if err := r.db.Insert(ctx, models.TableDriverPoints, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordProgress sets a driver's current value on a challenge, enrolling the
// driver if needed. Reaching the target completes the enrolment and credits
// the reward; a completed enrolment is never credited again.
func (r *GamificationRepository) RecordProgress(ctx context.Context, driverID, challengeID string, value float64) (*models.DriverChallenge, error) {
	challenge, err := one[models.Challenge](ctx, r.db, store.From(models.TableChallenges).Where(store.Eq("_id", challengeID)))
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, store.Errorf(store.KindValidation, "update", models.TableDriverChallenges, "challenge %s does not exist", challengeID)
	}
	if value < 0 {
		return nil, store.Errorf(store.KindValidation, "update", models.TableDriverChallenges, "progress must not be negative")
	}

	dc, err := one[models.DriverChallenge](ctx, r.db, store.From(models.TableDriverChallenges).
		Where(store.Eq("driver_id", driverID), store.Eq("challenge_id", challengeID)))
	if err != nil {
		return nil, err
	}
	now := r.now()
	if dc == nil {
		dc = &models.DriverChallenge{
			ID:          NewID(),
			DriverID:    driverID,
			ChallengeID: challengeID,
			CreatedAt:   now,
		}
		if err := checkStruct("create", models.TableDriverChallenges, dc); err != nil {
			return nil, err
		}
		if err := r.db.Insert(ctx, models.TableDriverChallenges, dc); err != nil {
			return nil, err
		}
	}

	set := map[string]interface{}{"current_value": value}
	dc.CurrentValue = &value
	completes := !dc.IsCompleted && challenge.TargetValue != nil && value >= *challenge.TargetValue
	if completes {
		set["is_completed"] = true
		set["completed_at"] = now
		dc.IsCompleted = true
		dc.CompletedAt = &now
	}
	found, err := r.db.Update(ctx, models.TableDriverChallenges, dc.ID, set)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("update", models.TableDriverChallenges, dc.ID)
	}

	if completes && challenge.PointsReward > 0 {
		category := "challenge"
		if _, err := r.AwardPoints(ctx, &models.DriverPoints{
			DriverID: driverID,
			Points:   challenge.PointsReward,
			Reason:   "Challenge completed: " + challenge.Title,
			Category: &category,
			EarnedAt: now,
		}); err != nil {
			return nil, err
		}
	}
	dc.Challenge = challenge
	return dc, nil
}
