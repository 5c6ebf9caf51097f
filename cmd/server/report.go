package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"logitrack/pkg/cache"
	"logitrack/pkg/jwt"
)

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Print the dashboard KPIs once as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(a *app) (interface{}, error) {
			return resultData(a.svc.DashboardKPIs(cmd.Context()))
		})
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Print the recent activity feed once as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(a *app) (interface{}, error) {
			return resultData(a.svc.RecentActivity(cmd.Context()))
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a development token signed with JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		verifier, err := jwt.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return err
		}

		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := verifier.Sign(args[0], email, role, ttl)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("email", "", "email claim")
	tokenCmd.Flags().String("role", "dispatcher", "role claim")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	for _, c := range []*cobra.Command{kpisCmd, activityCmd} {
		c.Flags().Bool("pretty", false, "indent the output")
	}
}

// runReport builds the app without the HTTP surface, runs one query and
// prints its data.
func runReport(cmd *cobra.Command, query func(*app) (interface{}, error)) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := query(a)
	if err != nil {
		return err
	}
	pretty, _ := cmd.Flags().GetBool("pretty")
	return writeJSON(cmd.OutOrStdout(), data, pretty)
}

// resultData unwraps a cache result. A one-shot read has no earlier data to
// fall back on, so any error fails the command.
func resultData[T any](res cache.Result[T]) (interface{}, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Data, nil
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
