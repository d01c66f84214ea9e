package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/app"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/config"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/observ"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "communityctl",
	Short:         "Operate the community service's store",
	Long:          `communityctl applies the database schema and runs one-shot repairs against the configured store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Migrate(ctx)
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Provision missing default maps once",
	Long:  `Walk every community and create its default map if an earlier creation left it out.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Service.Reconcile(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d, repaired %d, failed %d\n",
				report.Checked, report.Repaired, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d communities could not be repaired", report.Failed)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, reconcileCmd)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
