package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"leadflow/internal/app"
	"leadflow/internal/leads/eventlog"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/platform/config"
	"leadflow/platform/db"
	"leadflow/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	teamID string
	leadID string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "leadflowctl",
		Short:         "Operate the lead lifecycle event log and job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.teamID, "team", "", "team id")
	cmd.PersistentFlags().StringVar(&opts.leadID, "lead", "", "lead id")

	cmd.AddCommand(
		newReconstructCmd(opts),
		newVerifyCmd(opts),
		newReconcileCmd(opts),
		newEventsCmd(opts),
		newRecordEventCmd(opts),
		newQueueEventCmd(opts),
		newEnrollCmd(opts),
		newClassifyCmd(),
		newDeadLettersCmd(),
	)
	return cmd
}

func (o *rootOptions) ids() (uuid.UUID, uuid.UUID, error) {
	teamID, err := uuid.Parse(o.teamID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("--team: %w", err)
	}
	leadID, err := uuid.Parse(o.leadID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("--lead: %w", err)
	}
	return teamID, leadID, nil
}

// env is the database-backed runtime shared by the subcommands.
type env struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openEnv(ctx context.Context, w io.Writer) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(cfg.Env, w)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) Close() { e.pool.Close() }

// eventLog is the sink-free event log, enough for reads and replay.
func (e *env) eventLog() *eventlog.Service {
	return eventlog.New(leadsrepo.New(e.pool), e.log)
}

// app wires the full module graph so recorded events reach the trigger
// matcher and the event stream.
func (e *env) app(ctx context.Context) (*app.App, error) {
	return app.New(ctx, e.cfg, e.pool, nil, e.log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
