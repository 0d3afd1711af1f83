package main

import (
	"fmt"

	"leadflow/internal/leads/domain"

	"github.com/spf13/cobra"
)

func newReconstructCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconstruct-state",
		Short: "Replay a lead's events and print the derived state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamID, leadID, err := opts.ids()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			replay, err := e.eventLog().ReconstructState(cmd.Context(), teamID, leadID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), replayView(replay))
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-state",
		Short: "Compare a lead's stored state with its replayed state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamID, leadID, err := opts.ids()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			v, err := e.eventLog().VerifyLeadState(cmd.Context(), teamID, leadID)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), verificationView(v)); err != nil {
				return err
			}
			if !v.IsValid {
				return fmt.Errorf("lead %s state mismatch", leadID)
			}
			return nil
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-state",
		Short: "Overwrite a lead's stored state with its replayed state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamID, leadID, err := opts.ids()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			v, err := e.eventLog().ReconcileLeadState(cmd.Context(), teamID, leadID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), verificationView(v))
		},
	}
}

func replayView(r domain.Replay) map[string]any {
	return map[string]any{
		"state":           r.State,
		"eventCount":      r.EventCount,
		"lastEventAt":     r.LastEventAt,
		"transitionCount": r.TransitionCount,
	}
}

func verificationView(v domain.Verification) map[string]any {
	out := map[string]any{
		"isValid":            v.IsValid,
		"storedState":        v.StoredState,
		"reconstructedState": v.ReconstructedState,
	}
	if v.Discrepancy != "" {
		out["discrepancy"] = v.Discrepancy
	}
	return out
}
