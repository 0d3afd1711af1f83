package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"

	"github.com/spf13/cobra"
)

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		types []string
		since time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List a lead's events, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamID, leadID, err := opts.ids()
			if err != nil {
				return err
			}
			filter := leadsrepo.EventFilter{Limit: limit}
			for _, t := range types {
				et, ok := domain.ParseEventType(strings.ToUpper(t))
				if !ok {
					return fmt.Errorf("unknown event type %q", t)
				}
				filter.Types = append(filter.Types, et)
			}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}

			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			events, err := e.eventLog().GetLeadEvents(cmd.Context(), teamID, leadID, filter)
			if err != nil {
				return err
			}
			views := make([]map[string]any, 0, len(events))
			for _, ev := range events {
				views = append(views, eventView(ev))
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "event types to include")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events")
	return cmd
}

func newRecordEventCmd(opts *rootOptions) *cobra.Command {
	var (
		eventType string
		payload   string
	)
	cmd := &cobra.Command{
		Use:   "record-event",
		Short: "Append an operator event to a lead's log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamID, leadID, err := opts.ids()
			if err != nil {
				return err
			}
			et, ok := domain.ParseEventType(strings.ToUpper(eventType))
			if !ok {
				return fmt.Errorf("unknown event type %q", eventType)
			}
			var data map[string]any
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &data); err != nil {
					return fmt.Errorf("--payload: %w", err)
				}
			}

			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			a, err := e.app(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stored, err := a.EventLog.RecordEvent(cmd.Context(), domain.LeadEvent{
				TeamID:      teamID,
				LeadID:      leadID,
				EventType:   et,
				EventSource: domain.SourceOperator,
				Payload:     data,
			})
			if err != nil {
				return err
			}
			if stored == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "duplicate event, nothing recorded")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), eventView(*stored))
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "event type")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object payload")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newQueueEventCmd(opts *rootOptions) *cobra.Command {
	var (
		eventType string
		payload   string
	)
	cmd := &cobra.Command{
		Use:   "queue-event",
		Short: "Run the trigger matcher for an event without recording it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamID, leadID, err := opts.ids()
			if err != nil {
				return err
			}
			et, ok := domain.ParseEventType(strings.ToUpper(eventType))
			if !ok {
				return fmt.Errorf("unknown event type %q", eventType)
			}
			var data map[string]any
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &data); err != nil {
					return fmt.Errorf("--payload: %w", err)
				}
			}

			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			a, err := e.app(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Triggers.QueueEvent(cmd.Context(), teamID, leadID, et, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s for lead %s\n", et, leadID)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "event type")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object payload")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func eventView(ev domain.LeadEvent) map[string]any {
	out := map[string]any{
		"id":        ev.ID,
		"eventType": ev.EventType,
		"source":    ev.EventSource,
		"createdAt": ev.CreatedAt,
	}
	if ev.PreviousState != nil {
		out["previousState"] = *ev.PreviousState
	}
	if ev.NewState != nil {
		out["newState"] = *ev.NewState
	}
	if len(ev.Payload) > 0 {
		out["payload"] = ev.Payload
	}
	return out
}
