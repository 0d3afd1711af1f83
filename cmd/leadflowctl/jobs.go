package main

import (
	"fmt"
	"strings"

	"leadflow/internal/responder/classifier"
	"leadflow/internal/scheduler"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newEnrollCmd(opts *rootOptions) *cobra.Command {
	var (
		sequenceID string
		enrolledBy string
	)
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Queue a nurture enrollment for a lead",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teamID, leadID, err := opts.ids()
			if err != nil {
				return err
			}
			if _, err := uuid.Parse(sequenceID); err != nil {
				return fmt.Errorf("--sequence: %w", err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			queue, err := scheduler.NewClient(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = queue.Close() }()

			queued, err := queue.Enqueue(cmd.Context(), scheduler.TaskEnrollNurture, scheduler.EnrollNurtureJobData{
				TeamID:     teamID.String(),
				LeadID:     leadID.String(),
				SequenceID: sequenceID,
				EnrolledBy: enrolledBy,
			}, scheduler.EnqueueOptions{})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"queued": queued})
		},
	}
	cmd.Flags().StringVar(&sequenceID, "sequence", "", "nurture sequence id")
	cmd.Flags().StringVar(&enrolledBy, "by", "operator", "who requested the enrollment")
	_ = cmd.MarkFlagRequired("sequence")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify MESSAGE...",
		Short: "Classify an inbound message without touching any lead",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			r := classifier.Classify(message)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"objectionType":     r.ObjectionType,
				"confidence":        r.Confidence,
				"intent":            r.Intent,
				"shouldAutoRespond": r.ShouldAutoRespond,
				"matched":           r.Matched,
				"bookingConsent":    classifier.DetectBookingConsent(message),
			})
		},
	}
}

func newDeadLettersCmd() *cobra.Command {
	var (
		taskType string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List jobs that exhausted their retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			rows, err := scheduler.NewDeadLetterStore(e.pool).List(cmd.Context(), taskType, limit)
			if err != nil {
				return err
			}
			views := make([]map[string]any, 0, len(rows))
			for _, dl := range rows {
				views = append(views, map[string]any{
					"id":        dl.ID,
					"taskType":  dl.TaskType,
					"taskId":    dl.TaskID,
					"queue":     dl.Queue,
					"attempts":  dl.Attempts,
					"error":     dl.Error,
					"payload":   dl.Payload,
					"createdAt": dl.CreatedAt,
				})
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().StringVar(&taskType, "task", "", "only this job name")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}
