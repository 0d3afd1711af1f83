// Package app wires the lifecycle modules together for the worker and the
// operator CLI.
package app

import (
	"context"
	"fmt"

	"leadflow/internal/email"
	"leadflow/internal/eventstream"
	"leadflow/internal/leads/eventlog"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/media"
	"leadflow/internal/messaging"
	nurturerepo "leadflow/internal/nurture/repository"
	nurture "leadflow/internal/nurture/service"
	responder "leadflow/internal/responder/service"
	"leadflow/internal/scheduler"
	"leadflow/internal/sms"
	"leadflow/internal/suggestions"
	"leadflow/internal/teams"
	"leadflow/internal/templates"
	triggerrepo "leadflow/internal/triggers/repository"
	triggers "leadflow/internal/triggers/service"
	"leadflow/platform/config"
	"leadflow/platform/logger"
	"leadflow/platform/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the wired services. Close releases the queue and stream clients.
type App struct {
	Leads       *leadsrepo.Repository
	EventLog    *eventlog.Service
	Triggers    *triggers.Service
	Nurture     *nurture.Service
	Responder   *responder.Service
	Queue       *scheduler.Client
	DeadLetters *scheduler.DeadLetterStore
	Stream      *eventstream.Publisher
}

// New builds every module on top of pool. m may be nil.
func New(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, m *metrics.Metrics, log *logger.Logger) (*App, error) {
	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create queue client: %w", err)
	}

	router, err := newRouter(cfg, log)
	if err != nil {
		_ = queue.Close()
		return nil, err
	}

	leadRepo := leadsrepo.New(pool)
	templateRepo := templates.New(pool)
	teamRepo := teams.New(pool)

	events := eventlog.New(leadRepo, log)
	events.SetMetrics(m)

	triggerSvc := triggers.New(triggerrepo.New(pool), leadRepo, events, templateRepo, teamRepo, router, queue, log)
	triggerSvc.SetEventMarker(leadRepo)
	triggerSvc.SetMetrics(m)
	events.AddSink("triggers", triggerSvc)

	nurtureSvc := nurture.New(nurturerepo.New(pool), leadRepo, events, templateRepo, teamRepo, router, queue, cfg.GetEscalationDelay(), log)
	nurtureSvc.SetMetrics(m)

	responderSvc, err := responder.New(leadRepo, events, teamRepo, router, log)
	if err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("create responder: %w", err)
	}
	responderSvc.SetCalendarFallback(cfg.GetDefaultCalendarURL())
	responderSvc.SetPhoneRegion(cfg.GetPhoneDefaultRegion())
	responderSvc.SetMetrics(m)
	generator, err := suggestions.NewGenerator(ctx, cfg, log)
	if err != nil {
		log.Warn("reply suggestions disabled", "error", err)
	} else if generator != nil {
		responderSvc.SetSuggester(generator)
	}

	a := &App{
		Leads:       leadRepo,
		EventLog:    events,
		Triggers:    triggerSvc,
		Nurture:     nurtureSvc,
		Responder:   responderSvc,
		Queue:       queue,
		DeadLetters: scheduler.NewDeadLetterStore(pool),
	}
	if stream := eventstream.NewPublisher(cfg, log); stream != nil {
		a.Stream = stream
		events.AddSink("eventstream", stream)
	}
	return a, nil
}

func (a *App) Close() error {
	if a.Stream != nil {
		_ = a.Stream.Close()
	}
	return a.Queue.Close()
}

// newRouter builds the channel router from whichever transports are configured.
func newRouter(cfg *config.Config, log *logger.Logger) (*messaging.Router, error) {
	var smsSender messaging.SMSSender
	if c := sms.NewClient(cfg, log); c != nil {
		smsSender = c
	} else {
		log.Warn("SMS gateway not configured, sms and mms sends will fail")
	}

	var emailSender messaging.EmailSender
	if s := email.NewSMTPSender(cfg); s != nil {
		emailSender = s
	}

	router := messaging.NewRouter(smsSender, emailSender, cfg.GetSMSRatePerSecond(), log)

	presigner, err := media.NewPresigner(cfg)
	if err != nil {
		return nil, fmt.Errorf("create media presigner: %w", err)
	}
	if presigner != nil {
		router.SetMediaResolver(presigner)
	}
	return router, nil
}
