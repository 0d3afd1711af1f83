// Package messaging routes outbound lead messages to the channel transport.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"leadflow/platform/logger"

	"golang.org/x/time/rate"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelMMS   Channel = "mms"
	ChannelEmail Channel = "email"
)

// ParseChannel maps free text to a channel, defaulting to SMS.
func ParseChannel(s string) Channel {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelMMS:
		return ChannelMMS
	case ChannelEmail:
		return ChannelEmail
	}
	return ChannelSMS
}

// Message is one outbound send.
type Message struct {
	To       string
	From     string
	Channel  Channel
	Subject  string
	Body     string
	MediaURL string
}

// Result mirrors the transport outcome.
type Result struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, from, body string) (string, error)
	SendMMS(ctx context.Context, to, from, body, mediaURL string) (string, error)
}

type EmailSender interface {
	Send(ctx context.Context, from, to, subject, body string) (string, error)
}

type MediaResolver interface {
	ResolveMediaURL(ctx context.Context, mediaURL string) (string, error)
}

type Router struct {
	sms     SMSSender
	email   EmailSender
	media   MediaResolver
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewRouter builds a router. ratePerSecond caps SMS/MMS throughput across
// all workers of the process; zero or less disables the cap.
func NewRouter(sms SMSSender, email EmailSender, ratePerSecond float64, log *logger.Logger) *Router {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = max(1, int(ratePerSecond))
	}
	return &Router{
		sms:     sms,
		email:   email,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

func (r *Router) SetMediaResolver(m MediaResolver) {
	r.media = m
}

// SendMessage delivers msg. On failure the returned Result carries the
// reason and err is non-nil.
func (r *Router) SendMessage(ctx context.Context, msg Message) (Result, error) {
	id, err := r.send(ctx, msg)
	if err != nil {
		r.log.Warn("message send failed", "channel", msg.Channel, "error", err)
		return Result{Success: false, Error: err.Error()}, err
	}
	return Result{Success: true, ProviderMessageID: id}, nil
}

func (r *Router) send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", fmt.Errorf("%s recipient is empty", msg.Channel)
	}

	switch msg.Channel {
	case ChannelEmail:
		if r.email == nil {
			return "", fmt.Errorf("email transport not configured")
		}
		return r.email.Send(ctx, msg.From, msg.To, msg.Subject, msg.Body)

	case ChannelMMS:
		if r.sms == nil {
			return "", fmt.Errorf("sms transport not configured")
		}
		mediaURL := msg.MediaURL
		if r.media != nil && mediaURL != "" {
			resolved, err := r.media.ResolveMediaURL(ctx, mediaURL)
			if err != nil {
				return "", err
			}
			mediaURL = resolved
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return r.sms.SendMMS(ctx, msg.To, msg.From, msg.Body, mediaURL)

	case ChannelSMS, "":
		if r.sms == nil {
			return "", fmt.Errorf("sms transport not configured")
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return r.sms.SendSMS(ctx, msg.To, msg.From, msg.Body)
	}
	return "", fmt.Errorf("unsupported channel %q", msg.Channel)
}
