// Package suggestions asks an upstream language model for reply drafts an
// operator can review. Classification never depends on it.
package suggestions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"leadflow/platform/config"
	"leadflow/platform/logger"

	"google.golang.org/genai"
)

const (
	TaskReplySuggestion = "reply_suggestion"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// ErrEmptyOutput is returned when the model produced no text.
var ErrEmptyOutput = errors.New("suggestion generator returned no output")

// Request is one generation call.
type Request struct {
	Task     string
	Priority string
	Context  map[string]any
	Input    string
}

type Result struct {
	Output string
}

var systemInstructions = map[string]string{
	TaskReplySuggestion: "You draft short, friendly SMS replies for a sales team. " +
		"Reply in at most two sentences. Never pressure the lead and never invent prices or dates. " +
		"If the lead asked to stop contact, reply with an empty message.",
}

type Generator struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGenerator connects to the Gemini API. It returns nil when suggestions
// are disabled.
func NewGenerator(ctx context.Context, cfg config.SuggestionConfig, log *logger.Logger) (*Generator, error) {
	if !cfg.IsSuggestionEnabled() {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Generator{client: client, model: cfg.GetSuggestionModel(), log: log}, nil
}

// Execute runs req against the model.
func (g *Generator) Execute(ctx context.Context, req Request) (Result, error) {
	instruction, ok := systemInstructions[req.Task]
	if !ok {
		return Result{}, fmt.Errorf("unknown suggestion task %q", req.Task)
	}
	prompt, err := buildPrompt(req)
	if err != nil {
		return Result{}, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr(temperatureFor(req.Priority)),
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate %s: %w", req.Task, err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return Result{}, ErrEmptyOutput
	}
	g.log.Debug("suggestion generated", "task", req.Task, "model", g.model, "chars", len(out))
	return Result{Output: out}, nil
}

// buildPrompt renders context keys in sorted order followed by the input.
func buildPrompt(req Request) (string, error) {
	var b strings.Builder
	if len(req.Context) > 0 {
		keys := make([]string, 0, len(req.Context))
		for k := range req.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("Context:\n")
		for _, k := range keys {
			v, err := json.Marshal(req.Context[k])
			if err != nil {
				return "", fmt.Errorf("encode context %q: %w", k, err)
			}
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
		b.WriteString("\n")
	}
	b.WriteString("Lead message:\n")
	b.WriteString(strings.TrimSpace(req.Input))
	return b.String(), nil
}

func temperatureFor(priority string) float32 {
	if priority == PriorityHigh {
		return 0.2
	}
	return 0.5
}
