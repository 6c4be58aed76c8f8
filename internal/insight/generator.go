package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
)

const DefaultTimeout = 30 * time.Second

// Generator asks the text provider for an analysis and falls back to the
// deterministic one on any failure. Generate never returns an error.
type Generator struct {
	client  TextGenerator
	timeout time.Duration
	logger  *log.Logger
}

type Option func(*Generator)

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator accepts a nil client; every non-empty month then uses the
// fallback.
func NewGenerator(client TextGenerator, opts ...Option) *Generator {
	g := &Generator{
		client:  client,
		timeout: DefaultTimeout,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentInsight),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the insight for one month of transactions.
func (g *Generator) Generate(ctx context.Context, month string, txns []core.Transaction) core.Insight {
	if len(txns) == 0 {
		return Empty()
	}
	if !g.remoteEnabled() {
		return Fallback(txns)
	}

	res, err := g.generateRemote(ctx, month, txns)
	if err != nil {
		svcErr := &core.ExternalServiceError{Op: "generate insight", Err: err}
		g.logger.WarnContext(ctx, "Insight provider failed, using fallback",
			log.FieldMonth, month,
			log.FieldError, svcErr.Error(),
			log.FieldErrorType, log.ErrorTypeExternal)
		return Fallback(txns)
	}
	return res
}

func (g *Generator) remoteEnabled() bool {
	if g.client == nil {
		return false
	}
	if c, ok := g.client.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

func (g *Generator) generateRemote(ctx context.Context, month string, txns []core.Transaction) (core.Insight, error) {
	prompt, err := BuildPrompt(month, txns)
	if err != nil {
		return core.Insight{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.client.Generate(callCtx, prompt)
	if err != nil {
		return core.Insight{}, err
	}
	g.logger.DebugContext(ctx, "Insight provider responded",
		log.FieldMonth, month,
		log.FieldDuration, time.Since(start).Milliseconds())

	return ParseResponse(text)
}

type response struct {
	Summary       string             `json:"summary"`
	TopCategories []core.TopCategory `json:"topCategories"`
	Suggestions   []string           `json:"suggestions"`
	SavingsGoal   float64            `json:"savingsGoal"`
}

// ParseResponse strips markdown fences from model text and decodes it. A
// missing summary, topCategories or suggestions is an error. Category labels
// outside the taxonomy become others; a missing or negative savingsGoal is 0.
func ParseResponse(text string) (core.Insight, error) {
	cleaned := StripCodeFences(text)

	var r response
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return core.Insight{}, fmt.Errorf("parse insight response: %w", err)
	}
	if strings.TrimSpace(r.Summary) == "" || r.TopCategories == nil || r.Suggestions == nil {
		return core.Insight{}, errors.New("invalid insight response structure")
	}

	for i, tc := range r.TopCategories {
		c := core.Category(strings.ToLower(strings.TrimSpace(string(tc.Category))))
		if !c.IsValid() {
			c = core.Others
		}
		r.TopCategories[i].Category = c
	}

	return core.Insight{
		Summary:       r.Summary,
		TopCategories: r.TopCategories,
		Suggestions:   r.Suggestions,
		SavingsGoal:   math.Max(r.SavingsGoal, 0),
		Source:        core.InsightGenerated,
	}, nil
}

// StripCodeFences removes a leading ```json or ``` fence and a trailing ```.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
