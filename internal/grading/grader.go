// Package grading scores a finished negotiation against a fixed five-area
// rubric. A model answer that cannot be parsed degrades to a neutral
// fallback grade instead of failing the request.
package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MikeSquared-Agency/raisecoach/internal/conversation"
	"github.com/MikeSquared-Agency/raisecoach/internal/gateway"
	"github.com/MikeSquared-Agency/raisecoach/internal/telemetry"
)

const (
	gradeMaxTokens   = 1500
	gradeTemperature = 0.3
)

var errNoJSON = errors.New("could not find JSON in response")

type Grader struct {
	llm     gateway.Completer
	logger  *slog.Logger
	results metric.Int64Counter
}

func New(llm gateway.Completer, logger *slog.Logger) *Grader {
	return &Grader{
		llm:     llm,
		logger:  logger,
		results: telemetry.Counter(telemetry.Meter("raisecoach/grading"), "raisecoach.gradings", "Gradings produced, by source"),
	}
}

// Grade asks the gateway to score transcript. Gateway failures are
// returned; anything wrong with the answer itself yields Fallback().
func (g *Grader) Grade(ctx context.Context, transcript []conversation.Message, personaName string, outcome conversation.Outcome) (Result, error) {
	g.logger.Info("grading conversation",
		"message_count", len(transcript),
		"persona", personaName,
		"outcome", outcome,
	)

	raw, err := g.llm.Complete(ctx, gateway.Request{
		System: systemPrompt,
		Messages: []gateway.Message{
			{Role: gateway.RoleUser, Content: fmt.Sprintf(userPrompt, personaName, outcome, conversation.Render(transcript))},
		},
		MaxTokens:   gradeMaxTokens,
		Temperature: gradeTemperature,
	})
	if err != nil {
		g.logger.Error("ai gateway error", "kind", gateway.Kind(err), "error", err)
		return Result{}, fmt.Errorf("grade completion: %w", err)
	}

	result, source := g.Resolve(raw)
	g.results.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(source))))
	g.logger.Info("grading complete", "likelihood", result.LikelihoodOfSuccess, "source", source)
	return result, nil
}

// Resolve turns raw completion text into a Result, falling back when the
// text holds no usable grading object.
func (g *Grader) Resolve(raw string) (Result, Source) {
	result, err := Parse(raw)
	if err != nil {
		g.logger.Error("failed to parse grading response", "error", err, "raw", raw)
		return Fallback(), SourceFallback
	}
	return result, SourceParsed
}

type rawArea struct {
	Name     string   `json:"name"`
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

type rawResult struct {
	LikelihoodOfSuccess *float64  `json:"likelihood_of_success"`
	OverallSummary      string    `json:"overall_summary"`
	Areas               []rawArea `json:"areas"`
}

// Parse extracts the first JSON object embedded in text (surrounding prose
// and code fences are ignored) and normalizes it onto the rubric.
func Parse(text string) (Result, error) {
	raw, err := extractObject(text)
	if err != nil {
		return Result{}, err
	}
	if raw.LikelihoodOfSuccess == nil {
		return Result{}, errors.New("missing likelihood_of_success")
	}
	if len(raw.Areas) == 0 {
		return Result{}, errors.New("missing areas")
	}

	return Result{
		LikelihoodOfSuccess: clamp(*raw.LikelihoodOfSuccess, 0, 100),
		OverallSummary:      raw.OverallSummary,
		Areas:               alignAreas(raw.Areas),
	}, nil
}

func extractObject(text string) (rawResult, error) {
	var lastErr error = errNoJSON
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var raw rawResult
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		err := dec.Decode(&raw)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return rawResult{}, lastErr
}

// alignAreas returns exactly the five rubric areas in rubric order. Areas
// are matched by name first, then by position; a rubric slot the model left
// out gets the fallback entry.
func alignAreas(parsed []rawArea) []Area {
	used := make([]bool, len(parsed))
	out := make([]Area, len(AreaNames))

	for slot, name := range AreaNames {
		idx := -1
		for i, a := range parsed {
			if !used[i] && strings.EqualFold(strings.TrimSpace(a.Name), name) {
				idx = i
				break
			}
		}
		if idx < 0 && slot < len(parsed) && !used[slot] && !isRubricName(parsed[slot].Name) {
			idx = slot
		}
		if idx < 0 || parsed[idx].Score == nil {
			out[slot] = fallbackAreas[slot]
			if idx >= 0 {
				used[idx] = true
			}
			continue
		}
		used[idx] = true
		out[slot] = Area{
			Name:     name,
			Score:    clamp(*parsed[idx].Score, 1, 10),
			Feedback: parsed[idx].Feedback,
		}
	}
	return out
}

func isRubricName(name string) bool {
	for _, n := range AreaNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return true
		}
	}
	return false
}

// clamp bounds v before converting; int() of an out-of-range float is
// undefined.
func clamp(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	v = math.Max(float64(lo), math.Min(float64(hi), v))
	return int(math.Round(v))
}
