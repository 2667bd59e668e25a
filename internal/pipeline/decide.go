package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/ternarybob/censeo/internal/scoring"
)

const summarySystem = "You are an equity analyst summarizing how a new law affects tracked securities. " +
	"Be factual and grounded in the provided scores; do not invent positions the data does not support."

// DecideHandler runs the final stage: score every ticker signal and
// assemble the published analysis result.
type DecideHandler struct {
	runner      *Runner
	engine      *scoring.Engine
	synthesizer interfaces.Synthesizer
}

// NewDecideHandler wires the decide stage.
func NewDecideHandler(runner *Runner, engine *scoring.Engine, synthesizer interfaces.Synthesizer) *DecideHandler {
	return &DecideHandler{
		runner:      runner,
		engine:      engine,
		synthesizer: synthesizer,
	}
}

func (h *DecideHandler) Stage() models.Stage {
	return models.StageDeciding
}

func (h *DecideHandler) Handle(ctx context.Context, msg *models.StageMessage) error {
	key := msg.IdempotencyKey()
	return h.runner.Run(ctx, msg, models.StageDeciding, func(ctx context.Context, job *models.Job) (json.RawMessage, error) {
		return h.work(ctx, job, key)
	})
}

func (h *DecideHandler) work(ctx context.Context, job *models.Job, idempotencyKey string) (json.RawMessage, error) {
	raw, ok := job.Result(models.StageLookingUp)
	if !ok {
		return nil, fmt.Errorf("lookup output missing for job %s", job.ID)
	}
	var lookup models.LookupResult
	if err := json.Unmarshal(raw, &lookup); err != nil {
		return nil, fmt.Errorf("corrupt lookup output: %w", err)
	}

	decisions := h.engine.ScoreAll(lookup.Signals)

	outcomes := make(map[string]models.TickerOutcome, len(decisions))
	for i, d := range decisions {
		sig := lookup.Signals[i]
		outcomes[d.Ticker] = models.TickerOutcome{
			Sector:     sig.Sector,
			Sentiment:  sig.Sentiment,
			LawImpact:  sig.LawImpact,
			RiskDiff:   sig.RiskDiff,
			FinalScore: d.FinalScore,
			Decision:   d.Action,
			Confidence: d.Confidence,
		}
	}

	result := models.AnalysisResult{
		Tickers: outcomes,
		Summary: h.summarize(ctx, decisions, idempotencyKey),
	}

	return json.Marshal(&result)
}

// summarize asks the synthesis capability for a prose summary of the
// decisions, keyed so a redelivered message reuses the generated text.
// Synthesis is a nicety here: on failure the deterministic fallback keeps
// the decide stage from failing a finished analysis.
func (h *DecideHandler) summarize(ctx context.Context, decisions []models.Decision, idempotencyKey string) string {
	if len(decisions) == 0 {
		return "No tracked securities were affected by this document."
	}

	var sb strings.Builder
	sb.WriteString("Scored positions:\n")
	for _, d := range decisions {
		fmt.Fprintf(&sb, "- %s: %s (score %.3f) because %s\n", d.Ticker, d.Action, d.FinalScore, d.Reasoning)
	}

	summary, err := h.synthesizer.Synthesize(ctx, &interfaces.SynthesisRequest{
		System:         summarySystem,
		Mode:           "summary",
		IdempotencyKey: idempotencyKey,
		Messages: []interfaces.Message{
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		h.runner.logger.Warn().Err(err).Msg("Summary synthesis failed, using deterministic fallback")
		return fallbackSummary(decisions)
	}
	return summary
}

func fallbackSummary(decisions []models.Decision) string {
	counts := make(map[models.Action]int)
	for _, d := range decisions {
		counts[d.Action]++
	}
	var parts []string
	for _, action := range []models.Action{models.ActionStrongBuy, models.ActionBuy, models.ActionSell, models.ActionStrongSell} {
		if n := counts[action]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, action))
		}
	}
	return fmt.Sprintf("Analysis produced %d ticker decisions: %s.", len(decisions), strings.Join(parts, ", "))
}
