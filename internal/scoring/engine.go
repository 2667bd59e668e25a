// -----------------------------------------------------------------------
// Scoring engine - deterministic weighted signal combination
// -----------------------------------------------------------------------

package scoring

import (
	"fmt"
	"math"

	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/models"
)

// Weights holds the three signal weights. They must be finite and must not
// all be zero; they need not sum to 1 because the score is clamped.
type Weights struct {
	Sentiment float64
	Impact    float64
	Risk      float64
}

// WeightsFromConfig builds scoring weights from configuration.
func WeightsFromConfig(cfg common.ScoringConfig) Weights {
	return Weights{
		Sentiment: cfg.SentimentWeight,
		Impact:    cfg.ImpactWeight,
		Risk:      cfg.RiskWeight,
	}
}

// Validate checks the weights against the scoring contract.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"sentiment": w.Sentiment,
		"impact":    w.Impact,
		"risk":      w.Risk,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s weight is not finite: %w", name, models.ErrInvalidWeights)
		}
	}
	if w.Sentiment == 0 && w.Impact == 0 && w.Risk == 0 {
		return fmt.Errorf("all weights are zero: %w", models.ErrInvalidWeights)
	}
	return nil
}

// Engine is the deterministic scoring function used by the decide stage.
// It holds no mutable state; identical inputs always yield identical output.
type Engine struct {
	weights Weights
}

// NewEngine creates a scoring engine, validating the weights up front.
func NewEngine(weights Weights) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

// Score combines a ticker signal into a bounded score and categorical
// action. The raw weighted sum is clamped to [-1, 1] before classification.
//
// Thresholds are half-open and evaluated in order:
//
//	score > 0.5          strong_buy
//	0 < score <= 0.5     buy
//	-0.5 <= score <= 0   sell
//	score < -0.5         strong_sell
//
// Note 0.5 itself classifies as buy and 0 as sell.
func (e *Engine) Score(signal models.TickerSignal) models.Decision {
	raw := e.weights.Sentiment*signal.Sentiment +
		e.weights.Impact*signal.LawImpact +
		e.weights.Risk*signal.RiskDiff

	score := clamp(raw, -1, 1)
	action := classify(score)

	return models.Decision{
		Ticker:     signal.Ticker,
		FinalScore: score,
		Action:     action,
		Reasoning:  reasoning(signal, score, action),
		Confidence: signal.Confidence,
	}
}

// ScoreAll scores every signal in a job's signal set.
func (e *Engine) ScoreAll(signals []models.TickerSignal) []models.Decision {
	decisions := make([]models.Decision, 0, len(signals))
	for _, signal := range signals {
		decisions = append(decisions, e.Score(signal))
	}
	return decisions
}

func classify(score float64) models.Action {
	switch {
	case score > 0.5:
		return models.ActionStrongBuy
	case score > 0:
		return models.ActionBuy
	case score >= -0.5:
		return models.ActionSell
	default:
		return models.ActionStrongSell
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func reasoning(signal models.TickerSignal, score float64, action models.Action) string {
	return fmt.Sprintf(
		"%s (%s): sentiment %.2f, regulatory impact %.2f, sector-relative risk %+.2f combine to %.2f -> %s",
		signal.Ticker, signal.Sector, signal.Sentiment, signal.LawImpact, signal.RiskDiff, score, action,
	)
}
