package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/censeo/internal/models"
)

func mustEngine(t *testing.T, w Weights) *Engine {
	t.Helper()
	e, err := NewEngine(w)
	require.NoError(t, err, "Failed to create engine")
	return e
}

func TestPositiveSignalIsStrongBuy(t *testing.T) {
	e := mustEngine(t, Weights{Sentiment: 0.4, Impact: 0.4, Risk: 0.2})

	d := e.Score(models.TickerSignal{
		Ticker:     "XOM",
		Sector:     "Energy",
		Sentiment:  0.72,
		LawImpact:  0.55,
		RiskDiff:   0.18,
		Confidence: 0.8,
	})

	// 0.4*0.72 + 0.4*0.55 + 0.2*0.18 = 0.544
	assert.InDelta(t, 0.544, d.FinalScore, 1e-9)
	assert.Equal(t, models.ActionStrongBuy, d.Action)
	assert.Equal(t, 0.8, d.Confidence, "confidence carried through unchanged")
}

func TestNegativeSignalClassification(t *testing.T) {
	e := mustEngine(t, Weights{Sentiment: 0.4, Impact: 0.4, Risk: 0.2})

	// Moderately negative inputs land in the sell band.
	d := e.Score(models.TickerSignal{
		Ticker:    "DAL",
		Sector:    "Airlines",
		Sentiment: -0.43,
		LawImpact: -0.27,
		RiskDiff:  -0.11,
	})
	// 0.4*-0.43 + 0.4*-0.27 + 0.2*-0.11 = -0.302
	assert.InDelta(t, -0.302, d.FinalScore, 1e-9)
	assert.Equal(t, models.ActionSell, d.Action)

	// Strongly negative inputs cross -0.5 without touching the clamp.
	d = e.Score(models.TickerSignal{
		Ticker:    "CVX",
		Sector:    "Energy",
		Sentiment: -0.9,
		LawImpact: -0.8,
		RiskDiff:  -0.5,
	})
	// 0.4*-0.9 + 0.4*-0.8 + 0.2*-0.5 = -0.78
	assert.InDelta(t, -0.78, d.FinalScore, 1e-9)
	assert.Equal(t, models.ActionStrongSell, d.Action)
}

func TestBoundaryClassification(t *testing.T) {
	// Unit sentiment weight lets the test pick exact scores.
	e := mustEngine(t, Weights{Sentiment: 1})

	cases := []struct {
		score float64
		want  models.Action
	}{
		{0.51, models.ActionStrongBuy},
		{0.5, models.ActionBuy}, // half-open: 0.5 is buy, not strong_buy
		{0.01, models.ActionBuy},
		{0, models.ActionSell}, // 0 is sell, not buy
		{-0.5, models.ActionSell},
		{-0.51, models.ActionStrongSell},
	}

	for _, tc := range cases {
		d := e.Score(models.TickerSignal{Ticker: "T", Sector: "S", Sentiment: tc.score})
		assert.Equal(t, tc.want, d.Action, "score %v", tc.score)
	}
}

func TestScoreIsClamped(t *testing.T) {
	// Oversized weights overshoot; the clamp absorbs it.
	e := mustEngine(t, Weights{Sentiment: 2, Impact: 2, Risk: 2})

	d := e.Score(models.TickerSignal{Ticker: "T", Sector: "S", Sentiment: 1, LawImpact: 1, RiskDiff: 1})
	assert.Equal(t, 1.0, d.FinalScore)

	d = e.Score(models.TickerSignal{Ticker: "T", Sector: "S", Sentiment: -1, LawImpact: -1, RiskDiff: -1})
	assert.Equal(t, -1.0, d.FinalScore)
}

func TestScoreIsDeterministic(t *testing.T) {
	e := mustEngine(t, Weights{Sentiment: 0.4, Impact: 0.4, Risk: 0.2})

	signal := models.TickerSignal{
		Ticker:    "NEE",
		Sector:    "Utilities",
		Sentiment: 0.31,
		LawImpact: 0.12,
		RiskDiff:  -0.07,
	}

	first := e.Score(signal)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, e.Score(signal), "iteration %d", i)
	}
}

func TestInvalidWeights(t *testing.T) {
	cases := []struct {
		name string
		w    Weights
	}{
		{"all zero", Weights{}},
		{"nan", Weights{Sentiment: math.NaN(), Impact: 0.4, Risk: 0.2}},
		{"positive inf", Weights{Sentiment: 0.4, Impact: math.Inf(1), Risk: 0.2}},
		{"negative inf", Weights{Sentiment: 0.4, Impact: 0.4, Risk: math.Inf(-1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEngine(tc.w)
			assert.ErrorIs(t, err, models.ErrInvalidWeights)
		})
	}
}
