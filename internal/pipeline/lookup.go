package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

// LookupHandler runs the third stage: expand sector impacts into per-ticker
// signals using company context from the market lookup capability.
type LookupHandler struct {
	runner *Runner
	lookup interfaces.CompanyLookup
}

// NewLookupHandler wires the lookup stage.
func NewLookupHandler(runner *Runner, lookup interfaces.CompanyLookup) *LookupHandler {
	return &LookupHandler{runner: runner, lookup: lookup}
}

func (h *LookupHandler) Stage() models.Stage {
	return models.StageLookingUp
}

func (h *LookupHandler) Handle(ctx context.Context, msg *models.StageMessage) error {
	return h.runner.Run(ctx, msg, models.StageLookingUp, h.work)
}

func (h *LookupHandler) work(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	raw, ok := job.Result(models.StageEnriching)
	if !ok {
		return nil, fmt.Errorf("enrich output missing for job %s", job.ID)
	}
	var analysis models.LawAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("corrupt enrich output: %w", err)
	}

	type candidate struct {
		company *interfaces.CompanyContext
		impact  models.SectorImpact
	}

	// Resolve every tracked ticker in every impacted sector. Sector-level
	// beta averages are computed over this job's candidate set, so a
	// ticker's risk reads relative to its peers in the same analysis.
	var candidates []candidate
	betaSums := make(map[string]float64)
	betaCounts := make(map[string]int)

	for _, impact := range analysis.SectorImpacts {
		tickers, err := h.lookup.TickersForSector(ctx, impact.Sector)
		if err != nil {
			return nil, err
		}
		for _, ticker := range tickers {
			company, err := h.lookup.LookupCompany(ctx, ticker)
			if err != nil {
				var capErr *models.CapabilityError
				if errors.As(err, &capErr) && !capErr.Retryable {
					// A single unresolvable ticker narrows the result
					// instead of failing the whole job.
					continue
				}
				return nil, err
			}
			candidates = append(candidates, candidate{company: company, impact: impact})
			betaSums[impact.Sector] += company.Beta
			betaCounts[impact.Sector]++
		}
	}

	signals := make([]models.TickerSignal, 0, len(candidates))
	for _, c := range candidates {
		sectorAvg := betaSums[c.impact.Sector] / float64(betaCounts[c.impact.Sector])

		lawImpact := clamp(c.impact.Score*c.company.SectorExposure, -1, 1)

		signals = append(signals, models.TickerSignal{
			Ticker:     c.company.Ticker,
			Sector:     c.impact.Sector,
			Sentiment:  analysis.Sentiment,
			LawImpact:  lawImpact,
			RiskDiff:   clamp(c.company.Beta-sectorAvg, -1, 1),
			Confidence: analysis.Confidence,
		})
	}

	sort.Slice(signals, func(i, j int) bool { return signals[i].Ticker < signals[j].Ticker })

	return json.Marshal(models.LookupResult{Signals: signals})
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
