package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/ternarybob/censeo/internal/services/vocabulary"
)

// EnrichHandler runs the second stage: tag the normalized text against the
// sector vocabulary, extract entities, and compute the document sentiment.
type EnrichHandler struct {
	runner   *Runner
	vocab    *vocabulary.Vocabulary
	entities interfaces.EntityExtractor
}

// NewEnrichHandler wires the enrich stage.
func NewEnrichHandler(runner *Runner, vocab *vocabulary.Vocabulary, entities interfaces.EntityExtractor) *EnrichHandler {
	return &EnrichHandler{
		runner:   runner,
		vocab:    vocab,
		entities: entities,
	}
}

func (h *EnrichHandler) Stage() models.Stage {
	return models.StageEnriching
}

func (h *EnrichHandler) Handle(ctx context.Context, msg *models.StageMessage) error {
	return h.runner.Run(ctx, msg, models.StageEnriching, h.work)
}

func (h *EnrichHandler) work(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	raw, ok := job.Result(models.StageExtracting)
	if !ok {
		return nil, fmt.Errorf("extract output missing for job %s", job.ID)
	}
	var extract models.ExtractResult
	if err := json.Unmarshal(raw, &extract); err != nil {
		return nil, fmt.Errorf("corrupt extract output: %w", err)
	}

	tags := h.vocab.TagText(extract.NormalizedText)

	ents, sentiment, err := h.entities.ExtractEntities(ctx, extract.NormalizedText)
	if err != nil {
		return nil, err
	}

	analysis := models.LawAnalysis{
		NormalizedText: extract.NormalizedText,
		Language:       extract.Language,
		Entities:       *ents,
		MacroTags:      tags.MacroTags,
		MicroTags:      tags.MicroTags,
		SectorImpacts:  tags.SectorImpacts,
		Sentiment:      sentiment,
		Confidence:     enrichConfidence(tags.SectorImpacts),
	}

	return json.Marshal(analysis)
}

// enrichConfidence scales with the weight of vocabulary evidence: more
// keyword mentions across more sectors means a firmer read. Bounded to
// [0.3, 0.95] so a thin document still produces usable signals and no
// rule-based read claims certainty.
func enrichConfidence(impacts []models.SectorImpact) float64 {
	mentions := 0
	for _, imp := range impacts {
		mentions += imp.Mentions
	}
	c := 0.3 + 0.05*float64(mentions)
	if c > 0.95 {
		c = 0.95
	}
	return c
}
