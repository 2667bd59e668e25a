package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/ternarybob/censeo/internal/services/language"
)

// ExtractHandler runs the first pipeline stage: decode the raw document
// blob into normalized text and bring it into the canonical working
// language.
type ExtractHandler struct {
	runner     *Runner
	documents  interfaces.DocumentStorage
	extractor  interfaces.TextExtractor
	translator interfaces.Translator
}

// NewExtractHandler wires the extract stage.
func NewExtractHandler(runner *Runner, documents interfaces.DocumentStorage, extractor interfaces.TextExtractor, translator interfaces.Translator) *ExtractHandler {
	return &ExtractHandler{
		runner:     runner,
		documents:  documents,
		extractor:  extractor,
		translator: translator,
	}
}

func (h *ExtractHandler) Stage() models.Stage {
	return models.StageExtracting
}

func (h *ExtractHandler) Handle(ctx context.Context, msg *models.StageMessage) error {
	return h.runner.Run(ctx, msg, models.StageExtracting, h.work)
}

func (h *ExtractHandler) work(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	blob, err := h.documents.GetDocument(ctx, job.InputRef)
	if err != nil {
		return nil, err
	}

	text, err := h.extractor.ExtractText(ctx, blob, job.Format)
	if err != nil {
		return nil, err
	}

	canonical := h.runner.config.Pipeline.CanonicalLanguage
	detected := language.Detect(text)
	chunks := splitChunks(text, h.runner.config.Pipeline.ChunkSize)

	result := models.ExtractResult{
		NormalizedText: text,
		Language:       canonical,
		Chunks:         len(chunks),
	}

	if detected != canonical {
		// Translate chunk by chunk and reassemble in order so a large
		// document never exceeds what the capability can take in one call.
		translated := make([]string, len(chunks))
		for i, chunk := range chunks {
			out, err := h.translator.Translate(ctx, chunk, canonical)
			if err != nil {
				return nil, err
			}
			translated[i] = out
		}
		result.NormalizedText = strings.Join(translated, "\n")
		result.SourceLanguage = detected
	}

	return json.Marshal(result)
}

// splitChunks cuts text into ordered pieces of at most chunkSize bytes,
// breaking at the last whitespace before the boundary when one exists.
func splitChunks(text string, chunkSize int) []string {
	if chunkSize <= 0 || len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > chunkSize {
		cut := chunkSize
		if idx := strings.LastIndexAny(text[:chunkSize], " \t\n"); idx > 0 {
			cut = idx + 1
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
