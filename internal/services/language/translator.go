package language

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
)

var languageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
}

const translateSystem = "You are a professional translator of legislative and regulatory documents. " +
	"Translate the document faithfully, preserving legal terminology, section numbering, monetary amounts, " +
	"and named entities exactly. Output only the translated text."

// Translator converts document text into the canonical pipeline language
// using the synthesis capability.
type Translator struct {
	synthesizer interfaces.Synthesizer
	logger      arbor.ILogger
}

// NewTranslator creates a synthesis-backed translator.
func NewTranslator(synthesizer interfaces.Synthesizer, logger arbor.ILogger) *Translator {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Translator{
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Translate renders text in targetLang. Text already detected as the target
// language passes through unchanged.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if Detect(text) == targetLang {
		return text, nil
	}

	name, ok := languageNames[targetLang]
	if !ok {
		name = targetLang
	}

	out, err := t.synthesizer.Synthesize(ctx, &interfaces.SynthesisRequest{
		System: translateSystem,
		Messages: []interfaces.Message{
			{Role: "user", Content: fmt.Sprintf("Translate the following document to %s:\n\n%s", name, text)},
		},
	})
	if err != nil {
		return "", err
	}

	t.logger.Debug().Str("target", targetLang).Int("chars", len(text)).Msg("Document translated")
	return out, nil
}
