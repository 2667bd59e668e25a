package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

// modeInstructions sets the register for synthesized prose by mode.
var modeInstructions = map[string]string{
	"summary":   "Respond with a concise summary of no more than three sentences.",
	"detailed":  "Respond with a thorough analysis covering each point raised.",
	"executive": "Respond with an executive brief: lead with the conclusion, then the two most material supporting facts.",
}

// recentLimit bounds the idempotency memo so redelivered stage messages
// reuse a completed response without the map growing unbounded.
const recentLimit = 64

// Synthesizer routes synthesis requests through the provider factory and
// normalizes provider failures into capability errors the pipeline can act
// on. Requests carrying an idempotency key memoize their response: the
// queue delivers at least once, and a redelivered stage should not spend
// provider tokens twice for the same prose.
type Synthesizer struct {
	factory *ProviderFactory
	config  *common.Config
	logger  arbor.ILogger

	mu     sync.Mutex
	recent map[string]string
	order  []string
}

// NewSynthesizer wraps a provider factory as the pipeline's language
// synthesis capability.
func NewSynthesizer(factory *ProviderFactory, cfg *common.Config, logger arbor.ILogger) *Synthesizer {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Synthesizer{
		factory: factory,
		config:  cfg,
		logger:  logger,
		recent:  make(map[string]string),
	}
}

// Synthesize generates text for the request using the configured default
// provider. Rate limits and transport faults come back retryable; missing
// credentials and malformed requests are permanent.
func (s *Synthesizer) Synthesize(ctx context.Context, req *interfaces.SynthesisRequest) (string, error) {
	if req == nil || len(req.Messages) == 0 {
		return "", models.NewPermanentCapabilityError("synthesis", fmt.Errorf("empty synthesis request"))
	}

	if cached, ok := s.lookupRecent(req.IdempotencyKey); ok {
		s.logger.Debug().Str("idempotency_key", req.IdempotencyKey).Msg("Reusing memoized synthesis response")
		return cached, nil
	}

	system := req.System
	if instr, ok := modeInstructions[req.Mode]; ok {
		system = strings.TrimSpace(system + "\n\n" + instr)
	}
	if req.Language != "" && req.Language != "en" {
		system = strings.TrimSpace(system + "\n\nRespond in the language with BCP 47 tag: " + req.Language)
	}

	contentReq := &ContentRequest{
		Messages:          req.Messages,
		Model:             s.defaultModel(),
		Temperature:       s.defaultTemperature(),
		SystemInstruction: system,
	}

	start := time.Now()
	resp, err := s.factory.Generate(ctx, contentReq)
	if err != nil {
		return "", s.classify(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", models.NewCapabilityError("synthesis", fmt.Errorf("provider %s returned empty response", resp.Provider))
	}

	s.storeRecent(req.IdempotencyKey, text)

	s.logger.Debug().
		Str("provider", string(resp.Provider)).
		Str("mode", req.Mode).
		Str("duration", time.Since(start).String()).
		Msg("Synthesis complete")

	return text, nil
}

func (s *Synthesizer) lookupRecent(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.recent[key]
	return text, ok
}

func (s *Synthesizer) storeRecent(key, text string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recent[key]; exists {
		s.recent[key] = text
		return
	}
	if len(s.order) >= recentLimit {
		delete(s.recent, s.order[0])
		s.order = s.order[1:]
	}
	s.recent[key] = text
	s.order = append(s.order, key)
}

func (s *Synthesizer) defaultModel() string {
	if s.config.LLM.DefaultProvider == common.LLMProviderGemini {
		return s.config.Gemini.Model
	}
	return s.config.Claude.Model
}

func (s *Synthesizer) defaultTemperature() float32 {
	if s.config.LLM.DefaultProvider == common.LLMProviderGemini {
		return s.config.Gemini.Temperature
	}
	return s.config.Claude.Temperature
}

// classify maps a provider error onto the capability error taxonomy.
func (s *Synthesizer) classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key not configured"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "at least one user message"):
		return models.NewPermanentCapabilityError("synthesis", err)
	default:
		// Rate limits, 5xx, and transport faults are all worth retrying.
		return models.NewCapabilityError("synthesis", err)
	}
}

// HealthCheck verifies that at least one provider is usable without
// spending tokens.
func (s *Synthesizer) HealthCheck(ctx context.Context) error {
	if s.config.Claude.APIKey == "" && s.config.Gemini.APIKey == "" {
		return fmt.Errorf("no language model provider configured")
	}
	return nil
}

// Close releases the underlying provider clients.
func (s *Synthesizer) Close() error {
	return s.factory.Close()
}
