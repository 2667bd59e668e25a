package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"google.golang.org/genai"
)

// Provider identifies a language model backend.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
)

// ContentRequest is the provider-neutral generation request used internally
// by the factory. The synthesizer maps interfaces.SynthesisRequest onto it.
type ContentRequest struct {
	Messages          []interfaces.Message
	Model             string
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
}

// ContentResponse carries generated text plus the provider and model that
// produced it.
type ContentResponse struct {
	Text     string
	Provider Provider
	Model    string
}

// ProviderFactory owns lazily initialized provider clients and routes
// generation requests to the backend a model name implies.
type ProviderFactory struct {
	config *common.Config
	logger arbor.ILogger

	mu           sync.Mutex
	claudeClient *anthropic.Client
	geminiClient *genai.Client

	retry *RetryConfig
}

// NewProviderFactory creates a factory. Clients are created on first use so
// a missing API key only fails requests that need that provider.
func NewProviderFactory(cfg *common.Config, logger arbor.ILogger) *ProviderFactory {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &ProviderFactory{
		config: cfg,
		logger: logger,
		retry:  NewDefaultRetryConfig(),
	}
}

// DetectProvider decides which backend serves a model name. Empty model
// names fall back to the configured default provider.
func (f *ProviderFactory) DetectProvider(model string) Provider {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "claude-"), strings.HasPrefix(m, "claude/"), strings.HasPrefix(m, "anthropic/"):
		return ProviderClaude
	case strings.HasPrefix(m, "gemini-"), strings.HasPrefix(m, "gemini/"), strings.HasPrefix(m, "google/"):
		return ProviderGemini
	}
	if f.config != nil && f.config.LLM.DefaultProvider == common.LLMProviderGemini {
		return ProviderGemini
	}
	return ProviderClaude
}

// NormalizeModel strips router-style provider prefixes from a model name.
func NormalizeModel(model string) string {
	m := strings.TrimSpace(model)
	for _, prefix := range []string{"anthropic/", "claude/", "google/", "gemini/"} {
		if strings.HasPrefix(strings.ToLower(m), prefix) {
			return m[len(prefix):]
		}
	}
	return m
}

func (f *ProviderFactory) getClaudeClient() (*anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeClient != nil {
		return f.claudeClient, nil
	}

	apiKey := f.config.Claude.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("claude API key not configured")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	f.claudeClient = &client
	return f.claudeClient, nil
}

func (f *ProviderFactory) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	apiKey := f.config.Gemini.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	f.geminiClient = client
	return f.geminiClient, nil
}

// Generate routes the request to the provider implied by req.Model and
// returns the generated text.
func (f *ProviderFactory) Generate(ctx context.Context, req *ContentRequest) (*ContentResponse, error) {
	provider := f.DetectProvider(req.Model)
	model := NormalizeModel(req.Model)

	switch provider {
	case ProviderGemini:
		if model == "" {
			model = f.config.Gemini.Model
		}
		return f.generateWithGemini(ctx, req, model)
	default:
		if model == "" {
			model = f.config.Claude.Model
		}
		return f.generateWithClaude(ctx, req, model)
	}
}

func (f *ProviderFactory) generateWithClaude(ctx context.Context, req *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.getClaudeClient()
	if err != nil {
		return nil, err
	}

	messages, system, err := convertMessagesToClaude(req.Messages)
	if err != nil {
		return nil, err
	}
	if req.SystemInstruction != "" {
		system = req.SystemInstruction
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.config.Claude.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude generation failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	f.logger.Debug().
		Str("model", model).
		Str("duration", time.Since(start).String()).
		Msg("Claude generation complete")

	return &ContentResponse{
		Text:     sb.String(),
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}

func (f *ProviderFactory) generateWithGemini(ctx context.Context, req *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.getGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := convertMessagesToGemini(req.Messages)

	config := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	var resp *genai.GenerateContentResponse
	var lastErr error
	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		start := time.Now()
		resp, lastErr = client.Models.GenerateContent(ctx, model, contents, config)
		if lastErr == nil {
			f.logger.Debug().
				Str("model", model).
				Str("duration", time.Since(start).String()).
				Msg("Gemini generation complete")
			break
		}

		if !IsRateLimitError(lastErr) || attempt == f.retry.MaxRetries {
			return nil, fmt.Errorf("gemini generation failed: %w", lastErr)
		}

		backoff := f.retry.CalculateBackoff(attempt, ExtractRetryDelay(lastErr))
		f.logger.Warn().
			Int("attempt", attempt+1).
			Str("backoff", backoff.String()).
			Msg("Gemini rate limited, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return &ContentResponse{
		Text:     resp.Text(),
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}

// convertMessagesToClaude maps neutral messages to the Anthropic SDK shape.
// System turns are pulled out because the API takes them separately.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	var out []anthropic.MessageParam
	var system string
	hasUser := false

	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			hasUser = true
		}
	}

	if !hasUser {
		return nil, "", fmt.Errorf("at least one user message is required")
	}
	return out, system, nil
}

// convertMessagesToGemini maps neutral messages to genai contents. System
// turns are folded into user turns since Gemini takes the system
// instruction via config.
func convertMessagesToGemini(messages []interfaces.Message) []*genai.Content {
	var out []*genai.Content
	for _, msg := range messages {
		role := genai.RoleUser
		if strings.ToLower(msg.Role) == "assistant" {
			role = genai.RoleModel
		}
		part := genai.NewPartFromText(msg.Content)
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}
	return out
}

// Close releases provider clients. Both SDK clients are connectionless HTTP
// wrappers, so this only clears the cached instances.
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claudeClient = nil
	f.geminiClient = nil
	return nil
}
