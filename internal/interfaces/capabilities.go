package interfaces

import (
	"context"

	"github.com/ternarybob/censeo/internal/models"
)

// The pipeline core does not implement document decoding, translation,
// entity extraction, market data, or language synthesis. Each is an external
// capability behind one of the interfaces below, swappable mock vs. real.
// Every call must be safe to retry; handlers deduplicate by an idempotency
// key derived from job, stage, and attempt.

// TextExtractor normalizes raw document bytes into clean text.
type TextExtractor interface {
	// ExtractText decodes blob according to format and returns plain text.
	ExtractText(ctx context.Context, blob []byte, format models.DocumentFormat) (string, error)

	// DetectFormat sniffs the document format from raw bytes.
	// Returns an error when the bytes match no supported format.
	DetectFormat(blob []byte) (models.DocumentFormat, error)
}

// Translator converts text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// EntityExtractor pulls named entities and a document-level sentiment from
// normalized text.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) (*models.Entities, float64, error)
}

// CompanyContext is the financial and sector context returned for a ticker.
type CompanyContext struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Sector    string  `json:"sector"`
	MarketCap float64 `json:"market_cap"`
	// Beta is the volatility baseline used as the ticker's risk measure.
	Beta float64 `json:"beta"`
	// SectorExposure weights the ticker's revenue exposure to its sector.
	SectorExposure float64 `json:"sector_exposure"`
}

// CompanyLookup retrieves sector and financial context for a ticker.
type CompanyLookup interface {
	LookupCompany(ctx context.Context, ticker string) (*CompanyContext, error)

	// TickersForSector returns the tracked tickers belonging to a sector.
	TickersForSector(ctx context.Context, sector string) ([]string, error)
}

// SynthesisRequest is a provider-agnostic language synthesis request.
type SynthesisRequest struct {
	System   string
	Messages []Message
	// Mode selects the prompt register: "summary", "detailed", "executive".
	Mode string
	// Language is the target output language (BCP 47 primary tag).
	Language string
	// IdempotencyKey makes retried calls deduplicable by the provider.
	IdempotencyKey string
}

// Message is a single turn passed to a synthesis provider.
type Message struct {
	Role    string
	Content string
}

// Synthesizer is the language-model capability used for impact tagging,
// per-ticker synthesis, decision summaries, and chat replies.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *SynthesisRequest) (string, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
