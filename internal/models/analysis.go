package models

// ImpactBucket classifies a sector's exposure to the analyzed law.
type ImpactBucket string

const (
	ImpactStrongPositive   ImpactBucket = "strong_positive"
	ImpactModeratePositive ImpactBucket = "moderate_positive"
	ImpactModerateNegative ImpactBucket = "moderate_negative"
	ImpactStrongNegative   ImpactBucket = "strong_negative"
)

// Entities holds the named entities extracted from the normalized text.
type Entities struct {
	Sectors    []string `json:"sectors"`
	Companies  []string `json:"companies"`
	Indicators []string `json:"indicators"`
}

// SectorImpact is the per-sector classification produced by the enrich stage.
type SectorImpact struct {
	Sector string       `json:"sector"`
	Bucket ImpactBucket `json:"bucket"`
	// Score is the signed tag score the bucket was derived from.
	Score float64 `json:"score"`
	// Mentions counts vocabulary keyword hits for the sector.
	Mentions int `json:"mentions"`
}

// LawAnalysis is the combined output of the extract and enrich stages,
// consumed by the lookup stage.
type LawAnalysis struct {
	NormalizedText string         `json:"normalized_text" validate:"required"`
	Language       string         `json:"language" validate:"required"`
	Entities       Entities       `json:"entities"`
	MacroTags      []string       `json:"macro_tags"`
	MicroTags      []string       `json:"micro_tags"`
	SectorImpacts  []SectorImpact `json:"sector_impacts"`
	// Sentiment is the document-level cue polarity in [-1, 1], applied to
	// every ticker signal derived from this analysis.
	Sentiment  float64 `json:"sentiment" validate:"gte=-1,lte=1"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// ExtractResult is the extract stage output: normalized text plus detection
// metadata. Enrich builds the LawAnalysis on top of it.
type ExtractResult struct {
	NormalizedText string `json:"normalized_text" validate:"required"`
	Language       string `json:"language" validate:"required"`
	// SourceLanguage is the detected language before translation, when the
	// document was translated to the canonical working language.
	SourceLanguage string `json:"source_language,omitempty"`
	Chunks         int    `json:"chunks"`
}

// TickerSignal carries the normalized per-security inputs to the scoring
// function. Immutable once produced by the lookup stage.
type TickerSignal struct {
	Ticker    string  `json:"ticker" validate:"required"`
	Sector    string  `json:"sector" validate:"required"`
	Sentiment float64 `json:"sentiment" validate:"gte=-1,lte=1"`
	LawImpact float64 `json:"law_impact" validate:"gte=-1,lte=1"`
	// RiskDiff is the signed deviation from the sector-average risk,
	// computed over tickers sharing the sector within the same job.
	RiskDiff   float64 `json:"risk_diff"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// LookupResult is the lookup stage output.
type LookupResult struct {
	Signals []TickerSignal `json:"signals" validate:"required,dive"`
}

// Action is the categorical recommendation derived from a final score.
type Action string

const (
	ActionStrongSell Action = "strong_sell"
	ActionSell       Action = "sell"
	ActionBuy        Action = "buy"
	ActionStrongBuy  Action = "strong_buy"
)

// Decision is the final bounded score and action for one ticker. Derived
// deterministically from a TickerSignal; never mutated after creation.
type Decision struct {
	Ticker     string  `json:"ticker"`
	FinalScore float64 `json:"final_score"`
	Action     Action  `json:"action"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// TickerOutcome is the published per-ticker result shape returned by Poll.
type TickerOutcome struct {
	Sector     string  `json:"sector"`
	Sentiment  float64 `json:"sentiment"`
	LawImpact  float64 `json:"law_impact"`
	RiskDiff   float64 `json:"risk_diff"`
	FinalScore float64 `json:"final_score"`
	Decision   Action  `json:"decision"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult is the decide stage output persisted on job completion.
type AnalysisResult struct {
	Tickers map[string]TickerOutcome `json:"tickers"`
	Summary string                   `json:"summary"`
}

// JobStatusView is the snapshot returned by Poll.
type JobStatusView struct {
	JobID  string          `json:"job_id"`
	Stage  Stage           `json:"stage"`
	Status string          `json:"status"`
	Result *AnalysisResult `json:"result,omitempty"`
	Error  *JobError       `json:"error,omitempty"`
}
