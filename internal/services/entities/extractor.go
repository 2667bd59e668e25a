package entities

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/ternarybob/censeo/internal/services/vocabulary"
)

// companyNames maps company mention forms to their canonical display names.
// Mirrors the tracked-ticker universe in the company lookup service.
var companyNames = map[string]string{
	"exxon":             "Exxon Mobil",
	"exxonmobil":        "Exxon Mobil",
	"chevron":           "Chevron",
	"nextera":           "NextEra Energy",
	"general electric":  "General Electric",
	"apple":             "Apple",
	"microsoft":         "Microsoft",
	"alphabet":          "Alphabet",
	"google":            "Alphabet",
	"amazon":            "Amazon",
	"meta":              "Meta Platforms",
	"nvidia":            "NVIDIA",
	"amd":               "Advanced Micro Devices",
	"intel":             "Intel",
	"tesla":             "Tesla",
	"ford":              "Ford Motor",
	"general motors":    "General Motors",
	"jpmorgan":          "JPMorgan Chase",
	"goldman sachs":     "Goldman Sachs",
	"bank of america":   "Bank of America",
	"johnson & johnson": "Johnson & Johnson",
	"pfizer":            "Pfizer",
	"merck":             "Merck",
	"abbvie":            "AbbVie",
	"unitedhealth":      "UnitedHealth",
	"walmart":           "Walmart",
	"boeing":            "Boeing",
	"lockheed":          "Lockheed Martin",
	"verizon":           "Verizon",
	"at&t":              "AT&T",
	"disney":            "Walt Disney",
	"coca-cola":         "Coca-Cola",
	"pepsico":           "PepsiCo",
}

// indicatorTerms are the economic indicator mentions worth surfacing from
// legislative text.
var indicatorTerms = []string{
	"gdp", "inflation", "interest rate", "unemployment", "consumer spending",
	"tariff", "subsidy", "tax credit", "tax rate", "carbon price",
	"minimum wage", "trade deficit", "federal funds rate", "capital requirement",
	"price cap", "emissions target", "supply chain",
}

// Extractor is the rule-based entity extraction capability. It reads the
// shared sector vocabulary for sector mentions and cue sentiment, and its
// own term lists for companies and indicators.
type Extractor struct {
	vocab  *vocabulary.Vocabulary
	logger arbor.ILogger
}

// NewExtractor builds an extractor over the loaded vocabulary.
func NewExtractor(vocab *vocabulary.Vocabulary, logger arbor.ILogger) (*Extractor, error) {
	if vocab == nil {
		return nil, fmt.Errorf("vocabulary is required")
	}
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Extractor{vocab: vocab, logger: logger}, nil
}

// ExtractEntities scans text for sector, company, and indicator mentions
// and computes the document-level sentiment from vocabulary cue polarity.
func (e *Extractor) ExtractEntities(ctx context.Context, text string) (*models.Entities, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, 0, models.NewPermanentCapabilityError("entity_extraction", fmt.Errorf("empty text"))
	}

	lower := strings.ToLower(text)

	var sectors []string
	for _, name := range e.vocab.SectorNames() {
		if mentionsSector(lower, e.vocab, name) {
			sectors = append(sectors, name)
		}
	}

	companySet := make(map[string]struct{})
	for form, canonical := range companyNames {
		if strings.Contains(lower, form) {
			companySet[canonical] = struct{}{}
		}
	}
	companies := make([]string, 0, len(companySet))
	for name := range companySet {
		companies = append(companies, name)
	}
	sort.Strings(companies)

	var indicators []string
	for _, term := range indicatorTerms {
		if strings.Contains(lower, term) {
			indicators = append(indicators, term)
		}
	}

	sentiment := e.vocab.Sentiment(text)

	e.logger.Debug().
		Int("sectors", len(sectors)).
		Int("companies", len(companies)).
		Int("indicators", len(indicators)).
		Msg("Entities extracted")

	return &models.Entities{
		Sectors:    sectors,
		Companies:  companies,
		Indicators: indicators,
	}, sentiment, nil
}

func mentionsSector(lower string, vocab *vocabulary.Vocabulary, sector string) bool {
	for _, s := range vocab.Sectors {
		if !strings.EqualFold(s.Name, sector) {
			continue
		}
		for _, kw := range s.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}
