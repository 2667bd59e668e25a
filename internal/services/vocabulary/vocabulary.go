// -----------------------------------------------------------------------
// Vocabulary - sector lexicon used by the enrich stage to tag documents
// -----------------------------------------------------------------------

package vocabulary

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/models"
	"gopkg.in/yaml.v3"
)

// Sector is one entry in the vocabulary file: a sector name, the keywords
// that signal it in legislative text, and the tickers tracked under it.
type Sector struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Tickers  []string `yaml:"tickers"`
}

// Tag binds a domain tag phrase to a sector, optionally forcing the
// sector's impact bucket regardless of cue-word polarity. Curated tags
// like "energy policy" carry an analyst-assigned direction.
type Tag struct {
	Tag    string              `yaml:"tag"`
	Sector string              `yaml:"sector"`
	Scope  string              `yaml:"scope"`            // "macro" or "micro"
	Impact models.ImpactBucket `yaml:"impact,omitempty"` // Optional forced bucket
}

// Vocabulary is the loaded sector lexicon. Read-mostly: loaded once at
// startup and shared across stage workers.
type Vocabulary struct {
	Sectors []Sector `yaml:"sectors"`
	Tags    []Tag    `yaml:"tags"`

	// PositiveCues and NegativeCues drive polarity scoring when no
	// curated tag forces a bucket.
	PositiveCues []string `yaml:"positive_cues"`
	NegativeCues []string `yaml:"negative_cues"`

	// StrongThreshold separates strong from moderate impact buckets.
	// Zero means the default of 0.5.
	StrongThreshold float64 `yaml:"strong_threshold,omitempty"`
}

// Load reads and parses the vocabulary YAML file.
func Load(path string, logger arbor.ILogger) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}

	var vocab Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}
	if len(vocab.Sectors) == 0 {
		return nil, fmt.Errorf("vocabulary file %s defines no sectors", path)
	}

	logger.Info().
		Str("path", path).
		Int("sectors", len(vocab.Sectors)).
		Int("tags", len(vocab.Tags)).
		Msg("Sector vocabulary loaded")

	return &vocab, nil
}

// TickersForSector returns the tracked tickers for a sector name.
func (v *Vocabulary) TickersForSector(sector string) []string {
	for _, s := range v.Sectors {
		if strings.EqualFold(s.Name, sector) {
			return s.Tickers
		}
	}
	return nil
}

// SectorUniverse returns the sector to tracked-ticker map for the whole
// vocabulary. The lookup stage resolves candidates from this universe.
func (v *Vocabulary) SectorUniverse() map[string][]string {
	universe := make(map[string][]string, len(v.Sectors))
	for _, s := range v.Sectors {
		if len(s.Tickers) > 0 {
			universe[s.Name] = s.Tickers
		}
	}
	return universe
}

// SectorNames returns all sector names in file order.
func (v *Vocabulary) SectorNames() []string {
	names := make([]string, len(v.Sectors))
	for i, s := range v.Sectors {
		names[i] = s.Name
	}
	return names
}

// TagResult is the outcome of tagging one document.
type TagResult struct {
	MacroTags     []string
	MicroTags     []string
	SectorImpacts []models.SectorImpact
}

// TagText scans normalized text for sector keywords and curated tag
// phrases, producing per-sector impact classifications. Polarity comes
// from cue-word counts unless a matched curated tag forces a bucket.
func (v *Vocabulary) TagText(text string) TagResult {
	lower := strings.ToLower(text)

	result := TagResult{}
	forced := make(map[string]models.ImpactBucket)

	for _, tag := range v.Tags {
		if !strings.Contains(lower, strings.ToLower(tag.Tag)) {
			continue
		}
		if tag.Scope == "micro" {
			result.MicroTags = append(result.MicroTags, tag.Tag)
		} else {
			result.MacroTags = append(result.MacroTags, tag.Tag)
		}
		if tag.Impact != "" {
			forced[strings.ToLower(tag.Sector)] = tag.Impact
		}
	}

	polarity := v.polarity(lower)

	for _, sector := range v.Sectors {
		mentions := 0
		for _, kw := range sector.Keywords {
			mentions += strings.Count(lower, strings.ToLower(kw))
		}

		bucket, hasForced := forced[strings.ToLower(sector.Name)]
		if mentions == 0 && !hasForced {
			continue
		}

		score := polarity
		if hasForced {
			score = bucketScore(bucket)
		} else {
			bucket = bucketFor(score, v.strongThreshold())
		}

		result.SectorImpacts = append(result.SectorImpacts, models.SectorImpact{
			Sector:   sector.Name,
			Bucket:   bucket,
			Score:    score,
			Mentions: mentions,
		})
	}

	return result
}

// Sentiment returns the document-level cue polarity in [-1, 1].
func (v *Vocabulary) Sentiment(text string) float64 {
	return v.polarity(strings.ToLower(text))
}

// polarity returns a signed cue-word score in [-1, 1].
func (v *Vocabulary) polarity(lower string) float64 {
	pos, neg := 0, 0
	for _, cue := range v.PositiveCues {
		pos += strings.Count(lower, strings.ToLower(cue))
	}
	for _, cue := range v.NegativeCues {
		neg += strings.Count(lower, strings.ToLower(cue))
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func (v *Vocabulary) strongThreshold() float64 {
	if v.StrongThreshold > 0 {
		return v.StrongThreshold
	}
	return 0.5
}

func bucketFor(score, strong float64) models.ImpactBucket {
	switch {
	case score >= strong:
		return models.ImpactStrongPositive
	case score >= 0:
		return models.ImpactModeratePositive
	case score > -strong:
		return models.ImpactModerateNegative
	default:
		return models.ImpactStrongNegative
	}
}

// bucketScore maps a forced bucket back onto a representative score so
// downstream signal math has a numeric value to work with.
func bucketScore(bucket models.ImpactBucket) float64 {
	switch bucket {
	case models.ImpactStrongPositive:
		return 0.75
	case models.ImpactModeratePositive:
		return 0.25
	case models.ImpactModerateNegative:
		return -0.25
	case models.ImpactStrongNegative:
		return -0.75
	default:
		return 0
	}
}
