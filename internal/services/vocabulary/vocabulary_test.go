package vocabulary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/models"
)

const testVocab = `
sectors:
  - name: Energy
    keywords: [energy, oil, "renewable energy", pipeline]
    tickers: [XOM, CVX, NEE]
  - name: Technology
    keywords: [software, "data center"]
    tickers: [MSFT, GOOGL]

tags:
  - tag: energy policy
    sector: Energy
    scope: macro
    impact: strong_positive
  - tag: antitrust
    sector: Technology
    scope: micro
    impact: strong_negative

positive_cues: [subsidy, incentive, support]
negative_cues: [ban, penalty, restrict]
`

func loadTestVocab(t *testing.T) *Vocabulary {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	if err := os.WriteFile(path, []byte(testVocab), 0644); err != nil {
		t.Fatal(err)
	}

	vocab, err := Load(path, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Failed to load vocabulary: %v", err)
	}
	return vocab
}

func TestLoadRejectsEmptyVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("sectors: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, arbor.NewLogger()); err == nil {
		t.Error("Expected error for a vocabulary with no sectors")
	}
}

func TestTickersForSector(t *testing.T) {
	vocab := loadTestVocab(t)

	tickers := vocab.TickersForSector("energy")
	if len(tickers) != 3 || tickers[0] != "XOM" {
		t.Errorf("Unexpected tickers for Energy: %v", tickers)
	}
	if got := vocab.TickersForSector("Utilities"); got != nil {
		t.Errorf("Expected nil for unknown sector, got %v", got)
	}
}

func TestCuratedTagForcesBucket(t *testing.T) {
	vocab := loadTestVocab(t)

	// The document restricts energy production, but the curated
	// "energy policy" tag pins the sector strong_positive anyway.
	text := "This energy policy act will ban certain oil pipeline permits and add a penalty regime."
	result := vocab.TagText(text)

	if len(result.MacroTags) != 1 || result.MacroTags[0] != "energy policy" {
		t.Errorf("Expected macro tag [energy policy], got %v", result.MacroTags)
	}

	var energy *models.SectorImpact
	for i := range result.SectorImpacts {
		if result.SectorImpacts[i].Sector == "Energy" {
			energy = &result.SectorImpacts[i]
		}
	}
	if energy == nil {
		t.Fatal("Expected an Energy sector impact")
	}
	if energy.Bucket != models.ImpactStrongPositive {
		t.Errorf("Expected strong_positive from curated tag, got %s", energy.Bucket)
	}
	if energy.Mentions < 2 {
		t.Errorf("Expected keyword mentions counted, got %d", energy.Mentions)
	}
}

func TestCuePolarityBucketsUncuratedSector(t *testing.T) {
	vocab := loadTestVocab(t)

	positive := vocab.TagText("A new subsidy and incentive program will support software companies building a data center.")
	var tech *models.SectorImpact
	for i := range positive.SectorImpacts {
		if positive.SectorImpacts[i].Sector == "Technology" {
			tech = &positive.SectorImpacts[i]
		}
	}
	if tech == nil {
		t.Fatal("Expected a Technology sector impact")
	}
	if tech.Bucket != models.ImpactStrongPositive {
		t.Errorf("Expected strong_positive from all-positive cues, got %s", tech.Bucket)
	}

	negative := vocab.TagText("The law will ban and restrict software exports, with a penalty for violations.")
	tech = nil
	for i := range negative.SectorImpacts {
		if negative.SectorImpacts[i].Sector == "Technology" {
			tech = &negative.SectorImpacts[i]
		}
	}
	if tech == nil {
		t.Fatal("Expected a Technology sector impact")
	}
	if tech.Bucket != models.ImpactStrongNegative {
		t.Errorf("Expected strong_negative from all-negative cues, got %s", tech.Bucket)
	}
}

func TestMicroTagScope(t *testing.T) {
	vocab := loadTestVocab(t)

	result := vocab.TagText("An antitrust inquiry into software platforms.")
	if len(result.MicroTags) != 1 || result.MicroTags[0] != "antitrust" {
		t.Errorf("Expected micro tag [antitrust], got %v", result.MicroTags)
	}
	if len(result.MacroTags) != 0 {
		t.Errorf("Expected no macro tags, got %v", result.MacroTags)
	}
}

func TestUnmentionedSectorsAreSkipped(t *testing.T) {
	vocab := loadTestVocab(t)

	result := vocab.TagText("A bill about agricultural subsidies for dairy farmers.")
	for _, impact := range result.SectorImpacts {
		t.Errorf("Expected no sector impacts, got %s", impact.Sector)
	}
}
