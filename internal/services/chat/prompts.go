package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/censeo/internal/models"
)

const analystSystem = "You are an equity research analyst. You answer questions about one specific " +
	"legislative analysis whose per-ticker decisions are given below. Ground every answer in those " +
	"decisions and scores; when a question falls outside the analysis, say so rather than speculate. " +
	"Never present the decisions as personalized investment advice."

const condenseSystem = "Condense the following conversation turns into a short factual summary that " +
	"preserves every question asked and every position stated. Output only the summary."

// buildJobContext renders a completed analysis as the grounding block fed
// to the model with every reply.
func buildJobContext(jobID string, result *models.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analysis %s\n", jobID)
	if result.Summary != "" {
		sb.WriteString(result.Summary)
		sb.WriteString("\n")
	}
	sb.WriteString("Per-ticker decisions:\n")

	tickers := make([]string, 0, len(result.Tickers))
	for ticker := range result.Tickers {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		o := result.Tickers[ticker]
		fmt.Fprintf(&sb, "- %s (%s): %s, score %.3f, sentiment %.2f, law impact %.2f, risk diff %.2f, confidence %.2f\n",
			ticker, o.Sector, o.Decision, o.FinalScore, o.Sentiment, o.LawImpact, o.RiskDiff, o.Confidence)
	}
	return sb.String()
}
