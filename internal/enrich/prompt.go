package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/rolescout/internal/model"
)

const companySystemPrompt = `You are a startup analyst scoring how exciting a company is as a hiring client for a technical recruiting firm. Respond with a single JSON object and nothing else:
{"score": <float 0.0-1.0>, "reasoning": "<one or two sentences>", "signals": ["<short signal>", ...]}
Score 0.9+ only for companies with exceptional investors, momentum, or market position. Score around 0.5 when the evidence is thin.`

const extractionSystemPrompt = `You extract structured facts from job-posting free text. Respond with a single JSON object and nothing else, using exactly these keys (omit or use empty values for anything not stated in the text, never guess):
{"investors": [], "angels": [], "funding_stage": "", "funding_amount": "", "founder_background": "", "process_signals": [], "urgency_signals": [], "runway_signals": [], "positive_signals": [], "negative_signals": [], "extracted_location": "", "location_confidence": ""}
location_confidence is "high", "medium", or "low".`

func buildCompanyPrompt(companyName, contextText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\n", strings.TrimSpace(companyName))
	if contextText != "" {
		fmt.Fprintf(&sb, "\nKnown context:\n%s\n", contextText)
	}
	sb.WriteString("\nAssess this company.")
	return sb.String()
}

func buildExtractionPrompt(companyName, sourceText string) string {
	var sb strings.Builder
	if companyName != "" {
		fmt.Fprintf(&sb, "Company: %s\n\n", companyName)
	}
	sb.WriteString("Posting text:\n")
	sb.WriteString(sourceText)
	return sb.String()
}

var (
	htmlTagRE    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// stripHTML removes markup from feed free text, collapsing the result to
// single-spaced plain text.
func stripHTML(s string) string {
	s = htmlTagRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// cleanJSON strips markdown fences and pulls out the first JSON object so a
// chatty assessor response still parses.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// buildSourceText combines the role's free-text fields into the extraction
// input. Empty fields are skipped; an all-empty payload yields "".
func buildSourceText(p model.Payload) string {
	parts := make([]string, 0, 2)
	if tip := stripHTML(p.CompanyTip); tip != "" {
		parts = append(parts, tip)
	}
	if sp := stripHTML(p.SellingPoints); sp != "" {
		parts = append(parts, sp)
	}
	return strings.Join(parts, "\n\n")
}
