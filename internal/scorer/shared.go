package scorer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/rolescout/internal/registry"
)

// normalize maps a value onto [0, 1] between min and max; inverse flips the
// scale. Missing values score a neutral 0.5.
func normalize(value *float64, min, max float64, inverse bool) float64 {
	if value == nil || max == min {
		return 0.5
	}
	n := clamp01((*value - min) / (max - min))
	if inverse {
		n = 1 - n
	}
	return n
}

// scoreCompensation rates the salary band for engineers and the fee for
// headhunters in one pass, since the signals overlap.
func scoreCompensation(salaryUpper, percentFee *float64) (engScore, hhScore float64, signals []string) {
	if salaryUpper != nil && *salaryUpper > 0 {
		switch {
		case *salaryUpper >= 300000:
			engScore = 1.0
			signals = append(signals, fmt.Sprintf("$%s salary (excellent)", commas(*salaryUpper)))
		case *salaryUpper >= 250000:
			engScore = 0.85
			signals = append(signals, fmt.Sprintf("$%s salary (strong)", commas(*salaryUpper)))
		case *salaryUpper >= 200000:
			engScore = 0.6
		default:
			engScore = 0.4
		}
	} else {
		engScore = 0.3
	}

	fee := 15.0
	if percentFee != nil && *percentFee > 0 {
		fee = *percentFee
	}
	switch {
	case fee >= 18:
		hhScore = 1.0
		signals = append(signals, fmt.Sprintf("%.1f%% fee (excellent)", fee))
	case fee >= 16:
		hhScore = 0.8
		signals = append(signals, fmt.Sprintf("%.1f%% fee", fee))
	case fee >= 14:
		hhScore = 0.5
	default:
		hhScore = 0.3
	}

	salary := 200000.0
	if salaryUpper != nil && *salaryUpper > 0 {
		salary = *salaryUpper
	}
	if commission := salary * fee / 100; commission >= 40000 {
		signals = append(signals, fmt.Sprintf("$%s expected commission", commas(commission)))
	}

	return engScore, hhScore, signals
}

// scoreProcessQuality rates the hiring process for both audiences: engineers
// weight interview length, headhunters weight the manager rating; both share
// responsiveness and badges.
func scoreProcessQuality(rating, respDays *float64, stages *int, highlights []string) (engScore, hhScore float64, signals []string) {
	badges := make(map[string]struct{}, len(highlights))
	for _, h := range highlights {
		badges[h] = struct{}{}
	}

	mgr := 4.0
	if rating != nil && *rating > 0 {
		mgr = *rating
	}
	ratingScore := normalize(&mgr, 3, 5, false)
	if mgr >= 4.5 {
		signals = append(signals, fmt.Sprintf("%.1f/5 manager rating", mgr))
	}

	resp := 2.0
	if respDays != nil {
		resp = *respDays
	}
	respScore := 1 - normalize(&resp, 0, 5, false)
	if resp < 1 {
		signals = append(signals, "<1 day response time")
	} else if resp < 2 {
		signals = append(signals, fmt.Sprintf("Fast responses (%.1f days)", resp))
	}

	rounds := 5
	if stages != nil && *stages > 0 {
		rounds = *stages
	}
	var stageScore float64
	switch {
	case rounds <= 4:
		stageScore = 1.0
		signals = append(signals, fmt.Sprintf("%d interview rounds (fast process)", rounds))
	case rounds <= 6:
		stageScore = 0.7
	default:
		stageScore = 0.4
	}

	badgeScore := 0.0
	if _, ok := badges["NO_FINAL_ROUNDS"]; ok {
		badgeScore += 0.3
		signals = append(signals, "No final rounds required")
	}
	if _, ok := badges["TRUSTED_CLIENT"]; ok {
		badgeScore += 0.25
		signals = append(signals, "Trusted client")
	}
	if _, ok := badges["RESPONSIVE"]; ok {
		badgeScore += 0.2
	}
	if _, ok := badges["HIRING_MULTIPLE"]; ok {
		badgeScore += 0.15
		signals = append(signals, "Hiring multiple")
	}
	badgeScore = clamp01(badgeScore)

	engScore = stageScore*0.4 + respScore*0.3 + badgeScore*0.3
	hhScore = ratingScore*0.4 + respScore*0.3 + badgeScore*0.3
	return engScore, hhScore, signals
}

// scoreInvestors rates investor quality by substring matching against the
// tier tables: tier-1 names count 0.30 each, tier-2 0.15. The excitement
// path also credits notable angels at 0.15. No investors at all scores a
// below-average 0.3.
func scoreInvestors(rules *registry.Rules, investors []string, includeAngels bool) (score float64, tier1Count int, signals []string) {
	if len(investors) == 0 {
		return 0.3, 0, nil
	}

	tier2Count := 0
	angelCount := 0
	for _, inv := range investors {
		switch {
		case rules.MatchesTier1(inv):
			tier1Count++
			signals = append(signals, fmt.Sprintf("Tier-1 VC: %s", inv))
		case rules.MatchesTier2(inv):
			tier2Count++
			if len(signals) < 3 {
				signals = append(signals, fmt.Sprintf("Tier-2 VC: %s", inv))
			}
		case includeAngels && rules.MatchesAngel(inv):
			angelCount++
			if len(signals) < 3 {
				signals = append(signals, fmt.Sprintf("Notable angel: %s", inv))
			}
		}
	}

	score = clamp01(float64(tier1Count)*0.30 + float64(tier2Count)*0.15 + float64(angelCount)*0.15)
	return score, tier1Count, signals
}

// stageScores is the funding-round desirability table. Series A is the
// sweet spot: funded enough to pay, early enough for the equity to matter.
var stageScores = map[string]float64{
	"SEED":            0.6,
	"PRE_SEED":        0.5,
	"SERIES_A":        1.0,
	"SERIES_B":        0.95,
	"SERIES_C":        0.85,
	"SERIES_D":        0.75,
	"SERIES_D_PLUS":   0.7,
	"SERIES_E":        0.65,
	"POST_IPO_EQUITY": 0.5,
}

// scoreFunding rates funding momentum: 60% raised amount (diminishing
// returns above $100M), 40% stage.
func scoreFunding(amount, stage string) (float64, []string) {
	var signals []string

	usd := registry.ParseFundingAmount(amount)
	var amountScore float64
	switch {
	case usd >= 100_000_000:
		amountScore = 1.0
		signals = append(signals, fmt.Sprintf("$%.0fM raised (well-funded)", usd/1_000_000))
	case usd >= 30_000_000:
		amountScore = 0.85
		signals = append(signals, fmt.Sprintf("$%.0fM raised", usd/1_000_000))
	case usd >= 10_000_000:
		amountScore = 0.7
		signals = append(signals, fmt.Sprintf("$%.1fM raised", usd/1_000_000))
	case usd >= 5_000_000:
		amountScore = 0.55
	case usd > 0:
		amountScore = 0.4
	default:
		amountScore = 0.3
	}

	normalized := strings.ReplaceAll(strings.ToUpper(stage), " ", "_")
	stageScore, ok := stageScores[normalized]
	if !ok {
		stageScore = 0.5
	}
	if stage != "" && stageScore >= 0.8 {
		signals = append(signals, fmt.Sprintf("Funding stage: %s", stageTitle(stage)))
	}

	return amountScore*0.6 + stageScore*0.4, signals
}

// stageTitle renders SERIES_A as "Series A" for signal text.
func stageTitle(stage string) string {
	words := strings.Split(strings.ToLower(strings.ReplaceAll(stage, "_", " ")), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// commas renders a dollar figure with thousands separators.
func commas(v float64) string {
	s := strconv.FormatInt(int64(v), 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
