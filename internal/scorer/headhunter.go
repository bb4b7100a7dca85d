package scorer

import (
	"fmt"
	"strings"

	"github.com/sells-group/rolescout/internal/model"
)

// Headhunter rates how attractive the role is to recruit for: placement
// probability 35%, commission value 30%, competition 20%, candidate fit 15%.
func (s *Scorer) Headhunter(p model.Payload) Result {
	var signals []string
	breakdown := make(map[string]float64, 4)

	_, hhProcess, processSignals := scoreProcessQuality(
		p.ManagerRating, p.ResponsivenessDays, p.InterviewStages, p.Highlights())
	breakdown["placement_probability"] = round3(hhProcess)
	signals = append(signals, topN(processSignals, 2)...)

	_, feeScore, compSignals := scoreCompensation(p.SalaryUpperBound, p.PercentFee)

	hiring := 1
	if p.HiringCount != nil && *p.HiringCount > 0 {
		hiring = *p.HiringCount
	}
	volumeScore := clamp01(float64(hiring) / 3)
	if hiring >= 3 {
		signals = append(signals, fmt.Sprintf("Hiring %d+ (multiple commissions)", hiring))
	}

	bonusScore := 0.5
	for _, h := range p.Highlights() {
		if h == "ROLE_BONUS" {
			bonusScore = 1.0
			signals = append(signals, "Role bonus available")
			break
		}
	}

	commissionScore := feeScore*0.5 + volumeScore*0.3 + bonusScore*0.2
	breakdown["commission_value"] = round3(commissionScore)
	signals = append(signals, topN(compSignals, 1)...)

	competitionScore, competitionSignals := scoreCompetition(
		p.ApprovedRecruitersCount, p.TotalInterviewing, p.TotalHired)
	breakdown["competition"] = round3(competitionScore)
	signals = append(signals, topN(competitionSignals, 2)...)

	typeScore := 0.6
	for _, rt := range p.RoleTypes {
		if s.rules.IsCommonRoleType(rt) {
			typeScore = 1.0
			break
		}
	}

	locationScore := 0.5
	if strings.EqualFold(p.WorkplaceType, "remote") {
		locationScore = 1.0
	} else {
		for _, loc := range p.Locations {
			if s.rules.IsSupportedLocation(loc) {
				locationScore = 1.0
				break
			}
		}
	}

	candidateFit := typeScore*0.5 + locationScore*0.5
	breakdown["candidate_fit"] = round3(candidateFit)

	final := breakdown["placement_probability"]*0.35 +
		breakdown["commission_value"]*0.30 +
		breakdown["competition"]*0.20 +
		breakdown["candidate_fit"]*0.15

	return Result{
		Score:     round2(final),
		Breakdown: breakdown,
		Signals:   topN(signals, 5),
	}
}

// scoreCompetition rates how contested the role is: fewer approved
// recruiters is better, prior placements prove the client hires, a moderate
// interview pipeline shows activity without saturation.
func scoreCompetition(approvedRecruiters, totalInterviewing, totalHired *int) (float64, []string) {
	var signals []string

	recruiters := 0
	if approvedRecruiters != nil {
		recruiters = *approvedRecruiters
	}
	var recruiterScore float64
	switch {
	case recruiters == 0:
		recruiterScore = 1.0
		signals = append(signals, "Blue ocean (0 approved recruiters)")
	case recruiters <= 2:
		recruiterScore = 0.8
	case recruiters <= 5:
		recruiterScore = 0.6
	case recruiters <= 10:
		recruiterScore = 0.4
	default:
		recruiterScore = 0.2
		signals = append(signals, fmt.Sprintf("Crowded (%d recruiters)", recruiters))
	}

	hired := 0
	if totalHired != nil {
		hired = *totalHired
	}
	var trackScore float64
	switch {
	case hired >= 2:
		trackScore = 1.0
		signals = append(signals, fmt.Sprintf("%d placements made (proven buyer)", hired))
	case hired >= 1:
		trackScore = 0.8
		signals = append(signals, fmt.Sprintf("%d placement(s) made", hired))
	default:
		trackScore = 0.5
	}

	interviewing := 0
	if totalInterviewing != nil {
		interviewing = *totalInterviewing
	}
	pipelineScore := 0.7
	switch {
	case interviewing >= 1 && interviewing <= 5:
		pipelineScore = 1.0
		signals = append(signals, fmt.Sprintf("%d candidates interviewing", interviewing))
	case interviewing > 10:
		pipelineScore = 0.6
	}

	return recruiterScore*0.5 + trackScore*0.3 + pipelineScore*0.2, signals
}
