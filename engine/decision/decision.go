// Package decision implements the claim decision engine: a pure, determin-
// istic mapping from survey facts and image findings to a final verdict,
// a risk grade, and the ordered reasons behind them. No I/O, never fails.
package decision

import "github.com/ClaimSightAI/claimsight-mvp/engine/domain"

// Rule evaluation order is fixed. Each firing rule appends its reason and
// overwrites the verdict/risk pair (last writer wins); reasons accumulate
// across all firing rules. Absent survey answers never fire a rule.
const (
	reasonImageReview    = "Image Evidence requires manual review (Severity/Confidence Check)"
	reasonImageDefault   = "Damage criteria not met"
	reasonPolicyInvalid  = "Policy Expired or Invalid"
	reasonAlcohol        = "Driver Alcohol Intoxication Detected"
	reasonInvalidLicense = "Driver License Invalid"
	reasonSurveyModel    = "Survey risk factors failed (Auto-ML)"
	reasonAllPassed      = "All checks passed"
)

// Decide combines survey and image signals into one Decision.
func Decide(survey domain.SurveyFacts, image domain.ImageFindings) domain.Decision {
	d := domain.Decision{
		FinalDecision: domain.VerdictApproved,
		RiskLevel:     domain.RiskLow,
		Reasons:       []string{},
	}

	switch image.Claimability {
	case domain.NotClaimable, "Non-Claimable": // older analyzers emit the hyphenated form
		reason := image.ClaimReason
		if reason == "" {
			reason = reasonImageDefault
		}
		reject(&d, reason)
	case domain.RequiresReview:
		d.FinalDecision = domain.VerdictRequiresReview
		d.RiskLevel = domain.RiskMedium
		d.Reasons = append(d.Reasons, reasonImageReview)
	}

	if v, ok := survey.ClaimablePolicy(); ok && !v {
		reject(&d, reasonPolicyInvalid)
	}
	if v, ok := survey.AlcoholIntoxicated(); ok && v {
		reject(&d, reasonAlcohol)
	}
	if v, ok := survey.DriverLicenseValid(); ok && !v {
		reject(&d, reasonInvalidLicense)
	}
	if survey.PredictedVerdict() == string(domain.VerdictRejected) {
		reject(&d, reasonSurveyModel)
	}

	if len(d.Reasons) == 0 {
		d.Reasons = append(d.Reasons, reasonAllPassed)
	}
	return d
}

func reject(d *domain.Decision, reason string) {
	d.FinalDecision = domain.VerdictRejected
	d.RiskLevel = domain.RiskHigh
	d.Reasons = append(d.Reasons, reason)
}
