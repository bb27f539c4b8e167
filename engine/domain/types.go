// Package domain defines the core claim-adjudication types, constants, and
// validation for the ClaimSight engine. It acts as the validation gate at
// pipeline entry points and carries no external dependencies.
package domain

import "time"

// Verdict is the final adjudication outcome of a claim.
type Verdict string

const (
	VerdictApproved       Verdict = "APPROVED"
	VerdictRejected       Verdict = "REJECTED"
	VerdictRequiresReview Verdict = "REQUIRES_REVIEW"
	VerdictError          Verdict = "ERROR"
)

// RiskLevel grades how risky a claim looks to the insurer.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ClaimStatus tracks the lifecycle of a persisted claim row before a
// terminal verdict is written.
type ClaimStatus string

const (
	StatusReceived   ClaimStatus = "RECEIVED"
	StatusProcessing ClaimStatus = "PROCESSING"
)

// Decision is the output of the decision engine: a verdict, a risk grade,
// and the ordered human-readable reasons that produced them.
type Decision struct {
	FinalDecision Verdict   `json:"final_decision"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Reasons       []string  `json:"reason"`
}

// Severity classifies aggregate visual damage.
type Severity string

const (
	SeverityNone  Severity = "NONE"
	SeverityMinor Severity = "MINOR"
	SeverityMajor Severity = "MAJOR"
)

// EvidenceStrength grades how much visual evidence backs the findings.
type EvidenceStrength string

const (
	EvidenceNone   EvidenceStrength = "NONE"
	EvidenceWeak   EvidenceStrength = "WEAK"
	EvidenceMedium EvidenceStrength = "MEDIUM"
	EvidenceStrong EvidenceStrength = "STRONG"
)

// Claimability literals emitted by the image analysis.
const (
	Claimable      = "Claimable"
	NotClaimable   = "Not Claimable"
	RequiresReview = "Requires Review"
)

// ImageFindings is the aggregated result of damage analysis over all images
// uploaded with one claim. Produced once per claim, immutable thereafter.
type ImageFindings struct {
	DamageDetected        bool             `json:"damage_detected"`
	Severity              Severity         `json:"severity"`
	Confidence            float64          `json:"confidence"`
	EvidenceStrength      EvidenceStrength `json:"evidence_strength"`
	DamageTypes           []string         `json:"damage_types"`
	WorstDamage           string           `json:"worst_damage,omitempty"`
	PredictionConsistency string           `json:"prediction_consistency,omitempty"`
	Claimability          string           `json:"claimability"`
	ClaimReason           string           `json:"final_insurance_reason,omitempty"`
	Reasoning             []string         `json:"reasoning,omitempty"`
	AnnotatedImages       []string         `json:"annotated_images,omitempty"`
	Details               *FindingsDetails `json:"details,omitempty"`
}

// FindingsDetails carries diagnostic counts for the findings aggregation.
type FindingsDetails struct {
	TotalImages    int            `json:"total_images"`
	DamagedRegions int            `json:"damaged_regions"`
	Distribution   map[string]int `json:"distribution,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// InconclusiveFindings is the safe default substituted when image analysis
// fails or no images were uploaded: no damage detected, inconclusive.
func InconclusiveFindings(reason string) ImageFindings {
	return ImageFindings{
		DamageDetected:   false,
		Severity:         SeverityNone,
		Confidence:       0,
		EvidenceStrength: EvidenceNone,
		DamageTypes:      []string{},
		Details:          &FindingsDetails{Error: reason},
	}
}

// ClaimInput is the raw material for one adjudication run.
type ClaimInput struct {
	Description string      `json:"description"`
	Insurer     string      `json:"company"`
	Category    string      `json:"policy_type"`
	Survey      SurveyFacts `json:"survey_result"`
	ImagePaths  []string    `json:"image_paths,omitempty"`
	UserID      *int64      `json:"user_id,omitempty"`
	ClaimID     *int64      `json:"claim_id,omitempty"`
}

// ClaimResult is what one adjudication run hands back to the caller.
type ClaimResult struct {
	ClaimID       int64         `json:"claim_id"`
	FinalDecision Verdict       `json:"final_decision"`
	RiskLevel     RiskLevel     `json:"risk_level"`
	Reasons       []string      `json:"reasons"`
	ClausesUsed   []Clause      `json:"clauses_used"`
	Explanation   string        `json:"explanation"`
	ImageResult   ImageFindings `json:"image_result"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Clause is a single unit of policy text with its owning insurer, category,
// and topic metadata. Loaded once at startup, never mutated at request time.
type Clause struct {
	Insurer        string `json:"company"`
	PolicyCategory string `json:"policy_type"`
	DocName        string `json:"doc_name,omitempty"`
	ClauseID       string `json:"clause_id,omitempty"`
	ClauseType     string `json:"clause_type,omitempty"`
	Text           string `json:"clause_text"`
	TopicLabel     string `json:"semantic_topic,omitempty"`
	TopicClusterID int    `json:"semantic_cluster_id,omitempty"`
}

// RetrievalResult is the two-tier clause selection for one query.
// Primary clauses directly justify the detected reasons or topically match
// the query; secondary clauses are capped generic supporting context.
type RetrievalResult struct {
	Primary   []Clause `json:"primary"`
	Secondary []Clause `json:"secondary"`
}

// Combined returns primary followed by secondary, truncated to max.
// Primary order and secondary order are both preserved.
func (r RetrievalResult) Combined(max int) []Clause {
	out := make([]Clause, 0, len(r.Primary)+len(r.Secondary))
	out = append(out, r.Primary...)
	out = append(out, r.Secondary...)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
