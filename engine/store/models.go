// Package store persists claims and their adjudication artifacts with GORM.
package store

import (
	"time"

	"gorm.io/datatypes"
)

// Claim is the core claim row. FinalDecision holds the lifecycle status
// (PROCESSING) until a terminal verdict or ERROR replaces it.
type Claim struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        *int64    `gorm:"index" json:"user_id,omitempty"`
	Company       string    `gorm:"not null" json:"company"`
	PolicyType    string    `gorm:"not null" json:"policy_type"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	FinalDecision string    `json:"final_decision"`
	RiskLevel     string    `json:"risk_level"`
	CreatedAt     time.Time `json:"created_at"`

	Surveys      []ClaimSurvey      `gorm:"foreignKey:ClaimID" json:"surveys,omitempty"`
	Images       []ClaimImage       `gorm:"foreignKey:ClaimID" json:"images,omitempty"`
	Explanations []ClaimExplanation `gorm:"foreignKey:ClaimID" json:"explanations,omitempty"`
}

func (Claim) TableName() string { return "claims" }

// LatestSurvey returns the most recently appended survey row, nil when the
// claim has none. Rows are append-only, so the highest ID is the newest.
func (c *Claim) LatestSurvey() *ClaimSurvey {
	var latest *ClaimSurvey
	for i := range c.Surveys {
		if latest == nil || c.Surveys[i].ID > latest.ID {
			latest = &c.Surveys[i]
		}
	}
	return latest
}

// LatestExplanation returns the most recently appended explanation row,
// nil when the claim has none.
func (c *Claim) LatestExplanation() *ClaimExplanation {
	var latest *ClaimExplanation
	for i := range c.Explanations {
		if latest == nil || c.Explanations[i].ID > latest.ID {
			latest = &c.Explanations[i]
		}
	}
	return latest
}

// ClaimSurvey stores the raw survey payload next to the model verdict on it.
type ClaimSurvey struct {
	ID                int64          `gorm:"primaryKey" json:"id"`
	ClaimID           int64          `gorm:"not null;index" json:"claim_id"`
	SurveyPayload     datatypes.JSON `json:"survey_payload,omitempty"`
	SurveyPrediction  *string        `json:"survey_prediction,omitempty"`
	SurveyProbability *float64       `json:"survey_probability,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (ClaimSurvey) TableName() string { return "claim_survey" }

// ClaimImage stores one uploaded image with the aggregated findings blob.
// The findings blob is identical across images of one claim.
type ClaimImage struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	ClaimID     int64          `gorm:"not null;index" json:"claim_id"`
	ImageResult datatypes.JSON `json:"image_result,omitempty"`
	Filename    string         `gorm:"not null" json:"filename"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (ClaimImage) TableName() string { return "claim_images" }

// ClaimExplanation stores the generated assessment with its inputs.
type ClaimExplanation struct {
	ID                int64          `gorm:"primaryKey" json:"id"`
	ClaimID           int64          `gorm:"not null;index" json:"claim_id"`
	ExtractedKeywords datatypes.JSON `json:"extracted_keywords,omitempty"`
	ClausesUsed       datatypes.JSON `json:"clauses_used,omitempty"`
	ExplanationText   string         `gorm:"type:text" json:"explanation_text,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (ClaimExplanation) TableName() string { return "claim_explanations" }
