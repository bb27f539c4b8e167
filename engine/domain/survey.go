package domain

// SurveyFacts is the structured questionnaire that accompanies a claim.
// Every leaf the rules or the risk model care about is an explicit nullable
// field, so a missing answer is a typed absence rather than a map probe.
// Unknown answers never fail a rule check.
type SurveyFacts struct {
	VehicleDetails    VehicleDetails    `json:"vehicleDetails,omitempty"`
	IncidentDetails   IncidentDetails   `json:"incidentDetails,omitempty"`
	AccidentSpecifics AccidentSpecifics `json:"accidentSpecifics,omitempty"`
	Computed          ComputedFacts     `json:"computed,omitempty"`

	// Prediction/Probability come from the tabular risk model. They may be
	// supplied by the caller or filled in by the orchestrator before
	// persistence.
	Prediction  *string  `json:"prediction,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
}

// VehicleDetails describes the insured vehicle.
type VehicleDetails struct {
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	InsurerName        string `json:"insurerName,omitempty"`
	VehicleType        string `json:"vehicleType,omitempty"`
	CarAge             *int   `json:"carAge,omitempty"`
	DriverAge          *int   `json:"driverAge,omitempty"`
}

// IncidentDetails describes when and where the incident happened.
type IncidentDetails struct {
	AccidentTime   string  `json:"accidentTime,omitempty"`
	LocationType   string  `json:"locationType,omitempty"`
	PreviousClaims *int    `json:"previousClaims,omitempty"`
	PoliceReport   *string `json:"policeReport,omitempty"`
}

// AccidentSpecifics describes the circumstances of the accident itself.
type AccidentSpecifics struct {
	AccidentType       string   `json:"accidentType,omitempty"`
	AlcoholIntoxicated *bool    `json:"alcoholIntoxicated,omitempty"`
	DriverLicenseValid *bool    `json:"driverLicenseValid,omitempty"`
	DriverAtFault      *string  `json:"driverAtFault,omitempty"`
	DamageParts        []string `json:"damageParts,omitempty"`
}

// ComputedFacts are derived flags attached by upstream validation.
type ComputedFacts struct {
	ClaimablePolicy *bool `json:"claimable_policy,omitempty"`
}

// ClaimablePolicy reports the computed policy-validity flag. ok is false
// when the flag was never computed.
func (s SurveyFacts) ClaimablePolicy() (value, ok bool) {
	if s.Computed.ClaimablePolicy == nil {
		return false, false
	}
	return *s.Computed.ClaimablePolicy, true
}

// AlcoholIntoxicated reports the intoxication answer, ok=false when absent.
func (s SurveyFacts) AlcoholIntoxicated() (value, ok bool) {
	if s.AccidentSpecifics.AlcoholIntoxicated == nil {
		return false, false
	}
	return *s.AccidentSpecifics.AlcoholIntoxicated, true
}

// DriverLicenseValid reports the license answer, ok=false when absent.
func (s SurveyFacts) DriverLicenseValid() (value, ok bool) {
	if s.AccidentSpecifics.DriverLicenseValid == nil {
		return false, false
	}
	return *s.AccidentSpecifics.DriverLicenseValid, true
}

// HasPrediction reports whether the tabular model already scored this survey.
func (s SurveyFacts) HasPrediction() bool {
	return s.Probability != nil
}

// PredictedVerdict returns the stored model prediction, "" when absent.
func (s SurveyFacts) PredictedVerdict() string {
	if s.Prediction == nil {
		return ""
	}
	return *s.Prediction
}
