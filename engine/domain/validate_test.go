package domain

import (
	"errors"
	"strings"
	"testing"
)

func validInput() ClaimInput {
	return ClaimInput{
		Description: "Rear-ended at a signal, bumper cracked",
		Insurer:     "Acko",
		Category:    "Two Wheeler",
	}
}

func TestValidateClaimInput_Valid(t *testing.T) {
	if err := ValidateClaimInput(validInput()); err != nil {
		t.Errorf("expected valid input, got %v", err)
	}
}

func TestValidateClaimInput_MissingDescription(t *testing.T) {
	in := validInput()
	in.Description = "   "
	err := ValidateClaimInput(in)
	if !errors.Is(err, ErrMissingDescription) {
		t.Errorf("expected ErrMissingDescription, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "description" {
		t.Errorf("expected ValidationError on description, got %v", err)
	}
}

func TestValidateClaimInput_DescriptionTooLong(t *testing.T) {
	in := validInput()
	in.Description = strings.Repeat("a", 8001)
	err := ValidateClaimInput(in)
	if !errors.Is(err, ErrDescriptionTooLong) {
		t.Errorf("expected ErrDescriptionTooLong, got %v", err)
	}
}

func TestValidateClaimInput_MissingInsurer(t *testing.T) {
	in := validInput()
	in.Insurer = ""
	if err := ValidateClaimInput(in); !errors.Is(err, ErrMissingInsurer) {
		t.Errorf("expected ErrMissingInsurer, got %v", err)
	}
}

func TestValidateClaimInput_MissingCategory(t *testing.T) {
	in := validInput()
	in.Category = ""
	if err := ValidateClaimInput(in); !errors.Is(err, ErrMissingCategory) {
		t.Errorf("expected ErrMissingCategory, got %v", err)
	}
}

func TestSurveyAccessors_Absent(t *testing.T) {
	var s SurveyFacts
	if _, ok := s.ClaimablePolicy(); ok {
		t.Error("expected absent claimable_policy")
	}
	if _, ok := s.AlcoholIntoxicated(); ok {
		t.Error("expected absent alcoholIntoxicated")
	}
	if _, ok := s.DriverLicenseValid(); ok {
		t.Error("expected absent driverLicenseValid")
	}
	if s.HasPrediction() {
		t.Error("expected no prediction")
	}
	if v := s.PredictedVerdict(); v != "" {
		t.Errorf("expected empty verdict, got %q", v)
	}
}

func TestSurveyAccessors_Present(t *testing.T) {
	no := false
	yes := true
	pred := "REJECTED"
	prob := 0.91
	s := SurveyFacts{
		AccidentSpecifics: AccidentSpecifics{AlcoholIntoxicated: &yes, DriverLicenseValid: &no},
		Computed:          ComputedFacts{ClaimablePolicy: &no},
		Prediction:        &pred,
		Probability:       &prob,
	}

	if v, ok := s.ClaimablePolicy(); !ok || v {
		t.Errorf("expected claimable_policy=false present, got %v %v", v, ok)
	}
	if v, ok := s.AlcoholIntoxicated(); !ok || !v {
		t.Errorf("expected alcoholIntoxicated=true present, got %v %v", v, ok)
	}
	if v, ok := s.DriverLicenseValid(); !ok || v {
		t.Errorf("expected driverLicenseValid=false present, got %v %v", v, ok)
	}
	if !s.HasPrediction() {
		t.Error("expected prediction present")
	}
	if v := s.PredictedVerdict(); v != "REJECTED" {
		t.Errorf("expected REJECTED, got %q", v)
	}
}
