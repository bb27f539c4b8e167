package tabular

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestBuildFeaturesRemap(t *testing.T) {
	s := domain.SurveyFacts{
		VehicleDetails: domain.VehicleDetails{
			CarAge:    intPtr(4),
			DriverAge: intPtr(31),
		},
		IncidentDetails: domain.IncidentDetails{
			AccidentTime:   "Night",
			LocationType:   "Highway",
			PreviousClaims: intPtr(1),
			PoliceReport:   strPtr("Yes"),
		},
		AccidentSpecifics: domain.AccidentSpecifics{
			AccidentType:  "Collision",
			DriverAtFault: strPtr("No"),
			DamageParts:   []string{"Damage Front", "Damage Left"},
		},
	}

	f := BuildFeatures(s)
	if *f.CarAge != 4 || *f.DriverAge != 31 {
		t.Errorf("ages = %v %v", f.CarAge, f.DriverAge)
	}
	if f.AccidentTime != "Night" || f.LocationType != "Highway" || f.AccidentType != "Collision" {
		t.Errorf("strings = %q %q %q", f.AccidentTime, f.LocationType, f.AccidentType)
	}
	if f.DamageFront != 1 || f.DamageLeftSide != 1 {
		t.Errorf("expected front and left flags set: %+v", f)
	}
	if f.DamageRear != 0 || f.DamageRightSide != 0 {
		t.Errorf("expected rear and right flags clear: %+v", f)
	}
}

func TestFeaturesJSONNames(t *testing.T) {
	data, err := json.Marshal(BuildFeatures(domain.SurveyFacts{
		VehicleDetails: domain.VehicleDetails{CarAge: intPtr(2)},
	}))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	for _, key := range []string{`"car_age":2`, `"damage_front":0`, `"damage_left_side":0`} {
		if !strings.Contains(got, key) {
			t.Errorf("missing %s in %s", key, got)
		}
	}
	if strings.Contains(got, "driver_age") {
		t.Errorf("absent answers should be omitted: %s", got)
	}
}

func TestClientPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Features.DamageFront != 1 {
			t.Errorf("features = %+v", req.Features)
		}
		json.NewEncoder(w).Encode(predictResponse{
			Prediction: Prediction{Prediction: "REJECTED", Probability: 0.213},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	got, err := c.Predict(context.Background(), Features{DamageFront: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got.Prediction != "REJECTED" || got.Probability != 0.213 {
		t.Fatalf("got %+v", got)
	}
}

func TestClientPredictMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{
			Error:          "missing required fields",
			RequiredFields: []string{"car_age", "driver_age", "accident_type"},
			MissingFields:  []string{"car_age", "driver_age"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	_, err := c.Predict(context.Background(), Features{})
	if err == nil {
		t.Fatal("expected error")
	}

	var mfe *MissingFieldsError
	if !errors.As(err, &mfe) {
		t.Fatalf("expected MissingFieldsError, got %T: %v", err, err)
	}
	if len(mfe.Missing) != 2 || mfe.Missing[0] != "car_age" {
		t.Errorf("missing = %v", mfe.Missing)
	}
	if len(mfe.Required) != 3 {
		t.Errorf("required = %v", mfe.Required)
	}
	if !strings.Contains(err.Error(), "car_age") {
		t.Errorf("err = %v", err)
	}
}

func TestClientPredictModelErrorWithoutFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{Error: "model not loaded"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	_, err := c.Predict(context.Background(), Features{})
	if err == nil {
		t.Fatal("expected error")
	}
	var mfe *MissingFieldsError
	if errors.As(err, &mfe) {
		t.Fatalf("expected plain error, got MissingFieldsError %v", mfe)
	}
}

func TestClientPredictServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if _, err := c.Predict(context.Background(), Features{}); err == nil {
		t.Fatal("expected error")
	}
}
