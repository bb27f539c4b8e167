// Package tabular scores survey answers with the claim approval model
// served by the tabular model server.
package tabular

import (
	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
)

// Features is the flat snake_case feature vector the claim approval model
// was trained on. Absent answers are omitted so the model server can report
// exactly which required fields are missing.
type Features struct {
	CarAge          *int    `json:"car_age,omitempty"`
	DriverAge       *int    `json:"driver_age,omitempty"`
	AccidentTime    string  `json:"accident_time,omitempty"`
	LocationType    string  `json:"location_type,omitempty"`
	AccidentType    string  `json:"accident_type,omitempty"`
	PreviousClaims  *int    `json:"previous_claims,omitempty"`
	PoliceReport    *string `json:"police_report,omitempty"`
	DriverAtFault   *string `json:"driver_at_fault,omitempty"`
	DamageFront     int     `json:"damage_front"`
	DamageRear      int     `json:"damage_rear"`
	DamageLeftSide  int     `json:"damage_left_side"`
	DamageRightSide int     `json:"damage_right_side"`
}

// BuildFeatures flattens the nested survey into the model feature vector.
// The damage part checkboxes become four binary flags.
func BuildFeatures(s domain.SurveyFacts) Features {
	f := Features{
		CarAge:         s.VehicleDetails.CarAge,
		DriverAge:      s.VehicleDetails.DriverAge,
		AccidentTime:   s.IncidentDetails.AccidentTime,
		LocationType:   s.IncidentDetails.LocationType,
		AccidentType:   s.AccidentSpecifics.AccidentType,
		PreviousClaims: s.IncidentDetails.PreviousClaims,
		PoliceReport:   s.IncidentDetails.PoliceReport,
		DriverAtFault:  s.AccidentSpecifics.DriverAtFault,
	}
	for _, part := range s.AccidentSpecifics.DamageParts {
		switch part {
		case "Damage Front":
			f.DamageFront = 1
		case "Damage Rear":
			f.DamageRear = 1
		case "Damage Left":
			f.DamageLeftSide = 1
		case "Damage Right":
			f.DamageRightSide = 1
		}
	}
	return f
}
