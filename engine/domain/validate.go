package domain

import (
	"strings"
	"unicode/utf8"
)

const maxDescriptionLength = 8000

// ValidateClaimInput checks the minimum the pipeline needs to run. Survey
// answers are never validated here: a partially answered survey is legal
// and the rules treat missing answers as non-matching.
func ValidateClaimInput(in ClaimInput) error {
	if strings.TrimSpace(in.Description) == "" {
		return NewValidationError("description", in.Description, ErrMissingDescription)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return NewValidationError("description", in.Description[:32]+"...", ErrDescriptionTooLong)
	}
	if strings.TrimSpace(in.Insurer) == "" {
		return NewValidationError("company", in.Insurer, ErrMissingInsurer)
	}
	if strings.TrimSpace(in.Category) == "" {
		return NewValidationError("policy_type", in.Category, ErrMissingCategory)
	}
	return nil
}
