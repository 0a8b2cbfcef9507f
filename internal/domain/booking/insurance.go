package booking

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsuranceMode describes who carries the risk of damage during a rental.
type InsuranceMode string

const (
	InsuranceNone              InsuranceMode = "NONE"
	InsuranceOwnerPolicy       InsuranceMode = "OWNER_POLICY"
	InsuranceRenterResponsible InsuranceMode = "RENTER_RESPONSIBLE"
	InsuranceBondOnly          InsuranceMode = "BOND_ONLY"
)

// ParseInsuranceMode converts a string to an InsuranceMode.
func ParseInsuranceMode(s string) (InsuranceMode, error) {
	switch m := InsuranceMode(s); m {
	case InsuranceNone, InsuranceOwnerPolicy, InsuranceRenterResponsible, InsuranceBondOnly:
		return m, nil
	}
	return "", fmt.Errorf("invalid insurance mode: %s", s)
}

// InsuranceSnapshot is a copy of a listing's insurance terms taken when the
// booking is created. It is never refreshed from the listing.
type InsuranceSnapshot struct {
	Mode                      InsuranceMode    `json:"mode"`
	Notes                     string           `json:"notes,omitempty"`
	EstimatedReplacementValue *decimal.Decimal `json:"estimated_replacement_value,omitempty"`
	DamageExcessNotes         string           `json:"damage_excess_notes,omitempty"`
}

// PolicySnapshot records which platform policy version the renter accepted.
type PolicySnapshot struct {
	VersionAccepted              int  `json:"version_accepted"`
	OwnerTermsAccepted           bool `json:"owner_terms_accepted"`
	RenterResponsibilityAccepted bool `json:"renter_responsibility_accepted"`
}
