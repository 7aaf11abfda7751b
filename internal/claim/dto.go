package claim

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/common/validation"
)

type SubmitClaimDTO struct {
	Sessions    int    `json:"sessions"`
	Hours       int    `json:"hours"`
	Rate        int    `json:"rate"`
	ModuleName  string `json:"module_name"`
	FacultyName string `json:"faculty_name"`
}

func (dto *SubmitClaimDTO) Normalize() {
	dto.ModuleName = strings.TrimSpace(dto.ModuleName)
	dto.FacultyName = strings.TrimSpace(dto.FacultyName)
}

// Validate reports every failing field at once.
func (dto SubmitClaimDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("sessions", dto.Sessions).MinInt(1, errors.ErrCodeInvalidQuantity).MaxInt(math.MaxInt32, errors.ErrCodeInvalidQuantity)
	v.Field("hours", dto.Hours).MinInt(1, errors.ErrCodeInvalidQuantity).MaxInt(math.MaxInt32, errors.ErrCodeInvalidQuantity)
	v.Field("rate", dto.Rate).MinInt(1, errors.ErrCodeInvalidQuantity).MaxInt(math.MaxInt32, errors.ErrCodeInvalidQuantity)
	v.Field("module_name", dto.ModuleName).Required().MaxLength(150)
	v.Field("faculty_name", dto.FacultyName).Required().MaxLength(150)
	if dto.quantitiesInRange() {
		v.Field("total_amount", ComputeTotal(dto.Sessions, dto.Hours, dto.Rate)).Custom(maxTotal)
	}

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (dto SubmitClaimDTO) quantitiesInRange() bool {
	for _, n := range []int{dto.Sessions, dto.Hours, dto.Rate} {
		if n < 1 || int64(n) > math.MaxInt32 {
			return false
		}
	}
	return true
}

// maxTotal keeps the product within the numeric(14,2) total_amount column.
func maxTotal(value interface{}) *errors.AppError {
	total, ok := value.(decimal.Decimal)
	if ok && total.GreaterThan(MaxTotalAmount) {
		message := fmt.Sprintf("sessions x hours x rate must not exceed %s", MaxTotalAmount.StringFixed(2))
		return errors.NewValidationFieldError("total_amount", message, errors.ErrCodeInvalidQuantity)
	}
	return nil
}

type DecisionDTO struct {
	Approve *bool `json:"approve"`
}

func (dto DecisionDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("approve", dto.Approve).Required()

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type SubmitClaimResponse struct {
	*Claim
	NeedsManualReview bool `json:"needs_manual_review"`
}

type ClaimsResponse struct {
	Claims []*Claim `json:"claims"`
	Count  int      `json:"count"`
}

type AuditTrailResponse struct {
	ClaimID int64         `json:"claim_id"`
	Entries []*AuditEntry `json:"entries"`
}
