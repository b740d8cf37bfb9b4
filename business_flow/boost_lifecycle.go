package businessflow

import (
	"strings"
	"time"

	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// BoostAction names a lifecycle transition
type BoostAction string

const (
	BoostActionPay    BoostAction = "pay"
	BoostActionPause  BoostAction = "pause"
	BoostActionResume BoostAction = "resume"
	BoostActionStop   BoostAction = "stop"
)

func (a BoostAction) Valid() bool {
	switch a {
	case BoostActionPay, BoostActionPause, BoostActionResume, BoostActionStop:
		return true
	default:
		return false
	}
}

// TargetStatus is the status a successful action leaves the boost in
func (a BoostAction) TargetStatus() models.BoostStatus {
	switch a {
	case BoostActionPay, BoostActionResume:
		return models.BoostStatusActive
	case BoostActionPause:
		return models.BoostStatusPaused
	case BoostActionStop:
		return models.BoostStatusCompleted
	default:
		return ""
	}
}

// TransitionParams carries the payment decision for a pay transition.
// The other actions ignore it.
type TransitionParams struct {
	PaymentToken    string
	PaymentAccepted bool
	TenderedAmount  decimal.Decimal
}

// CheckTransitionAllowed evaluates only the status guard of action against boost
func CheckTransitionAllowed(boost *models.Boost, action BoostAction) error {
	if !action.Valid() {
		return NewValidationError("action", ErrUnknownBoostAction)
	}
	if !boost.IsEditable() {
		return NewConflictError(GuardBoostCompleted, ErrBoostCompleted)
	}
	if boost.CanTransitionTo(action.TargetStatus()) {
		return nil
	}

	switch action {
	case BoostActionPause:
		return NewConflictError(GuardStatusMustBeActive, ErrStatusMustBeActive)
	default:
		return NewConflictError(GuardStatusMustBePaused, ErrStatusMustBePaused)
	}
}

// ApplyBoostTransition returns a copy of boost with action applied.
// On a failed guard it returns a *ConflictError and boost is untouched.
func ApplyBoostTransition(boost *models.Boost, action BoostAction, params TransitionParams, now time.Time) (*models.Boost, error) {
	if err := CheckTransitionAllowed(boost, action); err != nil {
		return nil, err
	}

	next := boost.Clone()

	switch action {
	case BoostActionPay:
		if strings.TrimSpace(params.PaymentToken) == "" {
			return nil, NewConflictError(GuardPaymentTokenRequired, ErrPaymentTokenRequired)
		}
		if !params.PaymentAccepted {
			return nil, NewConflictError(GuardPaymentRejected, ErrPaymentRejected)
		}
		if params.TenderedAmount.LessThan(boost.Budget) {
			return nil, NewConflictError(GuardInsufficientPayment, ErrInsufficientPayment)
		}
	case BoostActionStop:
		next.EndDate = now
		if now.Before(next.StartDate) {
			next.StartDate = now
		}
	}
	next.Status = action.TargetStatus()

	return next, nil
}

// AudienceInput is the caller-supplied targeting filter before normalization
type AudienceInput struct {
	Location  *string
	AgeMin    *int
	AgeMax    *int
	Gender    *string
	Interests []string
}

// BoostInput holds every caller-settable field of a new boost
type BoostInput struct {
	TargetKind string
	TargetID   uuid.UUID
	Budget     decimal.Decimal
	StartDate  time.Time
	EndDate    time.Time
	Audience   AudienceInput
}

// BoostUpdate holds the fields to change on an existing boost. Nil means unchanged.
type BoostUpdate struct {
	TargetKind *string
	TargetID   *uuid.UUID
	Budget     *decimal.Decimal
	StartDate  *time.Time
	EndDate    *time.Time
	Audience   *AudienceInput
}

func (u BoostUpdate) IsEmpty() bool {
	return u.TargetKind == nil && u.TargetID == nil && u.Budget == nil &&
		u.StartDate == nil && u.EndDate == nil && u.Audience == nil
}

// NormalizeAudience validates targeting criteria and returns their stored form.
// Gender is upper-cased, blank strings become unset and interest tags are trimmed.
func NormalizeAudience(in AudienceInput) (models.AudienceCriteria, error) {
	var out models.AudienceCriteria

	if in.Location != nil {
		if loc := strings.TrimSpace(*in.Location); loc != "" {
			out.Location = &loc
		}
	}

	if in.Gender != nil {
		gender := strings.ToUpper(strings.TrimSpace(*in.Gender))
		switch gender {
		case "":
		case models.GenderAll, models.GenderMale, models.GenderFemale:
			out.Gender = &gender
		default:
			return models.AudienceCriteria{}, NewValidationError("audience.gender", ErrInvalidGender)
		}
	}

	if in.AgeMin != nil && *in.AgeMin < 0 {
		return models.AudienceCriteria{}, NewValidationError("audience.age_min", ErrNegativeAge)
	}
	if in.AgeMax != nil && *in.AgeMax < 0 {
		return models.AudienceCriteria{}, NewValidationError("audience.age_max", ErrNegativeAge)
	}
	if in.AgeMin != nil && in.AgeMax != nil && *in.AgeMin > *in.AgeMax {
		return models.AudienceCriteria{}, NewValidationError("audience.age_min", ErrAgeRangeInverted)
	}
	out.AgeMin = utils.CopyPtr(in.AgeMin)
	out.AgeMax = utils.CopyPtr(in.AgeMax)

	if tags := utils.NormalizeTags(in.Interests); len(tags) > 0 {
		out.Interests = pq.StringArray(tags)
	}

	return out, nil
}

func parseTargetKind(kind string) (models.TargetKind, error) {
	k := models.TargetKind(strings.ToUpper(strings.TrimSpace(kind)))
	if !k.Valid() {
		return "", NewValidationError("target_kind", ErrInvalidTargetKind)
	}
	return k, nil
}

// ValidateBoostInput checks every caller-settable field of a new boost
func ValidateBoostInput(in BoostInput) error {
	if _, err := parseTargetKind(in.TargetKind); err != nil {
		return err
	}
	if in.TargetID == uuid.Nil {
		return NewValidationError("target_id", ErrTargetIDRequired)
	}
	if in.Budget.IsNegative() {
		return NewValidationError("budget", ErrNegativeBudget)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return NewValidationError("start_date", ErrDatesRequired)
	}
	if in.EndDate.Before(in.StartDate) {
		return NewValidationError("end_date", ErrEndBeforeStart)
	}
	_, err := NormalizeAudience(in.Audience)
	return err
}

// BuildBoost validates input and returns a new PAUSED boost owned by ownerID
func BuildBoost(ownerID uint, in BoostInput) (*models.Boost, error) {
	if err := ValidateBoostInput(in); err != nil {
		return nil, err
	}
	kind, _ := parseTargetKind(in.TargetKind)
	audience, _ := NormalizeAudience(in.Audience)

	boost := &models.Boost{
		OwnerID:   ownerID,
		Target:    models.BoostTarget{Kind: kind, ID: in.TargetID},
		Budget:    in.Budget,
		StartDate: in.StartDate.UTC(),
		EndDate:   in.EndDate.UTC(),
		Status:    models.BoostStatusPaused,
		Audience:  audience,
	}
	boost.RankingWeight = models.ComputeWeight(kind, in.Budget)

	return boost, nil
}

// ApplyBoostUpdate returns a copy of boost with the update applied and the weight recomputed.
// A COMPLETED boost rejects every update with a *ConflictError.
func ApplyBoostUpdate(boost *models.Boost, upd BoostUpdate) (*models.Boost, error) {
	if upd.IsEmpty() {
		return nil, NewValidationError("", ErrNoUpdateFields)
	}
	if !boost.IsEditable() {
		return nil, NewConflictError(GuardBoostCompleted, ErrBoostCompleted)
	}

	next := boost.Clone()

	if upd.TargetKind != nil {
		kind, err := parseTargetKind(*upd.TargetKind)
		if err != nil {
			return nil, err
		}
		next.Target.Kind = kind
	}
	if upd.TargetID != nil {
		if *upd.TargetID == uuid.Nil {
			return nil, NewValidationError("target_id", ErrTargetIDRequired)
		}
		next.Target.ID = *upd.TargetID
	}
	if upd.Budget != nil {
		if upd.Budget.IsNegative() {
			return nil, NewValidationError("budget", ErrNegativeBudget)
		}
		next.Budget = *upd.Budget
	}
	if upd.StartDate != nil {
		next.StartDate = upd.StartDate.UTC()
	}
	if upd.EndDate != nil {
		next.EndDate = upd.EndDate.UTC()
	}
	if next.EndDate.Before(next.StartDate) {
		return nil, NewValidationError("end_date", ErrEndBeforeStart)
	}
	if upd.Audience != nil {
		audience, err := NormalizeAudience(*upd.Audience)
		if err != nil {
			return nil, err
		}
		next.Audience = audience
	}

	next.RankingWeight = models.ComputeWeight(next.Target.Kind, next.Budget)

	return next, nil
}
