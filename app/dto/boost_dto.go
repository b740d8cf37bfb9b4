package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AudienceCriteriaDTO is the targeting filter of a boost
type AudienceCriteriaDTO struct {
	Location  *string  `json:"location,omitempty" validate:"omitempty,max=255"`
	AgeMin    *int     `json:"age_min,omitempty"`
	AgeMax    *int     `json:"age_max,omitempty"`
	Gender    *string  `json:"gender,omitempty" validate:"omitempty,max=10"`
	Interests []string `json:"interests,omitempty" validate:"omitempty,max=50,dive,max=64"`
}

// CreateBoostRequest creates a PAUSED boost. Status and ranking weight are never accepted from the caller.
type CreateBoostRequest struct {
	OwnerID    uint                `json:"-"`
	TargetKind string              `json:"target_kind" validate:"required"`
	TargetID   string              `json:"target_id" validate:"required,uuid"`
	Budget     decimal.Decimal     `json:"budget"`
	StartDate  time.Time           `json:"start_date"`
	EndDate    time.Time           `json:"end_date"`
	Audience   AudienceCriteriaDTO `json:"audience"`
}

// UpdateBoostRequest changes the mutable fields of a boost. Omitted fields stay unchanged.
type UpdateBoostRequest struct {
	OwnerID    uint                 `json:"-"`
	BoostUUID  string               `json:"-"`
	TargetKind *string              `json:"target_kind,omitempty"`
	TargetID   *string              `json:"target_id,omitempty" validate:"omitempty,uuid"`
	Budget     *decimal.Decimal     `json:"budget,omitempty"`
	StartDate  *time.Time           `json:"start_date,omitempty"`
	EndDate    *time.Time           `json:"end_date,omitempty"`
	Audience   *AudienceCriteriaDTO `json:"audience,omitempty"`
}

// TransitionBoostRequest carries the optional payment token of a lifecycle action
type TransitionBoostRequest struct {
	PaymentToken string `json:"payment_token,omitempty" validate:"omitempty,max=512"`
}

// ListBoostsRequest pages through the caller's boosts
type ListBoostsRequest struct {
	OwnerID  uint `json:"-"`
	Page     int  `json:"page" validate:"omitempty,min=1"`
	PageSize int  `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// BoostResponse is the public representation of a boost
type BoostResponse struct {
	UUID          string              `json:"uuid"`
	TargetKind    string              `json:"target_kind"`
	TargetID      string              `json:"target_id"`
	Budget        string              `json:"budget"`
	StartDate     time.Time           `json:"start_date"`
	EndDate       time.Time           `json:"end_date"`
	Status        string              `json:"status"`
	RankingWeight int                 `json:"ranking_weight"`
	Audience      AudienceCriteriaDTO `json:"audience"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ListBoostsResponse is a page of the caller's boosts
type ListBoostsResponse struct {
	Boosts     []BoostResponse `json:"boosts"`
	Pagination Pagination      `json:"pagination"`
}
