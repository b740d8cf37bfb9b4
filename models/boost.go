package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BoostStatus represents the lifecycle state of a boost
type BoostStatus string

const (
	BoostStatusActive    BoostStatus = "ACTIVE"
	BoostStatusPaused    BoostStatus = "PAUSED"
	BoostStatusCompleted BoostStatus = "COMPLETED"
)

// String returns the string representation of the status
func (s BoostStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s BoostStatus) Valid() bool {
	switch s {
	case BoostStatusActive, BoostStatusPaused, BoostStatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition can leave the status
func (s BoostStatus) IsTerminal() bool {
	return s == BoostStatusCompleted
}

// Scan implements the sql.Scanner interface for BoostStatus
func (s *BoostStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = BoostStatus(v)
	case []byte:
		*s = BoostStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BoostStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for BoostStatus
func (s BoostStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid BoostStatus: %s", s)
	}
	return string(s), nil
}

// TargetKind distinguishes what a boost promotes
type TargetKind string

const (
	TargetKindPost TargetKind = "POST"
	TargetKindPage TargetKind = "PAGE"
)

func (k TargetKind) String() string {
	return string(k)
}

// Valid checks if the target kind is valid
func (k TargetKind) Valid() bool {
	return k == TargetKindPost || k == TargetKindPage
}

// Scan implements the sql.Scanner interface for TargetKind
func (k *TargetKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*k = TargetKind(v)
	case []byte:
		*k = TargetKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TargetKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TargetKind
func (k TargetKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid TargetKind: %s", k)
	}
	return string(k), nil
}

// Gender literals accepted by audience criteria and user profiles
const (
	GenderAll    = "ALL"
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
)

// BoostTarget is a weak reference to the promoted post or page
type BoostTarget struct {
	Kind TargetKind `gorm:"column:kind;type:boost_target_kind;not null" json:"kind"`
	ID   uuid.UUID  `gorm:"column:id;type:uuid;not null" json:"id"`
}

// AudienceCriteria is the optional targeting filter of a boost
type AudienceCriteria struct {
	Location  *string        `gorm:"column:location;type:varchar(255)" json:"location,omitempty"`
	AgeMin    *int           `gorm:"column:age_min" json:"age_min,omitempty"`
	AgeMax    *int           `gorm:"column:age_max" json:"age_max,omitempty"`
	Gender    *string        `gorm:"column:gender;type:varchar(10)" json:"gender,omitempty"`
	Interests pq.StringArray `gorm:"column:interests;type:text[]" json:"interests,omitempty"`
}

// Boost represents a paid promotion of a post or page
type Boost struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uk_boosts_uuid" json:"uuid"`
	OwnerID       uint             `gorm:"not null;index:idx_boosts_owner_id" json:"owner_id"`
	Target        BoostTarget      `gorm:"embedded;embeddedPrefix:target_" json:"target"`
	Budget        decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"budget"`
	StartDate     time.Time        `gorm:"not null" json:"start_date"`
	EndDate       time.Time        `gorm:"not null" json:"end_date"`
	Status        BoostStatus      `gorm:"type:boost_status;not null;default:'PAUSED'" json:"status"`
	RankingWeight int              `gorm:"not null;default:0" json:"ranking_weight"`
	Audience      AudienceCriteria `gorm:"embedded;embeddedPrefix:audience_" json:"audience"`
	CreatedAt     time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time       `json:"updated_at,omitempty"`

	Owner *User `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
}

// TableName returns the table name for the model
func (Boost) TableName() string {
	return "boosts"
}

// ComputeWeight derives the ranking weight from the target kind and budget.
// Base is 100 for posts and 50 for pages, plus one point per whole 10 units of budget.
func ComputeWeight(kind TargetKind, budget decimal.Decimal) int {
	base := 50
	if kind == TargetKindPost {
		base = 100
	}
	if budget.IsNegative() {
		return base
	}
	return base + int(budget.Div(decimal.NewFromInt(10)).Floor().IntPart())
}

// BeforeCreate is called before creating a new record
func (b *Boost) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BoostStatusPaused
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeSave recomputes the ranking weight on every insert and update
func (b *Boost) BeforeSave(tx *gorm.DB) error {
	b.RankingWeight = ComputeWeight(b.Target.Kind, b.Budget)
	return nil
}

// BeforeUpdate is called before updating a record
func (b *Boost) BeforeUpdate(tx *gorm.DB) error {
	b.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// IsLiveAt reports whether the boost contributes to scoring at the given instant
func (b *Boost) IsLiveAt(now time.Time) bool {
	return b.Status == BoostStatusActive && !now.Before(b.StartDate) && !now.After(b.EndDate)
}

// IsEditable checks if the boost's mutable fields can still change
func (b *Boost) IsEditable() bool {
	return !b.Status.IsTerminal()
}

// CanTransitionTo checks if the boost can move to the given status
func (b *Boost) CanTransitionTo(newStatus BoostStatus) bool {
	switch b.Status {
	case BoostStatusPaused:
		return newStatus == BoostStatusActive || newStatus == BoostStatusCompleted
	case BoostStatusActive:
		return newStatus == BoostStatusPaused || newStatus == BoostStatusCompleted
	default:
		return false
	}
}

// Clone returns a deep copy of the boost
func (b *Boost) Clone() *Boost {
	if b == nil {
		return nil
	}
	c := *b
	c.Audience.Location = utils.CopyPtr(b.Audience.Location)
	c.Audience.AgeMin = utils.CopyPtr(b.Audience.AgeMin)
	c.Audience.AgeMax = utils.CopyPtr(b.Audience.AgeMax)
	c.Audience.Gender = utils.CopyPtr(b.Audience.Gender)
	if b.Audience.Interests != nil {
		c.Audience.Interests = append(pq.StringArray(nil), b.Audience.Interests...)
	}
	c.UpdatedAt = utils.CopyPtr(b.UpdatedAt)
	c.Owner = nil
	return &c
}

// BoostFilter represents filter criteria for boosts
type BoostFilter struct {
	ID         *uint        `json:"id,omitempty"`
	UUID       *uuid.UUID   `json:"uuid,omitempty"`
	OwnerID    *uint        `json:"owner_id,omitempty"`
	Status     *BoostStatus `json:"status,omitempty"`
	TargetKind *TargetKind  `json:"target_kind,omitempty"`
	TargetID   *uuid.UUID   `json:"target_id,omitempty"`
}
