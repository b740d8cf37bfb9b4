// Package models contains domain entities and read models for the feed and boost system
package models

import (
	"time"

	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is a member of the social network
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	Username  string         `gorm:"size:150;not null;uniqueIndex:uk_users_username" json:"username"`
	Email     *string        `gorm:"size:255" json:"email,omitempty"`
	City      string         `gorm:"size:100;not null;default:''" json:"city"`
	Gender    string         `gorm:"size:10;not null;default:'ALL'" json:"gender"`
	BirthDate *time.Time     `gorm:"type:date" json:"birth_date,omitempty"`
	Interests pq.StringArray `gorm:"type:text[]" json:"interests"`
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate is called before creating a new record
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	if u.Gender == "" {
		u.Gender = GenderAll
	}
	u.Interests = utils.NormalizeTags(u.Interests)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = utils.UTCNowPtr()
	return nil
}
