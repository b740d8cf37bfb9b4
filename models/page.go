package models

import (
	"time"

	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page is a public profile users can subscribe to and publish posts under
type Page struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_pages_uuid" json:"uuid"`
	OwnerID     uint       `gorm:"not null;index:idx_pages_owner_id" json:"owner_id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`

	Owner *User `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
}

func (Page) TableName() string {
	return "pages"
}

func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// PageSubscription links a user to a page they follow
type PageSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uk_page_subscriptions_user_page" json:"user_id"`
	PageID    uint      `gorm:"not null;uniqueIndex:uk_page_subscriptions_user_page;index:idx_page_subscriptions_page_id" json:"page_id"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (PageSubscription) TableName() string {
	return "page_subscriptions"
}
