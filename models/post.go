package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MediaList is the jsonb list of media URLs attached to a post
type MediaList []string

// Value implements the driver.Valuer interface for MediaList
func (m MediaList) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(m))
}

// Scan implements the sql.Scanner interface for MediaList
func (m *MediaList) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MediaList", value)
	}

	return json.Unmarshal(bytes, (*[]string)(m))
}

// Post is a piece of content authored by a user, optionally on a page
type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_posts_uuid" json:"uuid"`
	AuthorID  uint       `gorm:"not null;index:idx_posts_author_id" json:"author_id"`
	PageID    *uint      `gorm:"index:idx_posts_page_id" json:"page_id,omitempty"`
	Content   string     `gorm:"type:text;not null;default:''" json:"content"`
	Media     MediaList  `gorm:"type:jsonb;not null;default:'[]'" json:"media"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_posts_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	Author *User `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
	Page   *Page `gorm:"foreignKey:PageID;references:ID" json:"page,omitempty"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Like records a user liking a post
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:uk_likes_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uk_likes_post_user" json:"user_id"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Like) TableName() string {
	return "likes"
}

// Comment is a user's reply to a post
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index:idx_comments_post_id" json:"post_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}
