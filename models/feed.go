package models

import (
	"time"

	"github.com/google/uuid"
)

// ViewerProfile is the read-only view of a user consumed by feed scoring.
// FriendIDs holds ACCEPTED friendships resolved in both directions.
type ViewerProfile struct {
	ID                uint       `json:"id"`
	City              string     `json:"city"`
	Gender            string     `json:"gender"`
	BirthDate         *time.Time `json:"birth_date,omitempty"`
	Interests         []string   `json:"interests"`
	FriendIDs         []uint     `json:"friend_ids"`
	SubscribedPageIDs []uint     `json:"subscribed_page_ids"`
}

// CandidatePost is a post with its aggregate counters pre-joined
type CandidatePost struct {
	ID           uint       `gorm:"column:id" json:"id"`
	UUID         uuid.UUID  `gorm:"column:uuid" json:"uuid"`
	AuthorID     uint       `gorm:"column:author_id" json:"author_id"`
	PageID       *uint      `gorm:"column:page_id" json:"page_id,omitempty"`
	PageUUID     *uuid.UUID `gorm:"column:page_uuid" json:"page_uuid,omitempty"`
	Content      string     `gorm:"column:content" json:"content"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	LikeCount    int64      `gorm:"column:like_count" json:"like_count"`
	CommentCount int64      `gorm:"column:comment_count" json:"comment_count"`
	HasMedia     bool       `gorm:"column:has_media" json:"has_media"`
}

// ScoreBreakdown lists each additive term of a relevance key
type ScoreBreakdown struct {
	Affinity   float64 `json:"affinity"`
	Boost      float64 `json:"boost"`
	Engagement float64 `json:"engagement"`
	Content    float64 `json:"content"`
	Freshness  float64 `json:"freshness"`
}

// ScoredPost is a candidate together with its relevance key
type ScoredPost struct {
	Post      CandidatePost  `json:"post"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}
