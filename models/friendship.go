package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// FriendshipStatus represents the state of a friend request
type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "PENDING"
	FriendshipStatusAccepted FriendshipStatus = "ACCEPTED"
	FriendshipStatusDeclined FriendshipStatus = "DECLINED"
	FriendshipStatusBlocked  FriendshipStatus = "BLOCKED"
)

func (s FriendshipStatus) Valid() bool {
	switch s {
	case FriendshipStatusPending, FriendshipStatusAccepted, FriendshipStatusDeclined, FriendshipStatusBlocked:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for FriendshipStatus
func (s *FriendshipStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = FriendshipStatus(v)
	case []byte:
		*s = FriendshipStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into FriendshipStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for FriendshipStatus
func (s FriendshipStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid FriendshipStatus: %s", s)
	}
	return string(s), nil
}

// Friendship is a directed friend request. Only ACCEPTED rows form an edge,
// and an accepted edge counts in both directions.
type Friendship struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	FromUserID uint             `gorm:"not null;uniqueIndex:uk_friendships_pair" json:"from_user_id"`
	ToUserID   uint             `gorm:"not null;uniqueIndex:uk_friendships_pair;index:idx_friendships_to_user_id" json:"to_user_id"`
	Status     FriendshipStatus `gorm:"type:friendship_status;not null;default:'PENDING'" json:"status"`
	CreatedAt  time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Friendship) TableName() string {
	return "friendships"
}
