package dto

import "time"

// FeedRequest asks for one page of the viewer's ranked feed
type FeedRequest struct {
	ViewerID uint `json:"-"`
	Page     int  `query:"page" validate:"omitempty,min=1"`
	PageSize int  `query:"page_size" validate:"omitempty,min=1,max=50"`
}

// ScoreBreakdownDTO explains how a feed item's score was assembled
type ScoreBreakdownDTO struct {
	Affinity   float64 `json:"affinity"`
	Boost      float64 `json:"boost"`
	Engagement float64 `json:"engagement"`
	Content    float64 `json:"content"`
	Freshness  float64 `json:"freshness"`
}

// FeedItem is one ranked post
type FeedItem struct {
	PostUUID     string            `json:"post_uuid"`
	AuthorID     uint              `json:"author_id"`
	PageUUID     *string           `json:"page_uuid,omitempty"`
	Content      string            `json:"content"`
	CreatedAt    time.Time         `json:"created_at"`
	LikeCount    int64             `json:"like_count"`
	CommentCount int64             `json:"comment_count"`
	HasMedia     bool              `json:"has_media"`
	Score        float64           `json:"score"`
	Breakdown    ScoreBreakdownDTO `json:"breakdown"`
}

// FeedResponse is one page of the ranked feed
type FeedResponse struct {
	Items      []FeedItem `json:"items"`
	Pagination Pagination `json:"pagination"`
}
