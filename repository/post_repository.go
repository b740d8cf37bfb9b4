package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/boostfeed/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// candidateColumns projects a post with its page uuid and aggregate counters
const candidateColumns = `p.id, p.uuid, p.author_id, p.page_id, pg.uuid AS page_uuid, p.content, p.created_at,
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS like_count,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
	(jsonb_array_length(p.media) > 0) AS has_media`

// PostRepositoryImpl implements the PostRepository interface
type PostRepositoryImpl struct {
	*BaseRepository[models.Post, struct{}]
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &PostRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Post, struct{}](db),
	}
}

// ByUUID retrieves a post by its public id
func (r *PostRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	db := r.getDB(ctx)

	var post models.Post
	err := db.Where("uuid = ?", id).Last(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find post %s: %w", id, err)
	}

	return &post, nil
}

// ExistsByUUID reports whether a post with the given public id exists
func (r *PostRepositoryImpl) ExistsByUUID(ctx context.Context, id uuid.UUID) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	if err := db.Model(&models.Post{}).Where("uuid = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check post %s: %w", id, err)
	}

	return count > 0, nil
}

// FeedCandidates returns the newest posts with like and comment counts pre-joined
func (r *PostRepositoryImpl) FeedCandidates(ctx context.Context, limit int) ([]models.CandidatePost, error) {
	db := r.getDB(ctx)

	var rows []models.CandidatePost
	query := db.Table("posts p").
		Select(candidateColumns).
		Joins("LEFT JOIN pages pg ON pg.id = p.page_id").
		Order("p.created_at DESC, p.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load feed candidates: %w", err)
	}

	return rows, nil
}

// CandidatesForTargets returns the posts promoted directly or through their page
func (r *PostRepositoryImpl) CandidatesForTargets(ctx context.Context, postUUIDs, pageUUIDs []uuid.UUID) ([]models.CandidatePost, error) {
	if len(postUUIDs) == 0 && len(pageUUIDs) == 0 {
		return nil, nil
	}

	db := r.getDB(ctx)

	query := db.Table("posts p").
		Select(candidateColumns).
		Joins("LEFT JOIN pages pg ON pg.id = p.page_id")

	switch {
	case len(postUUIDs) > 0 && len(pageUUIDs) > 0:
		query = query.Where("p.uuid IN ? OR pg.uuid IN ?", postUUIDs, pageUUIDs)
	case len(postUUIDs) > 0:
		query = query.Where("p.uuid IN ?", postUUIDs)
	default:
		query = query.Where("pg.uuid IN ?", pageUUIDs)
	}

	var rows []models.CandidatePost
	if err := query.Order("p.created_at DESC, p.id DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load promoted candidates: %w", err)
	}

	return rows, nil
}
