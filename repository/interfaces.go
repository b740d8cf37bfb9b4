package repository

import (
	"context"
	"time"

	"github.com/amirphl/boostfeed/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// BoostRepository defines persistence for boosts. Status changes go through
// CompareAndSwapStatus so a stale writer cannot overwrite a newer status.
type BoostRepository interface {
	Repository[models.Boost, models.BoostFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Boost, error)
	ByUUIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Boost, error)
	ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Boost, error)
	ListLive(ctx context.Context, now time.Time) ([]models.Boost, error)
	UpdateMutable(ctx context.Context, boost *models.Boost) error
	CompareAndSwapStatus(ctx context.Context, id uint, from, to models.BoostStatus, endDate *time.Time) (bool, error)
	CompleteExpired(ctx context.Context, now time.Time) ([]models.Boost, error)
}

// PostRepository supplies feed candidates with pre-joined counters
type PostRepository interface {
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ExistsByUUID(ctx context.Context, id uuid.UUID) (bool, error)
	FeedCandidates(ctx context.Context, limit int) ([]models.CandidatePost, error)
	CandidatesForTargets(ctx context.Context, postUUIDs, pageUUIDs []uuid.UUID) ([]models.CandidatePost, error)
}

// UserRepository loads viewer profiles
type UserRepository interface {
	ByID(ctx context.Context, id uint) (*models.User, error)
	ViewerProfile(ctx context.Context, userID uint) (*models.ViewerProfile, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}
