package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mutableBoostColumns are the columns an owner may change after creation
var mutableBoostColumns = []string{
	"target_kind", "target_id", "budget", "start_date", "end_date", "ranking_weight",
	"audience_location", "audience_age_min", "audience_age_max", "audience_gender", "audience_interests",
	"updated_at",
}

// ErrBoostNotEditable is returned by UpdateMutable when the row is COMPLETED or gone
var ErrBoostNotEditable = errors.New("boost is not editable")

// BoostRepositoryImpl implements the BoostRepository interface
type BoostRepositoryImpl struct {
	*BaseRepository[models.Boost, models.BoostFilter]
}

// NewBoostRepository creates a new boost repository
func NewBoostRepository(db *gorm.DB) BoostRepository {
	return &BoostRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Boost, models.BoostFilter](db),
	}
}

// ByUUID retrieves a boost by its public id
func (r *BoostRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Boost, error) {
	return r.byUUID(r.getDB(ctx), id)
}

// ByUUIDForUpdate retrieves a boost and row-locks it until the surrounding transaction ends
func (r *BoostRepositoryImpl) ByUUIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Boost, error) {
	return r.byUUID(r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *BoostRepositoryImpl) byUUID(db *gorm.DB, id uuid.UUID) (*models.Boost, error) {
	var boost models.Boost
	err := db.Where("uuid = ?", id).Last(&boost).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find boost %s: %w", id, err)
	}
	return &boost, nil
}

// ListByOwner retrieves an owner's boosts, newest first
func (r *BoostRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Boost, error) {
	filter := models.BoostFilter{OwnerID: &ownerID}
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, offset)
}

// ListLive returns boosts that are ACTIVE and whose window contains now
func (r *BoostRepositoryImpl) ListLive(ctx context.Context, now time.Time) ([]models.Boost, error) {
	db := r.getDB(ctx)

	var boosts []models.Boost
	err := db.Where("status = ? AND start_date <= ? AND end_date >= ?", models.BoostStatusActive, now, now).
		Order("id ASC").
		Find(&boosts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list live boosts: %w", err)
	}

	return boosts, nil
}

// UpdateMutable persists targeting, budget and schedule changes. Status is never written here.
func (r *BoostRepositoryImpl) UpdateMutable(ctx context.Context, boost *models.Boost) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = finishWrite(db, shouldCommit, err)
	}()

	result := db.Model(boost).
		Select(mutableBoostColumns).
		Where("status <> ?", models.BoostStatusCompleted).
		Updates(boost)
	if result.Error != nil {
		return fmt.Errorf("failed to update boost %s: %w", boost.UUID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBoostNotEditable
	}

	return nil
}

// CompareAndSwapStatus moves a boost from one status to another only if it is still in from.
// A non-nil endDate closes the window there, pulling start_date back when it lies later.
// It reports false when another writer changed the status first.
func (r *BoostRepositoryImpl) CompareAndSwapStatus(ctx context.Context, id uint, from, to models.BoostStatus, endDate *time.Time) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}
	if endDate != nil {
		updates["end_date"] = *endDate
		updates["start_date"] = gorm.Expr("LEAST(start_date, ?)", *endDate)
	}

	result := db.Model(&models.Boost{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update boost status: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// CompleteExpired marks every non-completed boost whose end date has passed as COMPLETED
// and returns the rows it changed.
func (r *BoostRepositoryImpl) CompleteExpired(ctx context.Context, now time.Time) ([]models.Boost, error) {
	db := r.getDB(ctx)

	var completed []models.Boost
	err := db.Raw(
		`UPDATE boosts SET status = ?, updated_at = ? WHERE status <> ? AND end_date < ? RETURNING *`,
		models.BoostStatusCompleted, now, models.BoostStatusCompleted, now,
	).Scan(&completed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to complete expired boosts: %w", err)
	}

	return completed, nil
}

// ByFilter retrieves boosts based on filter criteria
func (r *BoostRepositoryImpl) ByFilter(ctx context.Context, filter models.BoostFilter, orderBy string, limit, offset int) ([]*models.Boost, error) {
	db := r.getDB(ctx)

	var boosts []*models.Boost
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&boosts).Error; err != nil {
		return nil, fmt.Errorf("failed to find boosts by filter: %w", err)
	}

	return boosts, nil
}

// Count returns the number of boosts matching the filter
func (r *BoostRepositoryImpl) Count(ctx context.Context, filter models.BoostFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Boost{}), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count boosts: %w", err)
	}

	return count, nil
}

// Exists checks if any boost matching the filter exists
func (r *BoostRepositoryImpl) Exists(ctx context.Context, filter models.BoostFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *BoostRepositoryImpl) applyFilter(db *gorm.DB, filter models.BoostFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		db = db.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.TargetKind != nil {
		db = db.Where("target_kind = ?", *filter.TargetKind)
	}
	if filter.TargetID != nil {
		db = db.Where("target_id = ?", *filter.TargetID)
	}

	return db
}
