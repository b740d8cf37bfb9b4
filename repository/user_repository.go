package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/amirphl/boostfeed/models"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements the UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, struct{}]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, struct{}](db),
	}
}

// ViewerProfile loads the scoring view of a user. Returns nil, nil when the user does not exist.
func (r *UserRepositoryImpl) ViewerProfile(ctx context.Context, userID uint) (*models.ViewerProfile, error) {
	user, err := r.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	friendIDs, err := r.acceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	pageIDs, err := r.subscribedPageIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.ViewerProfile{
		ID:                user.ID,
		City:              user.City,
		Gender:            user.Gender,
		BirthDate:         user.BirthDate,
		Interests:         []string(user.Interests),
		FriendIDs:         friendIDs,
		SubscribedPageIDs: pageIDs,
	}, nil
}

// acceptedFriendIDs resolves ACCEPTED friendships in both directions
func (r *UserRepositoryImpl) acceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Raw(
		`SELECT CASE WHEN from_user_id = ? THEN to_user_id ELSE from_user_id END AS friend_id
		FROM friendships
		WHERE status = ? AND (from_user_id = ? OR to_user_id = ?)`,
		userID, models.FriendshipStatusAccepted, userID, userID,
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load friends of user %d: %w", userID, err)
	}

	return dedupeIDs(ids), nil
}

func (r *UserRepositoryImpl) subscribedPageIDs(ctx context.Context, userID uint) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Model(&models.PageSubscription{}).
		Where("user_id = ?", userID).
		Order("page_id ASC").
		Pluck("page_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions of user %d: %w", userID, err)
	}

	return ids, nil
}

func dedupeIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
