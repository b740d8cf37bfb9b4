package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a user with a random username
func (tf *TestFixtures) CreateTestUser(city, gender string, interests ...string) (*models.User, error) {
	user := &models.User{
		Username:  fmt.Sprintf("user_%09d", rand.Intn(1000000000)),
		City:      city,
		Gender:    gender,
		BirthDate: utils.ToPtr(time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC)),
		Interests: pq.StringArray(interests),
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// CreateTestPage creates a page owned by ownerID
func (tf *TestFixtures) CreateTestPage(ownerID uint) (*models.Page, error) {
	page := &models.Page{OwnerID: ownerID, Name: "page-" + uuid.NewString()[:8]}
	if err := tf.DB.DB.Create(page).Error; err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// Subscribe subscribes userID to pageID
func (tf *TestFixtures) Subscribe(userID, pageID uint) error {
	return tf.DB.DB.Create(&models.PageSubscription{UserID: userID, PageID: pageID}).Error
}

// Befriend records a friendship from one user to another with the given status
func (tf *TestFixtures) Befriend(fromID, toID uint, status models.FriendshipStatus) error {
	return tf.DB.DB.Create(&models.Friendship{FromUserID: fromID, ToUserID: toID, Status: status}).Error
}

// CreateTestPost creates a post created at the given time with optional media
func (tf *TestFixtures) CreateTestPost(authorID uint, pageID *uint, createdAt time.Time, media ...string) (*models.Post, error) {
	post := &models.Post{
		AuthorID:  authorID,
		PageID:    pageID,
		Content:   "post body",
		Media:     models.MediaList(media),
		CreatedAt: createdAt,
	}
	if err := tf.DB.DB.Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// AddLikes adds n likes on postID from freshly created users
func (tf *TestFixtures) AddLikes(postID uint, n int) error {
	for i := 0; i < n; i++ {
		u, err := tf.CreateTestUser("", models.GenderAll)
		if err != nil {
			return err
		}
		if err := tf.DB.DB.Create(&models.Like{PostID: postID, UserID: u.ID}).Error; err != nil {
			return fmt.Errorf("failed to create like: %w", err)
		}
	}
	return nil
}

// AddComments adds n comments on postID by userID
func (tf *TestFixtures) AddComments(postID, userID uint, n int) error {
	for i := 0; i < n; i++ {
		if err := tf.DB.DB.Create(&models.Comment{PostID: postID, UserID: userID, Body: "nice"}).Error; err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
	}
	return nil
}

// CreateTestBoost persists a boost with the given status and window
func (tf *TestFixtures) CreateTestBoost(ownerID uint, kind models.TargetKind, target uuid.UUID, status models.BoostStatus, start, end time.Time) (*models.Boost, error) {
	boost := &models.Boost{
		OwnerID:   ownerID,
		Target:    models.BoostTarget{Kind: kind, ID: target},
		Budget:    decimal.NewFromInt(100),
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
	if err := tf.DB.DB.Create(boost).Error; err != nil {
		return nil, fmt.Errorf("failed to create boost: %w", err)
	}
	return boost, nil
}
