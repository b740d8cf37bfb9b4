package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/boostfeed/app/dto"
	"github.com/amirphl/boostfeed/app/services"
	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/repository"
	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
)

// FeedFlow assembles a viewer's ranked feed
type FeedFlow interface {
	GetFeed(ctx context.Context, viewerID uint, page, pageSize int) (*dto.FeedResponse, error)
}

// FeedFlowImpl implements FeedFlow
type FeedFlowImpl struct {
	userRepo        repository.UserRepository
	postRepo        repository.PostRepository
	boostRepo       repository.BoostRepository
	viewerCache     services.ViewerCache
	candidateWindow int
	now             func() time.Time
}

// NewFeedFlow creates a new feed flow. candidateWindow bounds how many recent posts are scored per request.
func NewFeedFlow(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	boostRepo repository.BoostRepository,
	viewerCache services.ViewerCache,
	candidateWindow int,
) FeedFlow {
	if candidateWindow <= 0 {
		candidateWindow = utils.DefaultCandidateWindow
	}
	return &FeedFlowImpl{
		userRepo:        userRepo,
		postRepo:        postRepo,
		boostRepo:       boostRepo,
		viewerCache:     viewerCache,
		candidateWindow: candidateWindow,
		now:             utils.UTCNow,
	}
}

// GetFeed scores the candidate window plus every live boosted target and returns one page
func (f *FeedFlowImpl) GetFeed(ctx context.Context, viewerID uint, page, pageSize int) (*dto.FeedResponse, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewValidationError("page", ErrInvalidPage)
	}
	if pageSize == 0 {
		pageSize = utils.DefaultFeedPageSize
	}
	if pageSize < 1 || pageSize > utils.MaxFeedPageSize {
		return nil, NewValidationError("page_size", ErrInvalidPageSize)
	}

	viewer, err := f.loadViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	now := f.now()

	candidates, err := f.postRepo.FeedCandidates(ctx, f.candidateWindow)
	if err != nil {
		return nil, NewBusinessError("FEED_CANDIDATES_FAILED", "Failed to load feed candidates", err)
	}

	promotions, err := f.boostRepo.ListLive(ctx, now)
	if err != nil {
		return nil, NewBusinessError("FEED_PROMOTIONS_FAILED", "Failed to load active promotions", err)
	}

	candidates, err = f.mergeBoostedTargets(ctx, candidates, promotions)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	scored := ScoreFeed(*viewer, candidates, promotions, now)
	feedScoringDuration.Observe(time.Since(start).Seconds())
	feedCandidates.Observe(float64(len(candidates)))

	from := (page - 1) * pageSize
	if from > len(scored) {
		from = len(scored)
	}
	to := from + pageSize
	if to > len(scored) {
		to = len(scored)
	}

	items := make([]dto.FeedItem, 0, to-from)
	for _, sp := range scored[from:to] {
		items = append(items, toFeedItem(sp))
	}

	total := len(scored)
	return &dto.FeedResponse{
		Items: items,
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			HasMore:  to < len(scored),
			Total:    &total,
		},
	}, nil
}

// loadViewer reads through the viewer cache. Cache failures degrade to a database read.
func (f *FeedFlowImpl) loadViewer(ctx context.Context, viewerID uint) (*models.ViewerProfile, error) {
	if f.viewerCache != nil {
		cached, err := f.viewerCache.Get(ctx, viewerID)
		if err != nil {
			log.Printf("feed flow: viewer cache read failed for %d: %v", viewerID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	viewer, err := f.userRepo.ViewerProfile(ctx, viewerID)
	if err != nil {
		return nil, NewBusinessError("VIEWER_LOOKUP_FAILED", "Failed to load viewer profile", err)
	}
	if viewer == nil {
		return nil, ErrViewerNotFound
	}

	if f.viewerCache != nil {
		if err := f.viewerCache.Set(ctx, viewer); err != nil {
			log.Printf("feed flow: viewer cache write failed for %d: %v", viewerID, err)
		}
	}

	return viewer, nil
}

// mergeBoostedTargets adds posts of live boosted targets that fell outside the recency window
func (f *FeedFlowImpl) mergeBoostedTargets(ctx context.Context, candidates []models.CandidatePost, promotions []models.Boost) ([]models.CandidatePost, error) {
	if len(promotions) == 0 {
		return candidates, nil
	}

	var postUUIDs, pageUUIDs []uuid.UUID
	for _, p := range promotions {
		switch p.Target.Kind {
		case models.TargetKindPost:
			postUUIDs = append(postUUIDs, p.Target.ID)
		case models.TargetKindPage:
			pageUUIDs = append(pageUUIDs, p.Target.ID)
		}
	}

	boosted, err := f.postRepo.CandidatesForTargets(ctx, postUUIDs, pageUUIDs)
	if err != nil {
		return nil, NewBusinessError("FEED_CANDIDATES_FAILED", "Failed to load boosted posts", err)
	}

	seen := make(map[uint]struct{}, len(candidates)+len(boosted))
	merged := make([]models.CandidatePost, 0, len(candidates)+len(boosted))
	for _, list := range [][]models.CandidatePost{candidates, boosted} {
		for _, c := range list {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			merged = append(merged, c)
		}
	}
	return merged, nil
}

func toFeedItem(sp models.ScoredPost) dto.FeedItem {
	item := dto.FeedItem{
		PostUUID:     sp.Post.UUID.String(),
		AuthorID:     sp.Post.AuthorID,
		Content:      sp.Post.Content,
		CreatedAt:    sp.Post.CreatedAt,
		LikeCount:    sp.Post.LikeCount,
		CommentCount: sp.Post.CommentCount,
		HasMedia:     sp.Post.HasMedia,
		Score:        sp.Score,
		Breakdown: dto.ScoreBreakdownDTO{
			Affinity:   sp.Breakdown.Affinity,
			Boost:      sp.Breakdown.Boost,
			Engagement: sp.Breakdown.Engagement,
			Content:    sp.Breakdown.Content,
			Freshness:  sp.Breakdown.Freshness,
		},
	}
	if sp.Post.PageUUID != nil {
		s := sp.Post.PageUUID.String()
		item.PageUUID = &s
	}
	return item
}
