package businessflow

import (
	"sort"
	"time"

	"github.com/amirphl/boostfeed/models"
	"github.com/google/uuid"
)

// Relevance key terms
const (
	friendAffinity       = 40
	pageAffinity         = 35
	postBoostBase        = 100
	pageBoostBase        = 60
	likeWeight           = 2
	commentWeight        = 5
	mediaBonus           = 15
	freshWithinDay       = 50
	freshWithinThreeDays = 20
	scoreFloor           = 1

	freshDayWindow       = 24 * time.Hour
	freshThreeDaysWindow = 3 * 24 * time.Hour
)

// boostIndex maps each promoted target to the best bonus any live boost gives it
type boostIndex struct {
	posts map[uuid.UUID]int
	pages map[uuid.UUID]int
}

func buildBoostIndex(viewer viewerSignals, promotions []models.Boost, now time.Time) boostIndex {
	idx := boostIndex{
		posts: make(map[uuid.UUID]int),
		pages: make(map[uuid.UUID]int),
	}

	for i := range promotions {
		p := &promotions[i]
		if !p.IsLiveAt(now) {
			continue
		}

		match := viewer.match(p.Audience)
		switch p.Target.Kind {
		case models.TargetKindPost:
			idx.posts[p.Target.ID] = maxBonus(idx.posts, p.Target.ID, postBoostBase+match)
		case models.TargetKindPage:
			idx.pages[p.Target.ID] = maxBonus(idx.pages, p.Target.ID, pageBoostBase+match)
		}
	}

	return idx
}

func maxBonus(m map[uuid.UUID]int, id uuid.UUID, bonus int) int {
	if cur, ok := m[id]; ok && cur > bonus {
		return cur
	}
	return bonus
}

func (idx boostIndex) bonusFor(post models.CandidatePost) int {
	bonus := idx.posts[post.UUID]
	if post.PageUUID != nil {
		if pb := idx.pages[*post.PageUUID]; pb > bonus {
			bonus = pb
		}
	}
	return bonus
}

// ScoreFeed orders candidates by relevance for viewer at now.
// Promotions that are not ACTIVE inside their time window are ignored.
// The result is sorted by score, then creation time, then post id, all descending.
func ScoreFeed(viewer models.ViewerProfile, candidates []models.CandidatePost, promotions []models.Boost, now time.Time) []models.ScoredPost {
	signals := newViewerSignals(viewer, now)
	boosts := buildBoostIndex(signals, promotions, now)

	friends := make(map[uint]struct{}, len(viewer.FriendIDs))
	for _, id := range viewer.FriendIDs {
		friends[id] = struct{}{}
	}
	pages := make(map[uint]struct{}, len(viewer.SubscribedPageIDs))
	for _, id := range viewer.SubscribedPageIDs {
		pages[id] = struct{}{}
	}

	scored := make([]models.ScoredPost, 0, len(candidates))
	for _, post := range candidates {
		var b models.ScoreBreakdown

		if _, ok := friends[post.AuthorID]; ok {
			b.Affinity = friendAffinity
		} else if post.PageID != nil {
			if _, ok := pages[*post.PageID]; ok {
				b.Affinity = pageAffinity
			}
		}

		b.Boost = float64(boosts.bonusFor(post))
		b.Engagement = float64(likeWeight*post.LikeCount + commentWeight*post.CommentCount)
		if post.HasMedia {
			b.Content = mediaBonus
		}
		b.Freshness = freshness(post.CreatedAt, now)

		scored = append(scored, models.ScoredPost{
			Post:      post,
			Score:     b.Affinity + b.Boost + b.Engagement + b.Content + b.Freshness + scoreFloor,
			Breakdown: b,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, c := scored[i], scored[j]
		if a.Score != c.Score {
			return a.Score > c.Score
		}
		if !a.Post.CreatedAt.Equal(c.Post.CreatedAt) {
			return a.Post.CreatedAt.After(c.Post.CreatedAt)
		}
		return a.Post.ID > c.Post.ID
	})

	return scored
}

// freshness treats both windows as closed and posts dated after now as fresh
func freshness(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	switch {
	case age <= freshDayWindow:
		return freshWithinDay
	case age <= freshThreeDaysWindow:
		return freshWithinThreeDays
	default:
		return 0
	}
}
