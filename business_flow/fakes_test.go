package businessflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/boostfeed/app/services"
	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memBoostRepo is an in-memory BoostRepository with the same CAS semantics as the SQL one
type memBoostRepo struct {
	mu      sync.Mutex
	nextID  uint
	boosts  map[uuid.UUID]*models.Boost
	loseCAS bool
}

func newMemBoostRepo() *memBoostRepo {
	return &memBoostRepo{boosts: map[uuid.UUID]*models.Boost{}}
}

func (r *memBoostRepo) put(b *models.Boost) *models.Boost {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	b.RankingWeight = models.ComputeWeight(b.Target.Kind, b.Budget)
	r.boosts[b.UUID] = b.Clone()
	return b
}

func (r *memBoostRepo) get(id uuid.UUID) *models.Boost {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.boosts[id]; ok {
		return b.Clone()
	}
	return nil
}

func (r *memBoostRepo) ByID(_ context.Context, id uint) (*models.Boost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.boosts {
		if b.ID == id {
			return b.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memBoostRepo) ByFilter(_ context.Context, filter models.BoostFilter, _ string, _, _ int) ([]*models.Boost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Boost
	for _, b := range r.boosts {
		if filter.OwnerID != nil && b.OwnerID != *filter.OwnerID {
			continue
		}
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *memBoostRepo) Save(_ context.Context, b *models.Boost) error {
	b.Status = models.BoostStatusPaused
	b.CreatedAt = time.Now().UTC()
	r.put(b)
	return nil
}

func (r *memBoostRepo) SaveBatch(ctx context.Context, bs []*models.Boost) error {
	for _, b := range bs {
		if err := r.Save(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (r *memBoostRepo) Count(ctx context.Context, filter models.BoostFilter) (int64, error) {
	bs, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(bs)), nil
}

func (r *memBoostRepo) Exists(ctx context.Context, filter models.BoostFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *memBoostRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Boost, error) {
	return r.get(id), nil
}

func (r *memBoostRepo) ByUUIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Boost, error) {
	return r.ByUUID(ctx, id)
}

func (r *memBoostRepo) ListByOwner(_ context.Context, ownerID uint, limit, offset int) ([]*models.Boost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Boost
	for id := r.nextID; id >= 1; id-- {
		for _, b := range r.boosts {
			if b.ID == id && b.OwnerID == ownerID {
				out = append(out, b.Clone())
			}
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memBoostRepo) ListLive(_ context.Context, now time.Time) ([]models.Boost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Boost
	for _, b := range r.boosts {
		if b.IsLiveAt(now) {
			out = append(out, *b.Clone())
		}
	}
	return out, nil
}

func (r *memBoostRepo) UpdateMutable(_ context.Context, b *models.Boost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.boosts[b.UUID]
	if !ok || cur.Status == models.BoostStatusCompleted {
		return repository.ErrBoostNotEditable
	}
	next := b.Clone()
	next.Status = cur.Status
	next.RankingWeight = models.ComputeWeight(next.Target.Kind, next.Budget)
	r.boosts[b.UUID] = next
	return nil
}

func (r *memBoostRepo) CompareAndSwapStatus(_ context.Context, id uint, from, to models.BoostStatus, endDate *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loseCAS {
		return false, nil
	}
	for _, b := range r.boosts {
		if b.ID != id {
			continue
		}
		if b.Status != from {
			return false, nil
		}
		b.Status = to
		if endDate != nil {
			b.EndDate = *endDate
			if endDate.Before(b.StartDate) {
				b.StartDate = *endDate
			}
		}
		return true, nil
	}
	return false, nil
}

func (r *memBoostRepo) CompleteExpired(_ context.Context, now time.Time) ([]models.Boost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Boost
	for _, b := range r.boosts {
		if b.Status != models.BoostStatusCompleted && b.EndDate.Before(now) {
			b.Status = models.BoostStatusCompleted
			out = append(out, *b.Clone())
		}
	}
	return out, nil
}

// memPostRepo serves fixed candidates
type memPostRepo struct {
	candidates []models.CandidatePost
	existing   map[uuid.UUID]bool
	targeted   []models.CandidatePost
	err        error
}

func (r *memPostRepo) ByUUID(_ context.Context, _ uuid.UUID) (*models.Post, error) { return nil, nil }

func (r *memPostRepo) ExistsByUUID(_ context.Context, id uuid.UUID) (bool, error) {
	return r.existing[id], r.err
}

func (r *memPostRepo) FeedCandidates(_ context.Context, limit int) ([]models.CandidatePost, error) {
	if r.err != nil {
		return nil, r.err
	}
	if limit < len(r.candidates) {
		return r.candidates[:limit], nil
	}
	return r.candidates, nil
}

func (r *memPostRepo) CandidatesForTargets(_ context.Context, _, _ []uuid.UUID) ([]models.CandidatePost, error) {
	return r.targeted, r.err
}

type memUserRepo struct {
	profiles map[uint]*models.ViewerProfile
	calls    int
}

func (r *memUserRepo) ByID(_ context.Context, _ uint) (*models.User, error) { return nil, nil }

func (r *memUserRepo) ViewerProfile(_ context.Context, id uint) (*models.ViewerProfile, error) {
	r.calls++
	return r.profiles[id], nil
}

type memAuditRepo struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (r *memAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

func (r *memAuditRepo) ByID(_ context.Context, _ uint) (*models.AuditLog, error) { return nil, nil }
func (r *memAuditRepo) ByFilter(_ context.Context, _ models.AuditLogFilter, _ string, _, _ int) ([]*models.AuditLog, error) {
	return nil, nil
}
func (r *memAuditRepo) Save(_ context.Context, l *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}
func (r *memAuditRepo) SaveBatch(ctx context.Context, ls []*models.AuditLog) error {
	for _, l := range ls {
		_ = r.Save(ctx, l)
	}
	return nil
}
func (r *memAuditRepo) Count(_ context.Context, _ models.AuditLogFilter) (int64, error) {
	return int64(len(r.logs)), nil
}
func (r *memAuditRepo) Exists(_ context.Context, _ models.AuditLogFilter) (bool, error) {
	return len(r.logs) > 0, nil
}
func (r *memAuditRepo) ListByUser(_ context.Context, _ uint, _, _ int) ([]*models.AuditLog, error) {
	return r.logs, nil
}
func (r *memAuditRepo) ListByAction(_ context.Context, _ string, _, _ int) ([]*models.AuditLog, error) {
	return r.logs, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.BoostEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e services.BoostEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type stubVerifier struct {
	accepted bool
	tendered decimal.Decimal
	err      error
	calls    int
	mu       sync.Mutex
}

func (v *stubVerifier) Name() string { return "stub" }

func (v *stubVerifier) Verify(_ context.Context, _ services.PaymentRequest) (*services.PaymentVerification, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return &services.PaymentVerification{Accepted: v.accepted, TenderedAmount: v.tendered}, nil
}

type memViewerCache struct {
	entries map[uint]*models.ViewerProfile
	getErr  error
}

func (c *memViewerCache) Get(_ context.Context, id uint) (*models.ViewerProfile, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[id], nil
}

func (c *memViewerCache) Set(_ context.Context, p *models.ViewerProfile) error {
	c.entries[p.ID] = p
	return nil
}

var errStorage = errors.New("storage offline")
