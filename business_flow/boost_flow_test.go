package businessflow

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/boostfeed/app/dto"
	"github.com/amirphl/boostfeed/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type boostFlowFixture struct {
	flow      *BoostFlowImpl
	boosts    *memBoostRepo
	posts     *memPostRepo
	audit     *memAuditRepo
	publisher *recordingPublisher
	verifier  *stubVerifier
	now       time.Time
}

func newBoostFlowFixture() *boostFlowFixture {
	fx := &boostFlowFixture{
		boosts:    newMemBoostRepo(),
		posts:     &memPostRepo{existing: map[uuid.UUID]bool{}},
		audit:     &memAuditRepo{},
		publisher: &recordingPublisher{},
		verifier:  &stubVerifier{accepted: true, tendered: decimal.NewFromInt(1000)},
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	flow := NewBoostFlow(fx.boosts, fx.posts, fx.audit, fx.verifier, fx.publisher, nil).(*BoostFlowImpl)
	flow.now = func() time.Time { return fx.now }
	fx.flow = flow
	return fx
}

func (fx *boostFlowFixture) seed(owner uint, status models.BoostStatus) *models.Boost {
	return fx.boosts.put(&models.Boost{
		OwnerID:   owner,
		Target:    models.BoostTarget{Kind: models.TargetKindPost, ID: uuid.New()},
		Budget:    decimal.NewFromInt(250),
		StartDate: fx.now.Add(-time.Hour),
		EndDate:   fx.now.Add(24 * time.Hour),
		Status:    status,
	})
}

func createRequest(targetID uuid.UUID, now time.Time) *dto.CreateBoostRequest {
	gender := "female"
	return &dto.CreateBoostRequest{
		OwnerID:    7,
		TargetKind: "post",
		TargetID:   targetID.String(),
		Budget:     decimal.NewFromInt(250),
		StartDate:  now,
		EndDate:    now.Add(48 * time.Hour),
		Audience: dto.AudienceCriteriaDTO{
			Gender:    &gender,
			Interests: []string{" music ", "", "music", "travel"},
		},
	}
}

func TestBoostFlow_CreateBoost(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		fx := newBoostFlowFixture()
		target := uuid.New()
		fx.posts.existing[target] = true

		resp, err := fx.flow.CreateBoost(context.Background(), createRequest(target, fx.now), NewClientMetadata("127.0.0.1", "test"))
		require.NoError(t, err)

		assert.Equal(t, string(models.BoostStatusPaused), resp.Status)
		assert.Equal(t, 125, resp.RankingWeight)
		assert.Equal(t, "POST", resp.TargetKind)
		require.NotNil(t, resp.Audience.Gender)
		assert.Equal(t, "FEMALE", *resp.Audience.Gender)
		assert.Equal(t, []string{"music", "travel"}, resp.Audience.Interests)

		assert.Equal(t, []string{models.AuditActionBoostCreated}, fx.audit.actions())
		require.Len(t, fx.publisher.events, 1)
		assert.Equal(t, models.AuditActionBoostCreated, fx.publisher.events[0].Type)
	})

	t.Run("MissingTargetPost", func(t *testing.T) {
		fx := newBoostFlowFixture()

		_, err := fx.flow.CreateBoost(context.Background(), createRequest(uuid.New(), fx.now), nil)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.True(t, IsTargetPostNotFound(err))
		assert.Empty(t, fx.audit.actions())
	})

	t.Run("PageTargetIsNotResolved", func(t *testing.T) {
		fx := newBoostFlowFixture()
		req := createRequest(uuid.New(), fx.now)
		req.TargetKind = "PAGE"
		req.Budget = decimal.NewFromInt(95)

		resp, err := fx.flow.CreateBoost(context.Background(), req, nil)
		require.NoError(t, err)
		assert.Equal(t, 59, resp.RankingWeight)
	})

	t.Run("InvalidAudience", func(t *testing.T) {
		fx := newBoostFlowFixture()
		target := uuid.New()
		fx.posts.existing[target] = true
		req := createRequest(target, fx.now)
		minAge, maxAge := 40, 20
		req.Audience.AgeMin = &minAge
		req.Audience.AgeMax = &maxAge

		_, err := fx.flow.CreateBoost(context.Background(), req, nil)
		assert.True(t, IsValidationError(err))
		assert.ErrorIs(t, err, ErrAgeRangeInverted)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		fx := newBoostFlowFixture()
		fx.posts.err = errStorage

		_, err := fx.flow.CreateBoost(context.Background(), createRequest(uuid.New(), fx.now), nil)
		var be *BusinessError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "TARGET_LOOKUP_FAILED", be.Code)
	})
}

func TestBoostFlow_TransitionBoost(t *testing.T) {
	ctx := context.Background()

	t.Run("PayActivates", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusPaused)

		resp, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPay, &dto.TransitionBoostRequest{PaymentToken: "tok"}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.BoostStatusActive), resp.Status)
		assert.Equal(t, models.BoostStatusActive, fx.boosts.get(b.UUID).Status)
		assert.Equal(t, 1, fx.verifier.calls)
		assert.Equal(t, []string{models.AuditActionBoostPaid}, fx.audit.actions())
		require.Len(t, fx.publisher.events, 1)
		assert.Equal(t, "PAUSED", fx.publisher.events[0].FromStatus)
		assert.Equal(t, "ACTIVE", fx.publisher.events[0].ToStatus)
	})

	t.Run("PayWithoutTokenSkipsGateway", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusPaused)

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPay, nil, nil)
		assert.Equal(t, GuardPaymentTokenRequired, ConflictGuard(err))
		assert.Zero(t, fx.verifier.calls)
		assert.Equal(t, models.BoostStatusPaused, fx.boosts.get(b.UUID).Status)
		assert.Equal(t, []string{models.AuditActionBoostTransitionFailed}, fx.audit.actions())
	})

	t.Run("PayWithBlankTokenSkipsGateway", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusPaused)

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPay, &dto.TransitionBoostRequest{PaymentToken: " \t "}, nil)
		assert.Equal(t, GuardPaymentTokenRequired, ConflictGuard(err))
		assert.Zero(t, fx.verifier.calls)
		assert.Equal(t, models.BoostStatusPaused, fx.boosts.get(b.UUID).Status)
	})

	t.Run("PayUnderBudget", func(t *testing.T) {
		fx := newBoostFlowFixture()
		fx.verifier.tendered = decimal.NewFromInt(249)
		b := fx.seed(7, models.BoostStatusPaused)

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPay, &dto.TransitionBoostRequest{PaymentToken: "tok"}, nil)
		assert.Equal(t, GuardInsufficientPayment, ConflictGuard(err))
		assert.Equal(t, models.BoostStatusPaused, fx.boosts.get(b.UUID).Status)
		assert.Empty(t, fx.publisher.events)
	})

	t.Run("PayRejectedByGateway", func(t *testing.T) {
		fx := newBoostFlowFixture()
		fx.verifier.accepted = false
		b := fx.seed(7, models.BoostStatusPaused)

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPay, &dto.TransitionBoostRequest{PaymentToken: "tok"}, nil)
		assert.Equal(t, GuardPaymentRejected, ConflictGuard(err))
	})

	t.Run("GatewayFailureIsNotConflict", func(t *testing.T) {
		fx := newBoostFlowFixture()
		fx.verifier.err = errors.New("timeout")
		b := fx.seed(7, models.BoostStatusPaused)

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPay, &dto.TransitionBoostRequest{PaymentToken: "tok"}, nil)
		require.Error(t, err)
		assert.False(t, IsConflictError(err))
		assert.Equal(t, models.BoostStatusPaused, fx.boosts.get(b.UUID).Status)
	})

	t.Run("PauseResumeRoundTrip", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusActive)

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPause, nil, nil)
		require.NoError(t, err)
		_, err = fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPause, nil, nil)
		assert.Equal(t, GuardStatusMustBeActive, ConflictGuard(err))

		resp, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionResume, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", resp.Status)
		assert.Equal(t, b.RankingWeight, resp.RankingWeight)
		assert.Equal(t, b.Budget.String(), resp.Budget)
	})

	t.Run("StopSetsEndDateAndIsTerminal", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusActive)

		resp, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionStop, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", resp.Status)
		assert.True(t, resp.EndDate.Equal(fx.now))
		assert.True(t, fx.boosts.get(b.UUID).EndDate.Equal(fx.now))

		for _, action := range []BoostAction{BoostActionPay, BoostActionPause, BoostActionResume, BoostActionStop} {
			_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), action, &dto.TransitionBoostRequest{PaymentToken: "tok"}, nil)
			assert.Equal(t, GuardBoostCompleted, ConflictGuard(err), "action %s", action)
		}
	})

	t.Run("LostCompareAndSwap", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusActive)
		fx.boosts.loseCAS = true

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPause, nil, nil)
		assert.Equal(t, GuardConcurrentTransition, ConflictGuard(err))
		assert.ErrorIs(t, err, ErrConcurrentTransition)
	})

	t.Run("NotFoundAndForeignOwner", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusActive)

		_, err := fx.flow.TransitionBoost(ctx, 7, uuid.NewString(), BoostActionPause, nil, nil)
		assert.True(t, IsBoostNotFound(err))

		_, err = fx.flow.TransitionBoost(ctx, 8, b.UUID.String(), BoostActionPause, nil, nil)
		assert.True(t, IsBoostAccessDenied(err))
		assert.Equal(t, models.BoostStatusActive, fx.boosts.get(b.UUID).Status)
	})

	t.Run("UnknownActionAndBadUUID", func(t *testing.T) {
		fx := newBoostFlowFixture()

		_, err := fx.flow.TransitionBoost(ctx, 7, uuid.NewString(), BoostAction("refund"), nil, nil)
		assert.ErrorIs(t, err, ErrUnknownBoostAction)

		_, err = fx.flow.TransitionBoost(ctx, 7, "not-a-uuid", BoostActionPause, nil, nil)
		assert.True(t, IsValidationError(err))
	})

	t.Run("PublishFailureDoesNotFailTransition", func(t *testing.T) {
		fx := newBoostFlowFixture()
		fx.publisher.err = errors.New("broker down")
		b := fx.seed(7, models.BoostStatusActive)

		_, err := fx.flow.TransitionBoost(ctx, 7, b.UUID.String(), BoostActionPause, nil, nil)
		assert.NoError(t, err)
	})
}

func TestBoostFlow_ConcurrentPay(t *testing.T) {
	fx := newBoostFlowFixture()
	b := fx.seed(7, models.BoostStatusPaused)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := fx.flow.TransitionBoost(context.Background(), 7, b.UUID.String(), BoostActionPay, &dto.TransitionBoostRequest{PaymentToken: "tok"}, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if IsConflictError(err) {
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, models.BoostStatusActive, fx.boosts.get(b.UUID).Status)
}

func TestBoostFlow_UpdateBoost(t *testing.T) {
	ctx := context.Background()

	t.Run("RecomputesWeight", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusActive)
		budget := decimal.NewFromInt(500)

		resp, err := fx.flow.UpdateBoost(ctx, &dto.UpdateBoostRequest{OwnerID: 7, BoostUUID: b.UUID.String(), Budget: &budget}, nil)
		require.NoError(t, err)
		assert.Equal(t, 150, resp.RankingWeight)
		assert.Equal(t, "ACTIVE", resp.Status)
		assert.Equal(t, 150, fx.boosts.get(b.UUID).RankingWeight)
	})

	t.Run("ChangingPostTargetIsResolved", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusPaused)
		missing := uuid.NewString()

		_, err := fx.flow.UpdateBoost(ctx, &dto.UpdateBoostRequest{OwnerID: 7, BoostUUID: b.UUID.String(), TargetID: &missing}, nil)
		assert.True(t, IsTargetPostNotFound(err))
	})

	t.Run("CompletedIsConflict", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusCompleted)
		budget := decimal.NewFromInt(10)

		_, err := fx.flow.UpdateBoost(ctx, &dto.UpdateBoostRequest{OwnerID: 7, BoostUUID: b.UUID.String(), Budget: &budget}, nil)
		assert.Equal(t, GuardBoostCompleted, ConflictGuard(err))
	})

	t.Run("EmptyUpdate", func(t *testing.T) {
		fx := newBoostFlowFixture()
		b := fx.seed(7, models.BoostStatusPaused)

		_, err := fx.flow.UpdateBoost(ctx, &dto.UpdateBoostRequest{OwnerID: 7, BoostUUID: b.UUID.String()}, nil)
		assert.ErrorIs(t, err, ErrNoUpdateFields)
	})
}

func TestBoostFlow_ListAndExport(t *testing.T) {
	fx := newBoostFlowFixture()
	for i := 0; i < 3; i++ {
		fx.seed(7, models.BoostStatusPaused)
	}
	fx.seed(8, models.BoostStatusPaused)

	page1, err := fx.flow.ListBoosts(context.Background(), &dto.ListBoostsRequest{OwnerID: 7, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page1.Boosts, 2)
	assert.True(t, page1.Pagination.HasMore)

	page2, err := fx.flow.ListBoosts(context.Background(), &dto.ListBoostsRequest{OwnerID: 7, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page2.Boosts, 1)
	assert.False(t, page2.Pagination.HasMore)

	name, data, err := fx.flow.ExportBoosts(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "boosts_7_20240601.xlsx", name)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()
	rows, err := xl.GetRows(exportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "uuid", rows[0][0])
	assert.Equal(t, "250.00", rows[1][3])
}

func TestBoostFlow_GetBoost(t *testing.T) {
	fx := newBoostFlowFixture()
	b := fx.seed(7, models.BoostStatusPaused)

	resp, err := fx.flow.GetBoost(context.Background(), 7, b.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, b.UUID.String(), resp.UUID)

	_, err = fx.flow.GetBoost(context.Background(), 9, b.UUID.String())
	assert.True(t, IsBoostAccessDenied(err))
}
