package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lifecycleNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func pausedBoost(budget int64) *models.Boost {
	b := &models.Boost{
		ID:        7,
		UUID:      uuid.New(),
		OwnerID:   1,
		Target:    models.BoostTarget{Kind: models.TargetKindPost, ID: uuid.New()},
		Budget:    decimal.NewFromInt(budget),
		StartDate: lifecycleNow.Add(-24 * time.Hour),
		EndDate:   lifecycleNow.Add(24 * time.Hour),
		Status:    models.BoostStatusPaused,
	}
	b.RankingWeight = models.ComputeWeight(b.Target.Kind, b.Budget)
	return b
}

func payParams(amount int64) TransitionParams {
	return TransitionParams{
		PaymentToken:    "tok_123",
		PaymentAccepted: true,
		TenderedAmount:  decimal.NewFromInt(amount),
	}
}

func TestApplyBoostTransition_Pay(t *testing.T) {
	t.Run("SufficientAmountActivates", func(t *testing.T) {
		b := pausedBoost(250)
		next, err := ApplyBoostTransition(b, BoostActionPay, payParams(250), lifecycleNow)
		require.NoError(t, err)
		assert.Equal(t, models.BoostStatusActive, next.Status)
		assert.Equal(t, models.BoostStatusPaused, b.Status, "input must not be mutated")
	})

	t.Run("InsufficientAmount", func(t *testing.T) {
		b := pausedBoost(250)
		next, err := ApplyBoostTransition(b, BoostActionPay, payParams(249), lifecycleNow)
		assert.Nil(t, next)
		require.Error(t, err)
		assert.True(t, IsConflictError(err))
		assert.Equal(t, GuardInsufficientPayment, ConflictGuard(err))
		assert.Equal(t, models.BoostStatusPaused, b.Status)
	})

	t.Run("MissingToken", func(t *testing.T) {
		params := payParams(500)
		params.PaymentToken = "  "
		_, err := ApplyBoostTransition(pausedBoost(250), BoostActionPay, params, lifecycleNow)
		assert.Equal(t, GuardPaymentTokenRequired, ConflictGuard(err))
	})

	t.Run("RejectedByVerifier", func(t *testing.T) {
		params := payParams(500)
		params.PaymentAccepted = false
		_, err := ApplyBoostTransition(pausedBoost(250), BoostActionPay, params, lifecycleNow)
		assert.Equal(t, GuardPaymentRejected, ConflictGuard(err))
	})

	t.Run("AlreadyActive", func(t *testing.T) {
		b := pausedBoost(250)
		b.Status = models.BoostStatusActive
		_, err := ApplyBoostTransition(b, BoostActionPay, payParams(250), lifecycleNow)
		assert.Equal(t, GuardStatusMustBePaused, ConflictGuard(err))
	})
}

func TestApplyBoostTransition_PauseResume(t *testing.T) {
	b := pausedBoost(120)
	active, err := ApplyBoostTransition(b, BoostActionPay, payParams(120), lifecycleNow)
	require.NoError(t, err)

	paused, err := ApplyBoostTransition(active, BoostActionPause, TransitionParams{}, lifecycleNow)
	require.NoError(t, err)
	assert.Equal(t, models.BoostStatusPaused, paused.Status)

	resumed, err := ApplyBoostTransition(paused, BoostActionResume, TransitionParams{}, lifecycleNow)
	require.NoError(t, err)
	assert.Equal(t, models.BoostStatusActive, resumed.Status)
	assert.Equal(t, active.RankingWeight, resumed.RankingWeight)
	assert.True(t, active.Budget.Equal(resumed.Budget))
	assert.Equal(t, active.EndDate, resumed.EndDate)

	_, err = ApplyBoostTransition(paused, BoostActionPause, TransitionParams{}, lifecycleNow)
	assert.Equal(t, GuardStatusMustBeActive, ConflictGuard(err))

	_, err = ApplyBoostTransition(resumed, BoostActionResume, TransitionParams{}, lifecycleNow)
	assert.Equal(t, GuardStatusMustBePaused, ConflictGuard(err))
}

func TestApplyBoostTransition_Stop(t *testing.T) {
	b := pausedBoost(100)
	stopped, err := ApplyBoostTransition(b, BoostActionStop, TransitionParams{}, lifecycleNow)
	require.NoError(t, err)
	assert.Equal(t, models.BoostStatusCompleted, stopped.Status)
	assert.Equal(t, lifecycleNow, stopped.EndDate)

	for _, action := range []BoostAction{BoostActionPay, BoostActionPause, BoostActionResume, BoostActionStop} {
		_, err := ApplyBoostTransition(stopped, action, payParams(1000), lifecycleNow)
		assert.True(t, IsConflictError(err), action)
		assert.Equal(t, GuardBoostCompleted, ConflictGuard(err), action)
	}
}

func TestApplyBoostTransition_StopBeforeStartKeepsRangeOrdered(t *testing.T) {
	b := pausedBoost(100)
	b.StartDate = lifecycleNow.Add(time.Hour)
	b.EndDate = lifecycleNow.Add(2 * time.Hour)

	stopped, err := ApplyBoostTransition(b, BoostActionStop, TransitionParams{}, lifecycleNow)
	require.NoError(t, err)
	assert.False(t, stopped.EndDate.Before(stopped.StartDate))
}

func TestApplyBoostTransition_UnknownAction(t *testing.T) {
	_, err := ApplyBoostTransition(pausedBoost(10), BoostAction("delete"), TransitionParams{}, lifecycleNow)
	assert.True(t, IsValidationError(err))
}

func TestCheckTransitionAllowed_FollowsBoostTransitionTable(t *testing.T) {
	statuses := []models.BoostStatus{models.BoostStatusPaused, models.BoostStatusActive, models.BoostStatusCompleted}
	actions := []BoostAction{BoostActionPay, BoostActionPause, BoostActionResume, BoostActionStop}

	for _, status := range statuses {
		for _, action := range actions {
			b := pausedBoost(100)
			b.Status = status

			err := CheckTransitionAllowed(b, action)
			assert.Equal(t, b.CanTransitionTo(action.TargetStatus()), err == nil, "%s %s", status, action)

			switch {
			case err == nil:
			case !b.IsEditable():
				assert.Equal(t, GuardBoostCompleted, ConflictGuard(err))
			case action == BoostActionPause:
				assert.Equal(t, GuardStatusMustBeActive, ConflictGuard(err))
			default:
				assert.Equal(t, GuardStatusMustBePaused, ConflictGuard(err))
			}
		}
	}
}

func TestBoostAction_TargetStatus(t *testing.T) {
	assert.Equal(t, models.BoostStatusActive, BoostActionPay.TargetStatus())
	assert.Equal(t, models.BoostStatusActive, BoostActionResume.TargetStatus())
	assert.Equal(t, models.BoostStatusPaused, BoostActionPause.TargetStatus())
	assert.Equal(t, models.BoostStatusCompleted, BoostActionStop.TargetStatus())
	assert.Empty(t, BoostAction("delete").TargetStatus())
}

func validInput() BoostInput {
	return BoostInput{
		TargetKind: "post",
		TargetID:   uuid.New(),
		Budget:     decimal.NewFromInt(250),
		StartDate:  lifecycleNow,
		EndDate:    lifecycleNow.Add(72 * time.Hour),
		Audience: AudienceInput{
			Gender:    utils.ToPtr(" female "),
			Interests: []string{" go ", "", "music"},
		},
	}
}

func TestBuildBoost(t *testing.T) {
	t.Run("AlwaysPausedWithComputedWeight", func(t *testing.T) {
		b, err := BuildBoost(9, validInput())
		require.NoError(t, err)
		assert.Equal(t, models.BoostStatusPaused, b.Status)
		assert.Equal(t, 125, b.RankingWeight)
		assert.Equal(t, models.TargetKindPost, b.Target.Kind)
		assert.Equal(t, uint(9), b.OwnerID)
		assert.Equal(t, "FEMALE", *b.Audience.Gender)
		assert.Equal(t, []string{"go", "music"}, []string(b.Audience.Interests))
	})

	cases := []struct {
		name  string
		mut   func(*BoostInput)
		field string
	}{
		{"BadKind", func(in *BoostInput) { in.TargetKind = "USER" }, "target_kind"},
		{"NilTarget", func(in *BoostInput) { in.TargetID = uuid.Nil }, "target_id"},
		{"NegativeBudget", func(in *BoostInput) { in.Budget = decimal.NewFromInt(-1) }, "budget"},
		{"EndBeforeStart", func(in *BoostInput) { in.EndDate = in.StartDate.Add(-time.Second) }, "end_date"},
		{"BadGender", func(in *BoostInput) { in.Audience.Gender = utils.ToPtr("other") }, "audience.gender"},
		{"NegativeAge", func(in *BoostInput) { in.Audience.AgeMin = utils.ToPtr(-1) }, "audience.age_min"},
		{"InvertedAges", func(in *BoostInput) {
			in.Audience.AgeMin = utils.ToPtr(40)
			in.Audience.AgeMax = utils.ToPtr(30)
		}, "audience.age_min"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)
			b, err := BuildBoost(1, in)
			assert.Nil(t, b)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestApplyBoostUpdate(t *testing.T) {
	t.Run("RecomputesWeight", func(t *testing.T) {
		b := pausedBoost(250)
		kind := "PAGE"
		budget := decimal.NewFromInt(95)
		next, err := ApplyBoostUpdate(b, BoostUpdate{TargetKind: &kind, Budget: &budget})
		require.NoError(t, err)
		assert.Equal(t, 59, next.RankingWeight)
		assert.Equal(t, 125, b.RankingWeight)
	})

	t.Run("CompletedRejected", func(t *testing.T) {
		b := pausedBoost(250)
		b.Status = models.BoostStatusCompleted
		budget := decimal.NewFromInt(10)
		_, err := ApplyBoostUpdate(b, BoostUpdate{Budget: &budget})
		assert.Equal(t, GuardBoostCompleted, ConflictGuard(err))
	})

	t.Run("EmptyUpdate", func(t *testing.T) {
		_, err := ApplyBoostUpdate(pausedBoost(1), BoostUpdate{})
		assert.True(t, IsValidationError(err))
	})

	t.Run("EndBeforeExistingStart", func(t *testing.T) {
		b := pausedBoost(1)
		end := b.StartDate.Add(-time.Minute)
		_, err := ApplyBoostUpdate(b, BoostUpdate{EndDate: &end})
		assert.True(t, IsValidationError(err))
	})

	t.Run("StatusNotTouched", func(t *testing.T) {
		b := pausedBoost(1)
		b.Status = models.BoostStatusActive
		loc := "Shiraz"
		next, err := ApplyBoostUpdate(b, BoostUpdate{Audience: &AudienceInput{Location: &loc}})
		require.NoError(t, err)
		assert.Equal(t, models.BoostStatusActive, next.Status)
		assert.Equal(t, "Shiraz", *next.Audience.Location)
	})
}
