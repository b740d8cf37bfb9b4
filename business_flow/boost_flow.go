package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/boostfeed/app/dto"
	"github.com/amirphl/boostfeed/app/services"
	"github.com/amirphl/boostfeed/models"
	"github.com/amirphl/boostfeed/repository"
	"github.com/amirphl/boostfeed/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	defaultBoostPageSize = 20
	exportSheetName      = "boosts"
)

// BoostFlow handles the owner-facing boost use cases
type BoostFlow interface {
	CreateBoost(ctx context.Context, req *dto.CreateBoostRequest, metadata *ClientMetadata) (*dto.BoostResponse, error)
	UpdateBoost(ctx context.Context, req *dto.UpdateBoostRequest, metadata *ClientMetadata) (*dto.BoostResponse, error)
	GetBoost(ctx context.Context, ownerID uint, boostUUID string) (*dto.BoostResponse, error)
	ListBoosts(ctx context.Context, req *dto.ListBoostsRequest) (*dto.ListBoostsResponse, error)
	TransitionBoost(ctx context.Context, ownerID uint, boostUUID string, action BoostAction, req *dto.TransitionBoostRequest, metadata *ClientMetadata) (*dto.BoostResponse, error)
	ExportBoosts(ctx context.Context, ownerID uint) (string, []byte, error)
}

// BoostFlowImpl implements BoostFlow
type BoostFlowImpl struct {
	boostRepo repository.BoostRepository
	postRepo  repository.PostRepository
	auditRepo repository.AuditLogRepository
	verifier  services.PaymentVerifier
	publisher services.EventPublisher
	db        *gorm.DB
	now       func() time.Time
}

// NewBoostFlow creates a new boost flow instance
func NewBoostFlow(
	boostRepo repository.BoostRepository,
	postRepo repository.PostRepository,
	auditRepo repository.AuditLogRepository,
	verifier services.PaymentVerifier,
	publisher services.EventPublisher,
	db *gorm.DB,
) BoostFlow {
	if publisher == nil {
		publisher = services.NewNoopEventPublisher()
	}
	return &BoostFlowImpl{
		boostRepo: boostRepo,
		postRepo:  postRepo,
		auditRepo: auditRepo,
		verifier:  verifier,
		publisher: publisher,
		db:        db,
		now:       utils.UTCNow,
	}
}

// CreateBoost validates the request and stores a PAUSED boost
func (f *BoostFlowImpl) CreateBoost(ctx context.Context, req *dto.CreateBoostRequest, metadata *ClientMetadata) (*dto.BoostResponse, error) {
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return nil, NewValidationError("target_id", ErrTargetIDRequired)
	}

	boost, err := BuildBoost(req.OwnerID, BoostInput{
		TargetKind: req.TargetKind,
		TargetID:   targetID,
		Budget:     req.Budget,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Audience:   audienceInputFromDTO(req.Audience),
	})
	if err != nil {
		return nil, err
	}

	if err := f.ensureTargetExists(ctx, boost.Target); err != nil {
		return nil, err
	}

	err = withTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.boostRepo.Save(txCtx, boost); err != nil {
			return NewBusinessError("BOOST_CREATE_FAILED", "Failed to create boost", err)
		}
		return f.createAuditLog(txCtx, req.OwnerID, models.AuditActionBoostCreated,
			fmt.Sprintf("Boost %s created for %s %s", boost.UUID, boost.Target.Kind, boost.Target.ID),
			true, nil, boost, metadata)
	})
	if err != nil {
		return nil, err
	}

	f.publish(ctx, models.AuditActionBoostCreated, "", boost)

	resp := toBoostResponse(boost)
	return &resp, nil
}

// UpdateBoost changes targeting, budget or schedule of a non-completed boost
func (f *BoostFlowImpl) UpdateBoost(ctx context.Context, req *dto.UpdateBoostRequest, metadata *ClientMetadata) (*dto.BoostResponse, error) {
	boostUUID, err := parseBoostUUID(req.BoostUUID)
	if err != nil {
		return nil, err
	}

	upd, err := boostUpdateFromDTO(req)
	if err != nil {
		return nil, err
	}

	unlock := lockBoost(boostUUID)
	defer unlock()

	var updated *models.Boost
	err = withTransaction(ctx, f.db, func(txCtx context.Context) error {
		boost, err := f.ownedBoost(txCtx, req.OwnerID, boostUUID, true)
		if err != nil {
			return err
		}

		next, err := ApplyBoostUpdate(boost, upd)
		if err != nil {
			return err
		}

		if next.Target != boost.Target {
			if err := f.ensureTargetExists(txCtx, next.Target); err != nil {
				return err
			}
		}

		if err := f.boostRepo.UpdateMutable(txCtx, next); err != nil {
			if errors.Is(err, repository.ErrBoostNotEditable) {
				return NewConflictError(GuardBoostCompleted, ErrBoostCompleted)
			}
			return NewBusinessError("BOOST_UPDATE_FAILED", "Failed to update boost", err)
		}

		updated = next
		return f.createAuditLog(txCtx, req.OwnerID, models.AuditActionBoostUpdated,
			fmt.Sprintf("Boost %s updated", next.UUID), true, nil, next, metadata)
	})
	if err != nil {
		return nil, err
	}

	f.publish(ctx, models.AuditActionBoostUpdated, string(updated.Status), updated)

	resp := toBoostResponse(updated)
	return &resp, nil
}

// GetBoost returns one of the owner's boosts
func (f *BoostFlowImpl) GetBoost(ctx context.Context, ownerID uint, rawUUID string) (*dto.BoostResponse, error) {
	boostUUID, err := parseBoostUUID(rawUUID)
	if err != nil {
		return nil, err
	}

	boost, err := f.ownedBoost(ctx, ownerID, boostUUID, false)
	if err != nil {
		return nil, err
	}

	resp := toBoostResponse(boost)
	return &resp, nil
}

// ListBoosts pages through the owner's boosts, newest first
func (f *BoostFlowImpl) ListBoosts(ctx context.Context, req *dto.ListBoostsRequest) (*dto.ListBoostsResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultBoostPageSize
	}

	// one extra row tells whether another page exists
	rows, err := f.boostRepo.ListByOwner(ctx, req.OwnerID, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("BOOST_LIST_FAILED", "Failed to list boosts", err)
	}

	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}

	out := make([]dto.BoostResponse, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBoostResponse(b))
	}

	return &dto.ListBoostsResponse{
		Boosts: out,
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			HasMore:  hasMore,
		},
	}, nil
}

// TransitionBoost applies a lifecycle action. Concurrent mutually exclusive
// actions on one boost resolve to one winner; the others get a ConflictError.
func (f *BoostFlowImpl) TransitionBoost(ctx context.Context, ownerID uint, rawUUID string, action BoostAction, req *dto.TransitionBoostRequest, metadata *ClientMetadata) (resp *dto.BoostResponse, err error) {
	defer func() {
		boostTransitionsTotal.WithLabelValues(string(action), transitionResult(err)).Inc()
	}()

	if !action.Valid() {
		return nil, NewValidationError("action", ErrUnknownBoostAction)
	}
	boostUUID, err := parseBoostUUID(rawUUID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &dto.TransitionBoostRequest{}
	}

	unlock := lockBoost(boostUUID)
	defer unlock()

	var before, after *models.Boost
	err = withTransaction(ctx, f.db, func(txCtx context.Context) error {
		boost, err := f.ownedBoost(txCtx, ownerID, boostUUID, true)
		if err != nil {
			return err
		}
		before = boost

		if err := CheckTransitionAllowed(boost, action); err != nil {
			return err
		}

		params := TransitionParams{PaymentToken: strings.TrimSpace(req.PaymentToken)}
		if action == BoostActionPay && params.PaymentToken != "" {
			if err := f.verifyPayment(txCtx, boost, &params); err != nil {
				return err
			}
		}

		next, err := ApplyBoostTransition(boost, action, params, f.now())
		if err != nil {
			return err
		}

		var endDate *time.Time
		if action == BoostActionStop {
			endDate = &next.EndDate
		}
		swapped, err := f.boostRepo.CompareAndSwapStatus(txCtx, boost.ID, boost.Status, next.Status, endDate)
		if err != nil {
			return NewBusinessError("BOOST_TRANSITION_FAILED", "Failed to update boost status", err)
		}
		if !swapped {
			return NewConflictError(GuardConcurrentTransition, ErrConcurrentTransition)
		}

		after = next
		return f.createAuditLog(txCtx, ownerID, auditActionFor(action),
			fmt.Sprintf("Boost %s moved from %s to %s", next.UUID, boost.Status, next.Status),
			true, nil, next, metadata)
	})
	if err != nil {
		if before != nil && (IsConflictError(err) || IsValidationError(err)) {
			errMsg := err.Error()
			if auditErr := f.createAuditLog(ctx, ownerID, models.AuditActionBoostTransitionFailed,
				fmt.Sprintf("Boost %s %s rejected", before.UUID, action), false, &errMsg, before, metadata); auditErr != nil {
				log.Printf("boost flow: failed to record rejected %s for %s: %v", action, before.UUID, auditErr)
			}
		}
		return nil, err
	}

	f.publish(ctx, auditActionFor(action), string(before.Status), after)

	out := toBoostResponse(after)
	return &out, nil
}

// ExportBoosts renders the owner's boosts as an xlsx workbook
func (f *BoostFlowImpl) ExportBoosts(ctx context.Context, ownerID uint) (string, []byte, error) {
	rows, err := f.boostRepo.ListByOwner(ctx, ownerID, 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("BOOST_LIST_FAILED", "Failed to list boosts", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), exportSheetName)

	header := []string{"uuid", "target_kind", "target_id", "budget", "ranking_weight", "status", "start_date", "end_date", "location", "gender", "age_min", "age_max", "interests", "created_at"}
	if err := xl.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	for i, b := range rows {
		record := []string{
			b.UUID.String(),
			string(b.Target.Kind),
			b.Target.ID.String(),
			b.Budget.StringFixed(2),
			strconv.Itoa(b.RankingWeight),
			string(b.Status),
			b.StartDate.UTC().Format(time.RFC3339),
			b.EndDate.UTC().Format(time.RFC3339),
			utils.DerefString(b.Audience.Location),
			utils.DerefString(b.Audience.Gender),
			intPtrString(b.Audience.AgeMin),
			intPtrString(b.Audience.AgeMax),
			strings.Join(b.Audience.Interests, ","),
			b.CreatedAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(exportSheetName, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("boosts_%d_%s.xlsx", ownerID, f.now().Format("20060102"))
	return filename, buf.Bytes(), nil
}

// ownedBoost loads a boost and checks ownership. forUpdate row-locks it inside the ambient transaction.
func (f *BoostFlowImpl) ownedBoost(ctx context.Context, ownerID uint, boostUUID uuid.UUID, forUpdate bool) (*models.Boost, error) {
	var (
		boost *models.Boost
		err   error
	)
	if forUpdate {
		boost, err = f.boostRepo.ByUUIDForUpdate(ctx, boostUUID)
	} else {
		boost, err = f.boostRepo.ByUUID(ctx, boostUUID)
	}
	if err != nil {
		return nil, NewBusinessError("BOOST_LOOKUP_FAILED", "Failed to load boost", err)
	}
	if boost == nil {
		return nil, ErrBoostNotFound
	}
	if boost.OwnerID != ownerID {
		return nil, ErrBoostAccessDenied
	}
	return boost, nil
}

// ensureTargetExists checks POST targets only; PAGE targets stay a weak reference
func (f *BoostFlowImpl) ensureTargetExists(ctx context.Context, target models.BoostTarget) error {
	if target.Kind != models.TargetKindPost {
		return nil
	}
	exists, err := f.postRepo.ExistsByUUID(ctx, target.ID)
	if err != nil {
		return NewBusinessError("TARGET_LOOKUP_FAILED", "Failed to resolve boost target", err)
	}
	if !exists {
		return NewValidationError("target_id", ErrTargetPostNotFound)
	}
	return nil
}

func (f *BoostFlowImpl) verifyPayment(ctx context.Context, boost *models.Boost, params *TransitionParams) error {
	if f.verifier == nil {
		return NewBusinessError("PAYMENT_VERIFIER_UNAVAILABLE", "Payment verification is not configured", nil)
	}

	verification, err := f.verifier.Verify(ctx, services.PaymentRequest{
		Token:     params.PaymentToken,
		Amount:    boost.Budget,
		Reference: boost.UUID.String(),
	})
	if err != nil {
		return NewBusinessError("PAYMENT_VERIFICATION_FAILED", "Failed to verify payment", err)
	}

	params.PaymentAccepted = verification.Accepted
	params.TenderedAmount = verification.TenderedAmount
	return nil
}

// publish emits a boost event. Delivery failures are logged and never fail the request.
func (f *BoostFlowImpl) publish(ctx context.Context, eventType, fromStatus string, boost *models.Boost) {
	event := services.BoostEvent{
		Type:       eventType,
		BoostUUID:  boost.UUID,
		OwnerID:    boost.OwnerID,
		FromStatus: fromStatus,
		ToStatus:   string(boost.Status),
		OccurredAt: f.now(),
	}
	if err := f.publisher.Publish(ctx, event); err != nil {
		log.Printf("boost flow: failed to publish %s for %s: %v", eventType, boost.UUID, err)
	}
}

func (f *BoostFlowImpl) createAuditLog(ctx context.Context, userID uint, action, description string, success bool, errorMsg *string, boost *models.Boost, metadata *ClientMetadata) error {
	if f.auditRepo == nil {
		return nil
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	if boost != nil {
		meta, err := json.Marshal(map[string]any{
			"boost_uuid":     boost.UUID,
			"status":         boost.Status,
			"budget":         boost.Budget.String(),
			"ranking_weight": boost.RankingWeight,
		})
		if err == nil {
			audit.Metadata = meta
		}
	}

	// Extract request ID from context if available
	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	} else if metadata != nil && metadata.RequestID != "" {
		audit.RequestID = &metadata.RequestID
	}

	if err := f.auditRepo.Save(ctx, audit); err != nil {
		return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
	}
	return nil
}

func auditActionFor(action BoostAction) string {
	switch action {
	case BoostActionPay:
		return models.AuditActionBoostPaid
	case BoostActionPause:
		return models.AuditActionBoostPaused
	case BoostActionResume:
		return models.AuditActionBoostResumed
	case BoostActionStop:
		return models.AuditActionBoostStopped
	default:
		return models.AuditActionBoostTransitionFailed
	}
}

func audienceInputFromDTO(in dto.AudienceCriteriaDTO) AudienceInput {
	return AudienceInput{
		Location:  in.Location,
		AgeMin:    in.AgeMin,
		AgeMax:    in.AgeMax,
		Gender:    in.Gender,
		Interests: in.Interests,
	}
}

func boostUpdateFromDTO(req *dto.UpdateBoostRequest) (BoostUpdate, error) {
	upd := BoostUpdate{
		TargetKind: req.TargetKind,
		Budget:     req.Budget,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}
	if req.TargetID != nil {
		id, err := uuid.Parse(*req.TargetID)
		if err != nil {
			return BoostUpdate{}, NewValidationError("target_id", ErrTargetIDRequired)
		}
		upd.TargetID = &id
	}
	if req.Audience != nil {
		in := audienceInputFromDTO(*req.Audience)
		upd.Audience = &in
	}
	return upd, nil
}

func toBoostResponse(b *models.Boost) dto.BoostResponse {
	resp := dto.BoostResponse{
		UUID:          b.UUID.String(),
		TargetKind:    string(b.Target.Kind),
		TargetID:      b.Target.ID.String(),
		Budget:        b.Budget.String(),
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		Status:        string(b.Status),
		RankingWeight: b.RankingWeight,
		Audience: dto.AudienceCriteriaDTO{
			Location:  utils.CopyPtr(b.Audience.Location),
			AgeMin:    utils.CopyPtr(b.Audience.AgeMin),
			AgeMax:    utils.CopyPtr(b.Audience.AgeMax),
			Gender:    utils.CopyPtr(b.Audience.Gender),
			Interests: append([]string(nil), b.Audience.Interests...),
		},
	}
	resp.CreatedAt = b.CreatedAt
	if b.UpdatedAt != nil {
		resp.UpdatedAt = *b.UpdatedAt
	}
	return resp
}

func intPtrString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
