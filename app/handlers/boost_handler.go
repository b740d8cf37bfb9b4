package handlers

import (
	"strconv"

	"github.com/amirphl/boostfeed/app/dto"
	businessflow "github.com/amirphl/boostfeed/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// BoostHandlerInterface defines the contract for boost handlers
type BoostHandlerInterface interface {
	CreateBoost(c fiber.Ctx) error
	ListBoosts(c fiber.Ctx) error
	ExportBoosts(c fiber.Ctx) error
	GetBoost(c fiber.Ctx) error
	UpdateBoost(c fiber.Ctx) error
	PayBoost(c fiber.Ctx) error
	PauseBoost(c fiber.Ctx) error
	ResumeBoost(c fiber.Ctx) error
	StopBoost(c fiber.Ctx) error
}

// BoostHandler handles boost-related HTTP requests
type BoostHandler struct {
	boostFlow businessflow.BoostFlow
	validator *validator.Validate
}

// NewBoostHandler creates a new boost handler
func NewBoostHandler(boostFlow businessflow.BoostFlow) *BoostHandler {
	return &BoostHandler{
		boostFlow: boostFlow,
		validator: validator.New(),
	}
}

// CreateBoost handles boost creation
// @Summary Create Boost
// @Description Create a PAUSED boost for a post or page. Status and ranking weight are computed by the server.
// @Tags Boosts
// @Accept json
// @Produce json
// @Param request body dto.CreateBoostRequest true "Boost creation data"
// @Success 201 {object} dto.APIResponse{data=dto.BoostResponse} "Boost created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/boosts [post]
func (h *BoostHandler) CreateBoost(c fiber.Ctx) error {
	var req dto.CreateBoostRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ownerID, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.OwnerID = ownerID

	ctx, cancel := createRequestContext(c, "/api/v1/boosts")
	defer cancel()

	result, err := h.boostFlow.CreateBoost(ctx, &req, clientMetadata(c))
	if err != nil {
		return writeFlowError(c, err, "Boost creation", "Boost creation failed", "BOOST_CREATION_FAILED")
	}

	return successResponse(c, fiber.StatusCreated, "Boost created successfully", result)
}

// ListBoosts lists the caller's boosts
// @Summary List Boosts
// @Tags Boosts
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListBoostsResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/boosts [get]
func (h *BoostHandler) ListBoosts(c fiber.Ctx) error {
	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	pageSize := 20
	if v, err := strconv.Atoi(c.Query("page_size", "20")); err == nil && v > 0 {
		pageSize = v
	}
	if pageSize > 100 {
		pageSize = 100
	}

	ownerID, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/boosts")
	defer cancel()

	result, err := h.boostFlow.ListBoosts(ctx, &dto.ListBoostsRequest{OwnerID: ownerID, Page: page, PageSize: pageSize})
	if err != nil {
		return writeFlowError(c, err, "List boosts", "Failed to list boosts", "LIST_BOOSTS_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Boosts retrieved successfully", result)
}

// ExportBoosts downloads the caller's boosts as an Excel workbook
// @Summary Export Boosts
// @Tags Boosts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/boosts/export [get]
func (h *BoostHandler) ExportBoosts(c fiber.Ctx) error {
	ownerID, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/boosts/export")
	defer cancel()

	filename, data, err := h.boostFlow.ExportBoosts(ctx, ownerID)
	if err != nil {
		return writeFlowError(c, err, "Export boosts", "Failed to export boosts", "EXPORT_BOOSTS_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GetBoost returns one of the caller's boosts
// @Summary Get Boost
// @Tags Boosts
// @Produce json
// @Param uuid path string true "Boost UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BoostResponse}
// @Failure 403 {object} dto.APIResponse "Boost belongs to another user"
// @Failure 404 {object} dto.APIResponse "Boost not found"
// @Router /api/v1/boosts/{uuid} [get]
func (h *BoostHandler) GetBoost(c fiber.Ctx) error {
	ownerID, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/boosts/{uuid}")
	defer cancel()

	result, err := h.boostFlow.GetBoost(ctx, ownerID, c.Params("uuid"))
	if err != nil {
		return writeFlowError(c, err, "Get boost", "Failed to get boost", "GET_BOOST_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Boost retrieved successfully", result)
}

// UpdateBoost changes budget, target, schedule or audience of a boost
// @Summary Update Boost
// @Tags Boosts
// @Accept json
// @Produce json
// @Param uuid path string true "Boost UUID"
// @Param request body dto.UpdateBoostRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.BoostResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Boost not found"
// @Failure 409 {object} dto.APIResponse "Boost is completed"
// @Router /api/v1/boosts/{uuid} [put]
func (h *BoostHandler) UpdateBoost(c fiber.Ctx) error {
	var req dto.UpdateBoostRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ownerID, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.OwnerID = ownerID
	req.BoostUUID = c.Params("uuid")

	ctx, cancel := createRequestContext(c, "/api/v1/boosts/{uuid}")
	defer cancel()

	result, err := h.boostFlow.UpdateBoost(ctx, &req, clientMetadata(c))
	if err != nil {
		return writeFlowError(c, err, "Boost update", "Boost update failed", "BOOST_UPDATE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Boost updated successfully", result)
}

// PayBoost activates a PAUSED boost after payment verification
// @Summary Pay Boost
// @Tags Boosts
// @Accept json
// @Produce json
// @Param uuid path string true "Boost UUID"
// @Param request body dto.TransitionBoostRequest true "Payment token"
// @Success 200 {object} dto.APIResponse{data=dto.BoostResponse}
// @Failure 409 {object} dto.APIResponse "Guard failed; error.code names the guard"
// @Router /api/v1/boosts/{uuid}/pay [post]
func (h *BoostHandler) PayBoost(c fiber.Ctx) error {
	return h.transition(c, businessflow.BoostActionPay)
}

// PauseBoost pauses an ACTIVE boost
// @Summary Pause Boost
// @Tags Boosts
// @Produce json
// @Param uuid path string true "Boost UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BoostResponse}
// @Failure 409 {object} dto.APIResponse "Boost is not ACTIVE"
// @Router /api/v1/boosts/{uuid}/pause [post]
func (h *BoostHandler) PauseBoost(c fiber.Ctx) error {
	return h.transition(c, businessflow.BoostActionPause)
}

// ResumeBoost reactivates a PAUSED boost
// @Summary Resume Boost
// @Tags Boosts
// @Produce json
// @Param uuid path string true "Boost UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BoostResponse}
// @Failure 409 {object} dto.APIResponse "Boost is not PAUSED"
// @Router /api/v1/boosts/{uuid}/resume [post]
func (h *BoostHandler) ResumeBoost(c fiber.Ctx) error {
	return h.transition(c, businessflow.BoostActionResume)
}

// StopBoost completes a boost immediately
// @Summary Stop Boost
// @Tags Boosts
// @Produce json
// @Param uuid path string true "Boost UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BoostResponse}
// @Failure 409 {object} dto.APIResponse "Boost is already COMPLETED"
// @Router /api/v1/boosts/{uuid}/stop [post]
func (h *BoostHandler) StopBoost(c fiber.Ctx) error {
	return h.transition(c, businessflow.BoostActionStop)
}

func (h *BoostHandler) transition(c fiber.Ctx, action businessflow.BoostAction) error {
	var req dto.TransitionBoostRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if err := h.validator.Struct(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
		}
	}

	ownerID, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/boosts/{uuid}/"+string(action))
	defer cancel()

	result, err := h.boostFlow.TransitionBoost(ctx, ownerID, c.Params("uuid"), action, &req, clientMetadata(c))
	if err != nil {
		return writeFlowError(c, err, "Boost "+string(action), "Boost transition failed", "BOOST_TRANSITION_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Boost "+string(action)+" applied successfully", result)
}
