package handlers

import (
	"github.com/amirphl/boostfeed/app/dto"
	businessflow "github.com/amirphl/boostfeed/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// FeedHandlerInterface defines the contract for feed handlers
type FeedHandlerInterface interface {
	GetFeed(c fiber.Ctx) error
}

// FeedHandler serves the ranked feed
type FeedHandler struct {
	feedFlow  businessflow.FeedFlow
	validator *validator.Validate
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedFlow businessflow.FeedFlow) *FeedHandler {
	return &FeedHandler{
		feedFlow:  feedFlow,
		validator: validator.New(),
	}
}

// GetFeed returns one page of the caller's ranked feed
// @Summary Get Feed
// @Description Posts ranked by social affinity, live boosts, engagement, media and freshness
// @Tags Feed
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 10, max 50)"
// @Success 200 {object} dto.APIResponse{data=dto.FeedResponse}
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Viewer not found"
// @Router /api/v1/feed [get]
func (h *FeedHandler) GetFeed(c fiber.Ctx) error {
	var req dto.FeedRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	viewerID, ok := userID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.ViewerID = viewerID

	ctx, cancel := createRequestContext(c, "/api/v1/feed")
	defer cancel()

	result, err := h.feedFlow.GetFeed(ctx, req.ViewerID, req.Page, req.PageSize)
	if err != nil {
		return writeFlowError(c, err, "Get feed", "Failed to build feed", "FEED_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Feed retrieved successfully", result)
}
