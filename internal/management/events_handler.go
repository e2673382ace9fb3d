package management

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"relay/internal/events"
	"relay/internal/logger"
	pkgerrors "relay/pkg/errors"
)

// EventsHandler exposes the producer gateway over the management API so
// operators can push events without going through the platform.
type EventsHandler struct {
	gateway *events.Gateway
	logger  logger.Logger
}

func NewEventsHandler(gateway *events.Gateway, log logger.Logger) *EventsHandler {
	return &EventsHandler{gateway: gateway, logger: log}
}

type PublishEventRequest struct {
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
}

type PublishEventResponse struct {
	Published bool   `json:"published"`
	EventType string `json:"event_type"`
}

func (h *EventsHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/events", h.PublishEvent)
}

// PublishEvent godoc
// @Summary      Publish a webhook event
// @Description  Enqueue an event for the active configuration; events the tenant is not subscribed to are filtered
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        event  body      PublishEventRequest  true  "Event to publish"
// @Success      202    {object}  PublishEventResponse
// @Failure      400    {object}  map[string]interface{}
// @Failure      500    {object}  map[string]interface{}
// @Router       /events [post]
func (h *EventsHandler) PublishEvent(c *gin.Context) {
	var req PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(pkgerrors.ErrValidation.WithCause(err)))
		return
	}

	if req.EventType == "" {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(
			pkgerrors.ErrValidation.WithDetail("message", "event_type is required")))
		return
	}
	if req.Payload == nil {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(
			pkgerrors.ErrValidation.WithDetail("message", "payload is required")))
		return
	}

	published, err := h.gateway.Publish(c.Request.Context(), req.EventType, req.Payload)
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to publish event",
			"error", err,
			"event_type", req.EventType,
		)
		c.JSON(http.StatusInternalServerError, pkgerrors.ToErrorResponse(pkgerrors.ErrInternal.WithCause(err)))
		return
	}

	c.JSON(http.StatusAccepted, PublishEventResponse{
		Published: published,
		EventType: req.EventType,
	})
}
