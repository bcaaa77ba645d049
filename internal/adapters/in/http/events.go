package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"fulfillment/internal/core/domain/model/event"

	"github.com/labstack/echo/v4"
)

const defaultEventSource = "fulfillment.manual"

// triggerEventRequest is the envelope of a manually triggered status event.
//
//	{"type": "KitchenFinished", "source": "ops", "detail": {"order_id": "O1", "status": "Listo", "actor_id": "cook-7"}}
type triggerEventRequest struct {
	Type   string          `json:"type"`
	Source string          `json:"source"`
	Detail json.RawMessage `json:"detail"`
}

// TriggerEvent handles POST /api/v1/events - publishes a status event on the
// event bus as if a worker had reported it.
func (s *Server) TriggerEvent(ctx echo.Context) error {
	var req triggerEventRequest
	if err := ctx.Bind(&req); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		return errorJSON(ctx, http.StatusBadRequest, "Missing event type")
	}

	var e event.StatusEvent
	if len(req.Detail) == 0 {
		return errorJSON(ctx, http.StatusBadRequest, "Missing event detail")
	}
	if err := json.Unmarshal(req.Detail, &e); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid event detail")
	}
	if err := e.Validate(); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Missing order_id in event detail")
	}

	e.EventType = req.Type
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = defaultEventSource
	}
	if e.Payload == nil {
		e.Payload = make(map[string]any, 1)
	}
	e.Payload["source"] = source

	if err := s.publisher.PublishStatus(ctx.Request().Context(), e); err != nil {
		s.logger.Error().Err(err).Str("order_id", e.OrderID).Msg("publish status event failed")
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to publish event")
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{
		"order_id":   e.OrderID,
		"event_type": e.EventType,
		"source":     source,
	})
}
