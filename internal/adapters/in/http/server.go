package http

import (
	"errors"
	"net/http"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/application/usecases/queries"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the dispatcher, the manual event trigger and the order
// queries over HTTP.
type Server struct {
	// Command handlers
	dispatchInboundHandler commands.DispatchInboundCommandHandler
	submitOrderHandler     commands.SubmitOrderCommandHandler

	// Query handlers
	getOrderStatusHandler  queries.GetOrderStatusQueryHandler
	getOrderHistoryHandler queries.GetOrderHistoryQueryHandler

	publisher ports.EventPublisher
	gatherer  prometheus.Gatherer
	logger    zerolog.Logger
}

// NewServer creates a new HTTP server with the required command and query handlers.
func NewServer(
	dispatchInboundHandler commands.DispatchInboundCommandHandler,
	submitOrderHandler commands.SubmitOrderCommandHandler,
	getOrderStatusHandler queries.GetOrderStatusQueryHandler,
	getOrderHistoryHandler queries.GetOrderHistoryQueryHandler,
	publisher ports.EventPublisher,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) *Server {
	return &Server{
		dispatchInboundHandler: dispatchInboundHandler,
		submitOrderHandler:     submitOrderHandler,
		getOrderStatusHandler:  getOrderStatusHandler,
		getOrderHistoryHandler: getOrderHistoryHandler,
		publisher:              publisher,
		gatherer:               gatherer,
		logger:                 logger,
	}
}

// Register mounts the routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.Health)
	s.registerDocs(e)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := e.Group("/api/v1")
	v1.POST("/orders", s.SubmitOrder)
	v1.POST("/orders/pop", s.PopOrders)
	v1.GET("/orders/:id", s.GetOrder)
	v1.GET("/orders/:id/history", s.GetOrderHistory)
	v1.POST("/events", s.TriggerEvent)
}

// Health handles GET /health.
func (s *Server) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// PopOrders handles POST /api/v1/orders/pop - pops a batch from the inbound
// queue and starts a workflow per message. Partial failure answers 207.
func (s *Server) PopOrders(ctx echo.Context) error {
	var opts commands.DispatchOptions
	if err := ctx.Bind(&opts); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	result, err := s.dispatchInboundHandler.Handle(ctx.Request().Context(), commands.NewDispatchInboundCommand(opts))
	if err != nil {
		s.logger.Error().Err(err).Msg("dispatch inbound orders failed")
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to dispatch inbound orders")
	}

	if result.HasFailures() {
		return ctx.JSON(http.StatusMultiStatus, result)
	}
	return ctx.JSON(http.StatusOK, result)
}

type submitOrderRequest struct {
	OrderID string           `json:"id_pedido"`
	Status  string           `json:"estado"`
	LocalID string           `json:"local_id"`
	Items   []order.LineItem `json:"items"`
}

// SubmitOrder handles POST /api/v1/orders - places a new order on the inbound queue.
func (s *Server) SubmitOrder(ctx echo.Context) error {
	var req submitOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	cmd, err := commands.NewSubmitOrderCommand(req.OrderID, req.Status, req.LocalID, req.Items)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid order data: "+err.Error())
	}

	messageID, err := s.submitOrderHandler.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", cmd.Order().OrderID).Msg("submit order failed")
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to submit order")
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{
		"message_id": messageID,
		"order_id":   cmd.Order().OrderID,
	})
}

// GetOrder handles GET /api/v1/orders/:id.
func (s *Server) GetOrder(ctx echo.Context) error {
	orderID, err := orderIDParam(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid order id")
	}

	query, err := queries.NewGetOrderStatusQuery(orderID)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid order id")
	}

	response, err := s.getOrderStatusHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.queryError(ctx, err, query.OrderID())
	}
	return ctx.JSON(http.StatusOK, response)
}

// GetOrderHistory handles GET /api/v1/orders/:id/history.
func (s *Server) GetOrderHistory(ctx echo.Context) error {
	orderID, err := orderIDParam(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid order id")
	}

	query, err := queries.NewGetOrderHistoryQuery(orderID)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid order id")
	}

	response, err := s.getOrderHistoryHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.queryError(ctx, err, query.OrderID())
	}
	return ctx.JSON(http.StatusOK, response)
}

func (s *Server) queryError(ctx echo.Context, err error, orderID string) error {
	if errors.Is(err, errs.ErrObjectNotFound) {
		return errorJSON(ctx, http.StatusNotFound, "Order not found")
	}
	s.logger.Error().Err(err).Str("order_id", orderID).Msg("order query failed")
	return errorJSON(ctx, http.StatusInternalServerError, "Failed to retrieve order")
}

func errorJSON(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, Error{Code: code, Message: message})
}
