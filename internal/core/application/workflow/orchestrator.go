package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrStaleContinuation describes a resume whose token is no longer awaited.
	// Resume reports it through ResumeResult.Reason rather than as an error.
	ErrStaleContinuation = errors.New("stale continuation")

	// ErrStageFailed is returned when a transition committed but its side
	// effect (enqueue) failed. The continuation stays pending.
	ErrStageFailed = errors.New("stage failed")
)

// Reasons reported by Resume when nothing was applied.
const (
	ReasonUnknownOrder = "unknown_order"
	ReasonTerminal     = "terminal"
	ReasonStale        = "stale_token"
	ReasonLostRace     = "concurrent_resume"
	ReasonNotAwaited   = "not_awaited"
	ReasonDuplicate    = "duplicate_event"
)

const (
	tracerName   = "fulfillment/workflow"
	starterActor = "dispatcher"
)

// ExecutionHandle identifies a started workflow execution.
type ExecutionHandle struct {
	OrderID     string `json:"order_id"`
	ExecutionID string `json:"execution_id"`
}

// Outcome is what an external actor reported for the awaited stage.
type Outcome struct {
	// Key identifies the reported event. An outcome whose key produced the
	// pending record is a redelivery and is not applied again.
	Key       string
	EventType string
	// Status is the reported status; empty means services.DefaultOutcomeStatus.
	Status  string
	ActorID string
	// LocalID fills the context local_id when the order has none.
	LocalID string
	Payload map[string]any
}

// ResumeResult describes what a Resume call did.
type ResumeResult struct {
	Applied bool
	OrderID string
	Status  order.Status
	Action  services.Action
	Ack     Ack
	Reason  string
}

// Orchestrator sequences the stage handlers and owns the canonical state of
// every order. It is safe for concurrent use; concurrent resumes of the same
// token are deduplicated by the conditional order update.
type Orchestrator struct {
	uowFactory ports.UnitOfWorkFactory
	stages     map[order.Status]StageHandler
	kitchen    func(orderID string, snapshot order.Context) Effect
	retry      RetryHandler
	failure    FailureHandler
	completion CompletionHandler
	policy     services.RetryPolicy
	now        func() time.Time
	logger     zerolog.Logger
	metrics    *metrics.Workflow
	tracer     trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryPolicy sets the escalation policy. The default is unbounded retries.
func WithRetryPolicy(p services.RetryPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Workflow) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithTracer replaces the tracer obtained from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// NewOrchestrator wires the six stage handlers and the retry, failure and
// completion handlers around the given infrastructure.
func NewOrchestrator(
	uowFactory ports.UnitOfWorkFactory,
	queue ports.WorkQueue,
	publisher ports.EventPublisher,
	opts ...Option,
) (*Orchestrator, error) {
	if uowFactory == nil {
		return nil, errs.NewValueIsRequiredError("uowFactory")
	}
	if queue == nil {
		return nil, errs.NewValueIsRequiredError("queue")
	}
	if publisher == nil {
		return nil, errs.NewValueIsRequiredError("publisher")
	}

	o := &Orchestrator{
		uowFactory: uowFactory,
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	procesar := NewProcesarPedido(queue)
	o.kitchen = enqueueEffect(queue, ports.KitchenQueue, ports.ActionCook)
	delivery := NewDelivery(queue)
	o.stages = map[order.Status]StageHandler{
		order.Processing:     procesar,
		order.InKitchen:      NewPedidoEnCocina(),
		order.KitchenDone:    NewCocinaCompleta(),
		order.Packed:         NewEmpaquetado(),
		order.OutForDelivery: delivery,
	}
	o.retry = NewRetryHandler(procesar, delivery)
	o.failure = NewFailureHandler(queue, publisher, o.logger, o.metrics)
	o.completion = NewEntregaCompleta(publisher, o.logger, o.metrics)

	return o, nil
}

// Start begins the workflow for orderID and runs ProcesarPedido.
//
// Start is idempotent by order id: when the order already exists its handle
// is returned and no new transition happens. If that order still awaits the
// kitchen from ProcesarPedido, the kitchen hand-off is sent again, so a
// redelivered start recovers a failed enqueue. When the transition committed
// but the kitchen enqueue failed, the handle is returned together with an
// error wrapping ErrStageFailed.
func (o *Orchestrator) Start(ctx context.Context, orderID string, initial order.Context) (ExecutionHandle, error) {
	ctx, span := o.tracer.Start(ctx, "workflow.Start", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ExecutionHandle{}, errs.NewValueIsRequiredError("orderID")
	}

	handle, out, err := o.start(ctx, orderID, initial)
	if errors.Is(err, errs.ErrObjectAlreadyExists) {
		// lost a concurrent start for the same order
		return o.existingHandle(ctx, orderID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExecutionHandle{}, err
	}
	if out == nil {
		return handle, nil
	}

	if out.Record != nil {
		o.metrics.StageEntered(order.Processing.String())
		o.logger.Info().
			Str("order_id", orderID).
			Str("execution_id", handle.ExecutionID).
			Str("ack", string(out.Ack.Status)).
			Msg("workflow started")
	} else {
		o.logger.Info().
			Str("order_id", orderID).
			Str("execution_id", handle.ExecutionID).
			Msg("workflow already started, resending kitchen hand-off")
	}

	if err = o.runEffect(ctx, order.Processing, orderID, out.Effect); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return handle, err
	}
	return handle, nil
}

func (o *Orchestrator) start(
	ctx context.Context,
	orderID string,
	initial order.Context,
) (ExecutionHandle, *StageOutput, error) {
	uow := o.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return ExecutionHandle{}, nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orders := uow.OrderRepository()
	existing, err := orders.Get(ctx, orderID)
	if err == nil {
		effect, err := o.kitchenHandoff(ctx, uow, existing)
		if err != nil || effect == nil {
			return handleOf(existing), nil, err
		}
		return handleOf(existing), &StageOutput{Effect: effect}, nil
	}
	if !errors.Is(err, errs.ErrObjectNotFound) {
		return ExecutionHandle{}, nil, err
	}

	now := o.now()
	created, err := order.NewOrder(orderID, initial.LocalID, now)
	if err != nil {
		return ExecutionHandle{}, nil, err
	}
	if err = orders.Add(ctx, created); err != nil {
		return ExecutionHandle{}, nil, err
	}

	wfCtx := initial.Clone()
	wfCtx.OrderID = orderID
	wfCtx.LocalID = created.LocalID()
	actor := wfCtx.ActorID
	if actor == "" {
		actor = starterActor
	}

	out, err := o.stages[order.Processing].Handle(ctx, uow, StageInput{
		Order:   created,
		Context: wfCtx,
		ActorID: actor,
		At:      now,
	})
	if err != nil {
		return ExecutionHandle{}, nil, err
	}

	if err = uow.Commit(ctx); err != nil {
		return ExecutionHandle{}, nil, err
	}
	return handleOf(created), &out, nil
}

// kitchenHandoff returns the kitchen enqueue of an order still waiting in
// Processing, or nil when the order has moved on.
func (o *Orchestrator) kitchenHandoff(ctx context.Context, uow ports.UnitOfWork, existing *order.Order) (Effect, error) {
	if existing.Status() != order.Processing || !existing.IsPending() {
		return nil, nil
	}
	rec, err := PendingRecord(ctx, uow, existing.OrderID(), existing.PendingToken())
	if errors.Is(err, errs.ErrObjectNotFound) || errors.Is(err, ErrStaleContinuation) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Status() != order.Processing {
		return nil, nil
	}
	return o.kitchen(existing.OrderID(), rec.Context()), nil
}

func (o *Orchestrator) existingHandle(ctx context.Context, orderID string) (ExecutionHandle, error) {
	uow := o.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return ExecutionHandle{}, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	existing, err := uow.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return ExecutionHandle{}, err
	}
	return handleOf(existing), nil
}

// Resume redeems token for orderID with the reported outcome.
//
// Resume is a no-op (Applied false, nil error) when the order is unknown or
// terminal, when token is not the continuation the order awaits, or when the
// outcome's key already produced the pending record. This includes the losers
// of concurrent resumes with the same token.
func (o *Orchestrator) Resume(
	ctx context.Context,
	orderID string,
	token kernel.Token,
	outcome Outcome,
) (ResumeResult, error) {
	ctx, span := o.tracer.Start(ctx, "workflow.Resume", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("outcome.status", outcome.Status),
	))
	defer span.End()

	started := time.Now()
	result, out, err := o.resume(ctx, orderID, token, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ResumeResult{}, err
	}
	if !result.Applied {
		o.logger.Info().
			Str("order_id", orderID).
			Str("reason", result.Reason).
			Msg("resume ignored")
		return result, nil
	}

	o.metrics.Transition(result.Action.String())
	o.metrics.StageEntered(result.Status.String())
	o.metrics.ObserveResume(time.Since(started).Seconds())
	span.SetAttributes(
		attribute.String("workflow.action", result.Action.String()),
		attribute.String("order.status", result.Status.String()),
	)
	o.logger.Info().
		Str("order_id", orderID).
		Str("action", result.Action.String()).
		Str("status", result.Status.String()).
		Msg("workflow resumed")

	if err = o.runEffect(ctx, result.Status, orderID, out.Effect); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) resume(
	ctx context.Context,
	orderID string,
	token kernel.Token,
	outcome Outcome,
) (ResumeResult, StageOutput, error) {
	skipped := func(reason string) (ResumeResult, StageOutput, error) {
		return ResumeResult{OrderID: orderID, Reason: reason}, StageOutput{}, nil
	}

	uow := o.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return ResumeResult{}, StageOutput{}, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	current, err := uow.OrderRepository().Get(ctx, orderID)
	if errors.Is(err, errs.ErrObjectNotFound) {
		return skipped(ReasonUnknownOrder)
	}
	if err != nil {
		return ResumeResult{}, StageOutput{}, err
	}
	if current.Status().IsTerminal() {
		return skipped(ReasonTerminal)
	}
	if !current.IsPending() || token.IsZero() || !current.PendingToken().Equal(token) {
		return skipped(ReasonStale)
	}

	pending, err := PendingRecord(ctx, uow, orderID, token)
	if errors.Is(err, errs.ErrObjectNotFound) || errors.Is(err, ErrStaleContinuation) {
		return skipped(ReasonStale)
	}
	if err != nil {
		return ResumeResult{}, StageOutput{}, err
	}

	wfCtx := pending.Context()
	if outcome.Key != "" && wfCtx.EventKey == outcome.Key {
		return skipped(ReasonDuplicate)
	}

	status := strings.TrimSpace(outcome.Status)
	if status == "" {
		status = services.DefaultOutcomeStatus
	}
	wfCtx.EventKey = outcome.Key
	wfCtx.Event = outcome.EventType
	wfCtx.Status = status
	wfCtx.Details = maps.Clone(outcome.Payload)
	if outcome.ActorID != "" {
		wfCtx.ActorID = outcome.ActorID
	}
	if wfCtx.LocalID == "" {
		wfCtx.LocalID = strings.TrimSpace(outcome.LocalID)
	}

	decision, err := services.DecideTransition(current.Status(), services.ClassifyOutcome(status), wfCtx.RetryCount, o.policy)
	if errors.Is(err, services.ErrNotAwaiting) {
		return skipped(ReasonNotAwaited)
	}
	if err != nil {
		return ResumeResult{}, StageOutput{}, err
	}

	in := StageInput{
		Order:    current,
		Context:  wfCtx,
		Expected: token,
		Pending:  pending,
		ActorID:  outcome.ActorID,
		At:       o.now(),
	}

	var out StageOutput
	switch decision.Action {
	case services.ActionAdvance:
		out, err = o.stages[decision.Next].Handle(ctx, uow, in)
	case services.ActionComplete:
		out, err = o.completion.Handle(ctx, uow, in)
	case services.ActionRetry:
		out, err = o.retry.Handle(ctx, uow, in, decision)
	case services.ActionFail, services.ActionEscalate:
		out, err = o.failure.Handle(ctx, uow, in, decision)
	default:
		err = fmt.Errorf("unsupported action %s", decision.Action)
	}
	if lostRace(err) {
		return skipped(ReasonLostRace)
	}
	if err != nil {
		return ResumeResult{}, StageOutput{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		if lostRace(err) {
			return skipped(ReasonLostRace)
		}
		return ResumeResult{}, StageOutput{}, err
	}

	return ResumeResult{
		Applied: true,
		OrderID: orderID,
		Status:  current.Status(),
		Action:  decision.Action,
		Ack:     out.Ack,
		Reason:  decision.Reason,
	}, out, nil
}

func (o *Orchestrator) runEffect(ctx context.Context, stage order.Status, orderID string, effect Effect) error {
	if effect == nil {
		return nil
	}
	if err := effect(ctx); err != nil {
		o.metrics.SideEffectFailed(stage.String())
		o.logger.Error().
			Err(err).
			Str("order_id", orderID).
			Str("stage", stage.String()).
			Msg("stage side effect failed, continuation stays pending")
		return fmt.Errorf("%w: %s side effect for order %s: %w", ErrStageFailed, stage, orderID, err)
	}
	return nil
}

// PendingRecord returns the open ledger record awaiting token for orderID.
// It fails with ErrStaleContinuation when the order does not await token.
func PendingRecord(ctx context.Context, uow ports.UnitOfWork, orderID string, token kernel.Token) (*history.Record, error) {
	latest, err := uow.HistoryRepository().Latest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !latest.IsPending() || !latest.Token().Equal(token) || !latest.Status().Suspends() {
		return nil, fmt.Errorf("%w: order %s", ErrStaleContinuation, orderID)
	}
	return latest, nil
}

// lostRace reports whether err shows that another resume of the same
// continuation committed first.
func lostRace(err error) bool {
	return errors.Is(err, errs.ErrConcurrentUpdate) || errors.Is(err, errs.ErrObjectAlreadyExists)
}

func handleOf(o *order.Order) ExecutionHandle {
	return ExecutionHandle{OrderID: o.OrderID(), ExecutionID: o.ExecutionID()}
}
