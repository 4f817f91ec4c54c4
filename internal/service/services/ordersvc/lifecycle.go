package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/event"
	"github.com/corray333/frameshop/order/internal/service/models/history"
	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/service/models/outbox"
	"github.com/corray333/frameshop/order/internal/service/models/warning"
)

const tracerName = "ordersvc"

type operationIDKey struct{}

// WithOperationID attaches a caller-chosen idempotency key to ctx. Replaying the
// same mutation with the same key returns the current order without writing
// again. Reusing the key for a different mutation is a conflict.
func WithOperationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

func operationIDFrom(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(operationIDKey{}).(uuid.UUID); ok && id != uuid.Nil {
		return id
	}

	return uuid.New()
}

// applyFunc mutates o in place and returns the history notes for the transition.
type applyFunc func(o *order.Order) (*string, error)

// CreateOrder stores a new pending order. No history entry is written.
func (s *OrderService) CreateOrder(ctx context.Context, model order.CreateOrderModel) (*order.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := s.validateCreate(&model); err != nil {
		return nil, traceErr(span, err)
	}

	now := s.now()
	o := order.Order{
		ID:               uuid.New(),
		CustomerName:     model.CustomerName,
		CustomerEmail:    model.CustomerEmail,
		CustomerPhone:    model.CustomerPhone,
		ProductName:      model.ProductName,
		ProductID:        model.ProductID,
		Quantity:         model.Quantity,
		TotalPrice:       model.TotalPrice,
		ShippingAddress:  model.ShippingAddress,
		PaymentMethod:    model.PaymentMethod,
		PaymentReference: model.PaymentReference,
		Notes:            model.Notes,
		Status:           order.StatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	span.SetAttributes(attribute.String("order.id", o.ID.String()))

	err := s.withRetry(ctx, func(ctx context.Context) error {
		work := s.newUOW()
		if err := work.Begin(ctx); err != nil {
			return err
		}
		defer s.rollback(ctx, work)

		// a previous attempt may have committed before its connection dropped
		if _, err := work.OrderRepository().Get(ctx, o.ID); err == nil {
			return nil
		} else if !errs.Is(err, errs.KindNotFound) {
			return err
		}

		if err := work.OrderRepository().Insert(ctx, o); err != nil {
			return err
		}
		if err := s.enqueue(ctx, work, o.ID, now, change{event.TableOrders, event.TypeInsert, o.ID, o}); err != nil {
			return err
		}

		return work.Commit(ctx)
	})
	if err != nil {
		return nil, traceErr(span, err)
	}

	slog.Info("Order created", "order_id", o.ID, "total_price", o.TotalPrice.String())

	return &o, nil
}

// GetOrder returns the current state of an order.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderService.GetOrder")
	defer span.End()

	o, err := s.newUOW().OrderRepository().Get(ctx, id)
	if err != nil {
		return nil, traceErr(span, err)
	}

	return o, nil
}

// GetHistory returns the audit trail of an order, newest first.
func (s *OrderService) GetHistory(ctx context.Context, id uuid.UUID) ([]history.Entry, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderService.GetHistory")
	defer span.End()

	work := s.newUOW()
	if _, err := work.OrderRepository().Get(ctx, id); err != nil {
		return nil, traceErr(span, err)
	}

	entries, err := work.HistoryRepository().ListByOrder(ctx, id)
	if err != nil {
		return nil, traceErr(span, err)
	}

	return entries, nil
}

// ListOrders returns one page of orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter order.QueryOrdersModel) (*order.Page, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderService.ListOrders")
	defer span.End()

	filter.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, traceErr(span, errs.Validation(fmt.Sprintf("unknown order status %q", *filter.Status)))
	}

	items, total, err := s.newUOW().OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, traceErr(span, err)
	}

	return &order.Page{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// SetStatus moves an order to the status named by token on behalf of actor.
func (s *OrderService) SetStatus(
	ctx context.Context,
	actor *employee.Principal,
	id uuid.UUID,
	token string,
	notes *string,
) (*order.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderService.SetStatus",
		trace.WithAttributes(attribute.String("order.id", id.String()), attribute.String("order.status", token)))
	defer span.End()

	if err := authorizeMutation(actor); err != nil {
		return nil, traceErr(span, err)
	}

	next, err := order.ParseStatus(token)
	if err != nil {
		return nil, traceErr(span, errs.Wrap(errs.KindValidation, err, fmt.Sprintf("unknown order status %q", token)))
	}
	notes = trimmed(notes)
	fingerprint := "set_status:" + next.String()
	if notes != nil {
		fingerprint += ":" + *notes
	}

	o, applied, err := s.mutate(ctx, actor, id, fingerprint, func(o *order.Order) (*string, error) {
		if s.strict && !o.Status.CanTransitionTo(next) {
			return nil, errs.InvalidTransition(fmt.Sprintf("cannot move order from %s to %s", o.Status, next))
		}
		if (next == order.StatusShipped || next == order.StatusDelivered) && !o.HasTracking() {
			return nil, errs.Validation("tracking must be attached before the order is marked " + next.String())
		}
		if next == order.StatusPending || next == order.StatusProcessing {
			o.ShippingCarrier, o.TrackingNumber, o.TrackingURL = nil, nil, nil
		}
		o.Status = next

		return notes, nil
	})
	if err != nil {
		return nil, traceErr(span, err)
	}

	if applied {
		slog.Info("Order status changed", "order_id", id, "status", next, "actor_id", actor.ID)
	}

	return o, nil
}

// AddTracking attaches shipment tracking and marks the order shipped.
func (s *OrderService) AddTracking(
	ctx context.Context,
	actor *employee.Principal,
	id uuid.UUID,
	tracking order.Tracking,
) (*order.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderService.AddTracking",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	if err := authorizeMutation(actor); err != nil {
		return nil, traceErr(span, err)
	}

	carrier := strings.TrimSpace(tracking.Carrier)
	number := strings.TrimSpace(tracking.TrackingNumber)
	if carrier == "" {
		return nil, traceErr(span, errs.Validation("carrier is required"))
	}
	if number == "" {
		return nil, traceErr(span, errs.Validation("tracking_number is required"))
	}
	url := trimmed(tracking.TrackingURL)
	fingerprint := "add_tracking:" + carrier + ":" + number
	if url != nil {
		fingerprint += ":" + *url
	}

	o, applied, err := s.mutate(ctx, actor, id, fingerprint, func(o *order.Order) (*string, error) {
		if s.strict && !o.Status.AcceptsTracking() {
			return nil, errs.InvalidTransition(fmt.Sprintf("cannot attach tracking to a %s order", o.Status))
		}
		o.Status = order.StatusShipped
		o.ShippingCarrier = &carrier
		o.TrackingNumber = &number
		o.TrackingURL = url

		notes := fmt.Sprintf("Shipped via %s, tracking number %s", carrier, number)

		return &notes, nil
	})
	if err != nil {
		return nil, traceErr(span, err)
	}

	if applied {
		slog.Info("Order tracking attached", "order_id", id, "carrier", carrier, "actor_id", actor.ID)
	}

	return o, nil
}

// mutate applies fn to the locked order and writes the order row, one history
// entry and the change events in one transaction. Unavailable failures are
// retried; a retry first checks whether the previous attempt already landed.
// applied is false when the operation id had already been applied and the
// current order is returned as is.
func (s *OrderService) mutate(
	ctx context.Context,
	actor *employee.Principal,
	id uuid.UUID,
	fingerprint string,
	fn applyFunc,
) (result *order.Order, applied bool, err error) {
	opID := operationIDFrom(ctx)

	var uncertain bool
	err = s.withRetry(ctx, func(ctx context.Context) error {
		o, ok, err := s.applyOnce(ctx, actor, id, opID, fingerprint, fn, &uncertain)
		if err != nil {
			return err
		}
		result, applied = o, ok

		return nil
	})
	if err != nil {
		if uncertain {
			s.recordWarning(ctx, id, opID, err)
		}
		return nil, false, err
	}

	return result, applied, nil
}

func (s *OrderService) applyOnce(
	ctx context.Context,
	actor *employee.Principal,
	id, opID uuid.UUID,
	fingerprint string,
	fn applyFunc,
	uncertain *bool,
) (*order.Order, bool, error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, false, err
	}
	defer s.rollback(ctx, work)

	replayed, found, err := s.replay(ctx, work, id, opID, fingerprint)
	if err != nil && !found {
		return nil, false, err
	}
	*uncertain = false
	if found {
		return replayed, false, err
	}

	o, err := work.OrderRepository().GetForUpdate(ctx, id)
	if err != nil {
		return nil, false, err
	}

	// a concurrent request with the same operation id may have committed
	// while this one waited for the row lock
	if _, found, err := s.replay(ctx, work, id, opID, fingerprint); found || err != nil {
		if err != nil {
			return nil, false, err
		}
		return o, false, nil
	}

	prevVersion := o.Version
	notes, err := fn(o)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	if now.Before(o.UpdatedAt) {
		now = o.UpdatedAt
	}
	actorID := actor.ID
	o.UpdatedAt = now
	o.UpdatedBy = &actorID
	o.Version = prevVersion + 1

	if err := work.OrderRepository().Update(ctx, *o, prevVersion); err != nil {
		return nil, false, err
	}

	entry := &history.Entry{
		ID:          uuid.New(),
		OrderID:     o.ID,
		Status:      o.Status,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		ActorRole:   actor.Role,
		Notes:       notes,
		OperationID: opID,
		Fingerprint: fingerprint,
		CreatedAt:   now,
	}
	if err := work.HistoryRepository().Insert(ctx, *entry); err != nil {
		return nil, false, err
	}

	if err := s.enqueue(ctx, work, o.ID, now,
		change{event.TableOrders, event.TypeUpdate, o.ID, o},
		change{event.TableOrderHistory, event.TypeInsert, entry.ID, entry},
	); err != nil {
		return nil, false, err
	}

	if err := work.Commit(ctx); err != nil {
		*uncertain = true
		return nil, false, err
	}

	return o, true, nil
}

// replay looks up the history entry written by opID. found is true when the
// operation was already applied; the entry must then belong to the same order
// and the same request.
func (s *OrderService) replay(
	ctx context.Context,
	work unitOfWork,
	id, opID uuid.UUID,
	fingerprint string,
) (o *order.Order, found bool, err error) {
	entry, err := work.HistoryRepository().GetByOperationID(ctx, opID)
	switch {
	case errs.Is(err, errs.KindNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	if entry.OrderID != id {
		return nil, true, errs.Validation("operation id was already used for another order")
	}
	// entries written before fingerprints were stored carry an empty one
	if entry.Fingerprint != "" && entry.Fingerprint != fingerprint {
		return nil, true, errs.Conflict("operation id was already used for a different change")
	}

	o, err = work.OrderRepository().Get(ctx, id)
	if err != nil {
		return nil, true, err
	}

	return o, true, nil
}

type change struct {
	table    event.Table
	typ      event.Type
	recordID uuid.UUID
	record   any
}

// enqueue writes change events to the outbox inside the open unit of work.
func (s *OrderService) enqueue(ctx context.Context, work unitOfWork, orderID uuid.UUID, at time.Time, changes ...change) error {
	for _, c := range changes {
		e, err := event.New(c.table, c.typ, c.recordID, orderID, c.record, at)
		if err != nil {
			return fmt.Errorf("failed to build %s event: %w", c.table, err)
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", c.table, err)
		}

		err = work.OutboxRepository().Insert(ctx, outbox.OutboxMessage{
			ExchangeName: s.exchange,
			RoutingKey:   orderID.String(),
			Payload:      payload,
			ContentType:  outbox.ContentTypeJSON,
			MaxRetries:   s.outboxMaxRetries,
			CreatedAt:    at,
			UpdatedAt:    at,
			NextRetryAt:  at,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *OrderService) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.retryAttempts-1, retry.NewExponential(s.retryBaseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		switch {
		case errs.Is(err, errs.KindUnavailable):
			slog.Warn("Store unavailable, retrying", "error", err)
			return retry.RetryableError(err)
		case errors.Is(err, ihistoryrepo.ErrDuplicateOperation):
			// the next attempt resolves to a replay of the committed operation
			slog.Warn("Operation id applied concurrently, retrying", "error", err)
			return retry.RetryableError(err)
		}

		return err
	})
}

func (s *OrderService) rollback(ctx context.Context, work unitOfWork) {
	if err := work.Rollback(ctx); err != nil {
		slog.Error("Failed to rollback unit of work", "error", err)
	}
}

// recordWarning reports a mutation whose commit outcome is unknown.
func (s *OrderService) recordWarning(ctx context.Context, orderID, opID uuid.UUID, cause error) {
	w := warning.ConsistencyWarning{
		Source:      warning.SourceLifecycle,
		OrderID:     &orderID,
		OperationID: &opID,
		Message:     fmt.Sprintf("commit outcome unknown after retries: %v", cause),
		CreatedAt:   s.now(),
	}
	slog.Warn("Consistency warning", "source", w.Source, "order_id", orderID, "operation_id", opID, "error", cause)

	if s.warnings == nil {
		return
	}
	if err := s.warnings.Insert(context.WithoutCancel(ctx), w); err != nil {
		slog.Error("Failed to persist consistency warning", "order_id", orderID, "operation_id", opID, "error", err)
	}
}

// ConsistencyWarnings returns the most recent warnings for operators.
func (s *OrderService) ConsistencyWarnings(ctx context.Context, limit int) ([]warning.ConsistencyWarning, error) {
	if s.warnings == nil {
		return []warning.ConsistencyWarning{}, nil
	}
	if limit < 1 || limit > order.MaxLimit {
		limit = order.MaxLimit
	}

	return s.warnings.List(ctx, limit)
}

func authorizeMutation(actor *employee.Principal) error {
	if actor == nil || actor.ID == uuid.Nil {
		return errs.Unauthenticated("authentication required")
	}
	if !actor.Role.CanMutateOrders() {
		return errs.Forbidden("role " + actor.Role.String() + " may not modify orders")
	}

	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}

	return &v
}

func traceErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
