package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ihistoryrepo"
	"github.com/corray333/frameshop/order/internal/dal/memory"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
	"github.com/corray333/frameshop/order/internal/service/models/event"
	"github.com/corray333/frameshop/order/internal/service/models/history"
	"github.com/corray333/frameshop/order/internal/service/models/order"
)

var (
	managerA = &employee.Principal{ID: uuid.New(), Name: "Maria Manager", Role: employee.RoleManager}
	managerB = &employee.Principal{ID: uuid.New(), Name: "Bob Boss", Role: employee.RoleAdmin}
	support  = &employee.Principal{ID: uuid.New(), Name: "Sam Support", Role: employee.RoleSupport}
)

func setup(t *testing.T, opts ...option) (*OrderService, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	base := []option{WithMemoryStore(store), WithRetryPolicy(3, time.Millisecond)}

	return MustNewOrderService(append(base, opts...)...), store
}

func createOrder(t *testing.T, svc *OrderService) *order.Order {
	t.Helper()

	o, err := svc.CreateOrder(context.Background(), order.CreateOrderModel{
		CustomerName:     "Ada Lovelace",
		CustomerEmail:    "ada@example.com",
		ProductName:      "Walnut frame 30x40",
		ProductID:        "frame-walnut-3040",
		Quantity:         1,
		TotalPrice:       decimal.RequireFromString("89.50"),
		ShippingAddress:  "12 Analytical St, London",
		PaymentMethod:    "card",
		PaymentReference: "pi_123",
	})
	require.NoError(t, err)

	return o
}

func ptr(s string) *string { return &s }

func TestCreateOrderStartsPendingWithoutHistory(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	o := createOrder(t, svc)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, int64(1), o.Version)
	assert.Nil(t, o.ShippingCarrier)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.True(t, got.TotalPrice.Equal(decimal.RequireFromString("89.5")))

	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := setup(t)
	valid := order.CreateOrderModel{
		CustomerName:    "Ada",
		CustomerEmail:   "ada@example.com",
		ProductName:     "Frame",
		Quantity:        1,
		TotalPrice:      decimal.NewFromInt(10),
		ShippingAddress: "Somewhere 1",
	}

	cases := map[string]func(m *order.CreateOrderModel){
		"missing email":  func(m *order.CreateOrderModel) { m.CustomerEmail = "  " },
		"bad email":      func(m *order.CreateOrderModel) { m.CustomerEmail = "not-an-email" },
		"zero quantity":  func(m *order.CreateOrderModel) { m.Quantity = 0 },
		"negative price": func(m *order.CreateOrderModel) { m.TotalPrice = decimal.NewFromInt(-1) },
		"no product":     func(m *order.CreateOrderModel) { m.ProductName = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := valid
			mutate(&m)
			_, err := svc.CreateOrder(context.Background(), m)
			assert.True(t, errs.Is(err, errs.KindValidation), "got %v", err)
		})
	}
}

// O1 walks the full forward path with two managers.
func TestScenarioForwardPath(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	o1 := createOrder(t, svc)

	o, err := svc.SetStatus(ctx, managerA, o1.ID, "processing", nil)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, o.Status)

	entries, err := svc.GetHistory(ctx, o1.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, order.StatusProcessing, entries[0].Status)
	assert.Equal(t, managerA.ID, entries[0].ActorID)
	assert.Equal(t, managerA.Name, entries[0].ActorName)
	assert.Equal(t, employee.RoleManager, entries[0].ActorRole)

	o, err = svc.AddTracking(ctx, managerA, o1.ID, order.Tracking{Carrier: "UPS", TrackingNumber: "1Z999"})
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, o.Status)
	require.NotNil(t, o.ShippingCarrier)
	assert.Equal(t, "UPS", *o.ShippingCarrier)
	assert.Equal(t, "1Z999", *o.TrackingNumber)

	entries, err = svc.GetHistory(ctx, o1.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, order.StatusShipped, entries[0].Status)
	require.NotNil(t, entries[0].Notes)
	assert.Contains(t, *entries[0].Notes, "UPS")
	assert.Contains(t, *entries[0].Notes, "1Z999")

	o, err = svc.SetStatus(ctx, managerB, o1.ID, "delivered", ptr("left at the door"))
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, o.Status)
	assert.Equal(t, int64(4), o.Version)
	assert.Equal(t, managerB.ID, *o.UpdatedBy)

	entries, err = svc.GetHistory(ctx, o1.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, order.StatusDelivered, entries[0].Status)
	assert.Equal(t, managerB.ID, entries[0].ActorID)
	assert.Equal(t, "left at the door", *entries[0].Notes)
	assert.Equal(t, order.StatusProcessing, entries[2].Status)
}

// O2: an empty tracking number is rejected before any write.
func TestAddTrackingEmptyTrackingNumberLeavesOrderUnchanged(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	o2 := createOrder(t, svc)
	_, err := svc.SetStatus(ctx, managerA, o2.ID, "processing", nil)
	require.NoError(t, err)

	before, err := svc.GetOrder(ctx, o2.ID)
	require.NoError(t, err)
	historyBefore, err := svc.GetHistory(ctx, o2.ID)
	require.NoError(t, err)
	outboxBefore := len(store.Outbox().All())

	for _, tr := range []order.Tracking{
		{Carrier: "", TrackingNumber: "1Z000"},
		{Carrier: "UPS", TrackingNumber: "   "},
	} {
		_, err = svc.AddTracking(ctx, managerA, o2.ID, tr)
		assert.True(t, errs.Is(err, errs.KindValidation), "got %v", err)
	}

	after, err := svc.GetOrder(ctx, o2.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	historyAfter, err := svc.GetHistory(ctx, o2.ID)
	require.NoError(t, err)
	assert.Equal(t, historyBefore, historyAfter)
	assert.Len(t, store.Outbox().All(), outboxBefore)
}

func TestUnauthorizedCallersProduceNoWrites(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	o := createOrder(t, svc)
	outboxBefore := len(store.Outbox().All())

	_, err := svc.SetStatus(ctx, support, o.ID, "processing", nil)
	assert.True(t, errs.Is(err, errs.KindForbidden))
	_, err = svc.AddTracking(ctx, support, o.ID, order.Tracking{Carrier: "UPS", TrackingNumber: "1Z"})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	_, err = svc.SetStatus(ctx, nil, o.ID, "processing", nil)
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))
	_, err = svc.AddTracking(ctx, nil, o.ID, order.Tracking{Carrier: "UPS", TrackingNumber: "1Z"})
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)

	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Len(t, store.Outbox().All(), outboxBefore)
}

func TestSetStatusRejectsUnknownToken(t *testing.T) {
	svc, _ := setup(t)
	o := createOrder(t, svc)

	_, err := svc.SetStatus(context.Background(), managerA, o.ID, "teleported", nil)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestUnknownOrder(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := svc.GetOrder(ctx, id)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	_, err = svc.GetHistory(ctx, id)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	_, err = svc.SetStatus(ctx, managerA, id, "processing", nil)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestStrictTransitions(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	o := createOrder(t, svc)

	_, err := svc.SetStatus(ctx, managerA, o.ID, "delivered", nil)
	assert.True(t, errs.Is(err, errs.KindInvalidTransition))

	_, err = svc.AddTracking(ctx, managerA, o.ID, order.Tracking{Carrier: "DHL", TrackingNumber: "42"})
	assert.True(t, errs.Is(err, errs.KindInvalidTransition))

	_, err = svc.SetStatus(ctx, managerA, o.ID, "cancelled", nil)
	require.NoError(t, err)

	for _, st := range []string{"pending", "processing", "shipped", "delivered", "cancelled"} {
		_, err = svc.SetStatus(ctx, managerA, o.ID, st, nil)
		assert.True(t, errs.Is(err, errs.KindInvalidTransition), "cancelled -> %s", st)
	}

	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStrictTrackingCorrectionOnShippedOrder(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	o := createOrder(t, svc)

	_, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	_, err = svc.AddTracking(ctx, managerA, o.ID, order.Tracking{Carrier: "UPS", TrackingNumber: "1Z1"})
	require.NoError(t, err)

	url := "https://track.example.com/1Z2"
	got, err := svc.AddTracking(ctx, managerA, o.ID, order.Tracking{Carrier: "UPS", TrackingNumber: "1Z2", TrackingURL: &url})
	require.NoError(t, err)
	assert.Equal(t, "1Z2", *got.TrackingNumber)
	assert.Equal(t, url, *got.TrackingURL)

	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPermissiveTransitions(t *testing.T) {
	svc, _ := setup(t, WithStrictTransitions(false))
	ctx := context.Background()
	o := createOrder(t, svc)

	_, err := svc.SetStatus(ctx, managerA, o.ID, "cancelled", nil)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)

	// shipped still needs tracking metadata
	_, err = svc.SetStatus(ctx, managerA, o.ID, "shipped", nil)
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.SetStatus(ctx, managerA, o.ID, "pending", nil)
	require.NoError(t, err)
	got, err := svc.AddTracking(ctx, managerA, o.ID, order.Tracking{Carrier: "FedEx", TrackingNumber: "77"})
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)

	got, err = svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	assert.Nil(t, got.ShippingCarrier)
	assert.Nil(t, got.TrackingNumber)

	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, order.StatusProcessing, entries[0].Status)
}

func TestHistoryIsAppendOnly(t *testing.T) {
	svc, _ := setup(t, WithStrictTransitions(false))
	ctx := context.Background()
	o := createOrder(t, svc)

	seen := []string{}
	for i, st := range []string{"processing", "cancelled", "pending", "processing"} {
		_, err := svc.SetStatus(ctx, managerA, o.ID, st, nil)
		require.NoError(t, err)

		entries, err := svc.GetHistory(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, entries, i+1)
		assert.Equal(t, st, entries[0].Status.String())

		// older entries never change
		ids := make([]string, 0, len(entries))
		for j := len(entries) - 1; j >= 0; j-- {
			ids = append(ids, entries[j].ID.String())
		}
		assert.Equal(t, seen, ids[:len(seen)])
		seen = ids
	}
}

func TestUpdatedAtNeverDecreases(t *testing.T) {
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc, _ := setup(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	o := createOrder(t, svc)

	clock = clock.Add(-time.Hour)
	got, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(o.UpdatedAt))
}

func TestReplayedOperationIDWritesOnce(t *testing.T) {
	svc, _ := setup(t)
	o := createOrder(t, svc)
	ctx := WithOperationID(context.Background(), uuid.New())

	first, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	second, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)

	entries, err := svc.GetHistory(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	other := createOrder(t, svc)
	_, err = svc.SetStatus(ctx, managerA, other.ID, "processing", nil)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestReusedOperationIDForDifferentChangeConflicts(t *testing.T) {
	svc, _ := setup(t)
	o := createOrder(t, svc)
	ctx := WithOperationID(context.Background(), uuid.New())

	_, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)

	_, err = svc.AddTracking(ctx, managerA, o.ID, order.Tracking{Carrier: "UPS", TrackingNumber: "1Z999"})
	assert.True(t, errs.Is(err, errs.KindConflict), "got %v", err)

	_, err = svc.SetStatus(ctx, managerA, o.ID, "processing", ptr("rush"))
	assert.True(t, errs.Is(err, errs.KindConflict), "got %v", err)

	_, err = svc.SetStatus(ctx, managerA, o.ID, "cancelled", nil)
	assert.True(t, errs.Is(err, errs.KindConflict), "got %v", err)

	got, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Nil(t, got.ShippingCarrier)
	assert.Equal(t, int64(2), got.Version)

	entries, err := svc.GetHistory(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// the original request still replays
	again, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
}

func TestReusedTrackingOperationIDReplaysSameTracking(t *testing.T) {
	svc, _ := setup(t)
	o := createOrder(t, svc)
	ctx := WithOperationID(context.Background(), uuid.New())
	tracking := order.Tracking{Carrier: "UPS", TrackingNumber: "1Z999", TrackingURL: ptr("https://ups.test/1Z999")}

	first, err := svc.AddTracking(ctx, managerA, o.ID, tracking)
	require.NoError(t, err)
	second, err := svc.AddTracking(ctx, managerA, o.ID, tracking)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)

	tracking.TrackingNumber = "1Z000"
	_, err = svc.AddTracking(ctx, managerA, o.ID, tracking)
	assert.True(t, errs.Is(err, errs.KindConflict), "got %v", err)
}

// staleLookupUOW hides committed history entries from GetByOperationID the
// way a lookup racing another transaction would. misses counts the lookups
// per unit of work that come back empty; a negative value hides every lookup.
type staleLookupUOW struct {
	unitOfWork
	misses int
}

func (u *staleLookupUOW) HistoryRepository() ihistoryrepo.IHistoryRepository {
	return &staleHistory{IHistoryRepository: u.unitOfWork.HistoryRepository(), misses: &u.misses}
}

type staleHistory struct {
	ihistoryrepo.IHistoryRepository
	misses *int
}

func (h *staleHistory) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*history.Entry, error) {
	if *h.misses != 0 {
		*h.misses--
		return nil, errs.NotFound("history entry not found")
	}

	return h.IHistoryRepository.GetByOperationID(ctx, operationID)
}

func staleLookups(store *memory.Store, misses int) option {
	return withUnitOfWorkFactory(func() unitOfWork {
		return &staleLookupUOW{unitOfWork: memory.NewUnitOfWork(store), misses: misses}
	})
}

func TestDuplicateOperationIDIsNeverAppliedTwice(t *testing.T) {
	store := memory.NewStore()
	svc := MustNewOrderService(
		WithMemoryStore(store),
		WithRetryPolicy(3, time.Millisecond),
		WithStrictTransitions(false),
		staleLookups(store, -1),
	)
	o := createOrder(t, svc)
	ctx := WithOperationID(context.Background(), uuid.New())

	_, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	assert.ErrorIs(t, err, ihistoryrepo.ErrDuplicateOperation)

	got, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	entries, err := svc.GetHistory(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// one insert event for the order plus the pair from the applied change
	assert.Len(t, store.Outbox().All(), 3)
}

func TestOperationIDCommittedWhileWaitingForLockReplays(t *testing.T) {
	store := memory.NewStore()
	svc := MustNewOrderService(
		WithMemoryStore(store),
		WithRetryPolicy(1, time.Millisecond),
		WithStrictTransitions(false),
		staleLookups(store, 1),
	)
	o := createOrder(t, svc)
	ctx := WithOperationID(context.Background(), uuid.New())

	first, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	second, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)

	entries, err := svc.GetHistory(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// flakyUOW fails Commit with Unavailable a fixed number of times.
// When land is set the underlying transaction commits before the error is reported.
type flakyUOW struct {
	unitOfWork
	failures *int
	land     bool
}

func (f *flakyUOW) Commit(ctx context.Context) error {
	if *f.failures == 0 {
		return f.unitOfWork.Commit(ctx)
	}
	*f.failures--
	if f.land {
		if err := f.unitOfWork.Commit(ctx); err != nil {
			return err
		}
	}

	return errs.Unavailable(errors.New("connection reset by peer"), "failed to commit transaction")
}

func flaky(store *memory.Store, failures *int, land bool) option {
	return withUnitOfWorkFactory(func() unitOfWork {
		return &flakyUOW{unitOfWork: memory.NewUnitOfWork(store), failures: failures, land: land}
	})
}

func TestCommitOutcomeUnknownIsNotAppliedTwice(t *testing.T) {
	store := memory.NewStore()
	failures := 0
	svc := MustNewOrderService(WithMemoryStore(store), WithRetryPolicy(3, time.Millisecond), flaky(store, &failures, true))
	ctx := context.Background()
	o := createOrder(t, svc)

	failures = 1
	got, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, int64(2), got.Version)

	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	warnings, err := svc.ConsistencyWarnings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestTransientCommitFailureIsRetried(t *testing.T) {
	store := memory.NewStore()
	failures := 0
	svc := MustNewOrderService(WithMemoryStore(store), WithRetryPolicy(3, time.Millisecond), flaky(store, &failures, false))
	ctx := context.Background()
	o := createOrder(t, svc)

	failures = 2
	got, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExhaustedRetriesRecordConsistencyWarning(t *testing.T) {
	store := memory.NewStore()
	failures := 0
	svc := MustNewOrderService(WithMemoryStore(store), WithRetryPolicy(3, time.Millisecond), flaky(store, &failures, false))
	ctx := context.Background()
	o := createOrder(t, svc)

	failures = 10
	_, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	assert.True(t, errs.Is(err, errs.KindUnavailable))
	assert.Equal(t, 7, failures)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)

	warnings, err := svc.ConsistencyWarnings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, o.ID, *warnings[0].OrderID)
	assert.True(t, strings.Contains(warnings[0].Message, "commit outcome unknown"))
}

func TestMutationsEnqueueChangeEvents(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	o := createOrder(t, svc)

	msgs := store.Outbox().All()
	require.Len(t, msgs, 1)
	var created event.Event
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &created))
	assert.Equal(t, event.TableOrders, created.Table)
	assert.Equal(t, event.TypeInsert, created.Type)
	assert.Equal(t, o.ID, created.RecordID)
	assert.Equal(t, o.ID.String(), msgs[0].RoutingKey)

	_, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)

	msgs = store.Outbox().All()
	require.Len(t, msgs, 3)
	var updated, appended event.Event
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &updated))
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &appended))
	assert.Equal(t, event.TypeUpdate, updated.Type)
	assert.Equal(t, event.TableOrderHistory, appended.Table)
	assert.Equal(t, o.ID, appended.OrderID)
}

func TestConcurrentMutationsKeepHistoryConsistent(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	o := createOrder(t, svc)
	_, err := svc.SetStatus(ctx, managerA, o.ID, "processing", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svc.SetStatus(ctx, managerA, o.ID, "cancelled", nil)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svc.AddTracking(ctx, managerB, o.ID, order.Tracking{Carrier: "UPS", TrackingNumber: "1Z5"})
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errs.Is(err, errs.KindInvalidTransition), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	entries, err := svc.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, got.Status, entries[0].Status)
	assert.Equal(t, int64(3), got.Version)
}

func TestListOrders(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		createOrder(t, svc)
	}

	page, err := svc.ListOrders(ctx, order.QueryOrdersModel{Search: "ADA@example"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, order.DefaultLimit, page.Limit)
	assert.Len(t, page.Items, 3)

	page, err = svc.ListOrders(ctx, order.QueryOrdersModel{Search: "pi_123", Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)

	bogus := order.Status("lost")
	_, err = svc.ListOrders(ctx, order.QueryOrdersModel{Status: &bogus})
	assert.True(t, errs.Is(err, errs.KindValidation))
}
