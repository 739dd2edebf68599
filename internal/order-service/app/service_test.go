package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/vending-sagas/internal/coordinator/attemptlog"
	"github.com/jcmexdev/vending-sagas/internal/order-service/core/domain/entity"
	"github.com/jcmexdev/vending-sagas/internal/pkg/alert"
	"github.com/jcmexdev/vending-sagas/internal/pkg/httpclient"
)

type fakeMenus struct {
	items map[int64]entity.MenuItem
}

func (f *fakeMenus) GetMenuItem(ctx context.Context, id int64) (entity.MenuItem, error) {
	item, ok := f.items[id]
	if !ok {
		return entity.MenuItem{}, entity.ErrMenuNotFound
	}
	return item, nil
}

func (f *fakeMenus) ListMenu(ctx context.Context) ([]entity.MenuItem, error) {
	var res []entity.MenuItem
	for _, item := range f.items {
		res = append(res, item)
	}
	return res, nil
}

type fakeOrders struct {
	byKey     map[string]entity.Order
	nextID    int64
	commitErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byKey: map[string]entity.Order{}, nextID: 1}
}

func (f *fakeOrders) CommitOrder(ctx context.Context, order entity.Order) (int64, error) {
	if f.commitErr != nil {
		return 0, f.commitErr
	}
	if existing, ok := f.byKey[order.IdempotencyKey]; ok {
		return existing.ID, nil
	}
	order.ID = f.nextID
	f.nextID++
	f.byKey[order.IdempotencyKey] = order
	return order.ID, nil
}

func (f *fakeOrders) GetByIdempotencyKey(ctx context.Context, key string) (entity.Order, bool, error) {
	order, ok := f.byKey[key]
	return order, ok, nil
}

// fakeInventory mirrors the real service's conditional release: a release
// only credits stock when a reservation under the same key landed.
type fakeInventory struct {
	stock    map[string]int
	reserved map[string]map[string]int
	released map[string]bool

	reserveCalls int
}

func newFakeInventory(stock map[string]int) *fakeInventory {
	return &fakeInventory{
		stock:    stock,
		reserved: map[string]map[string]int{},
		released: map[string]bool{},
	}
}

func (f *fakeInventory) Reserve(ctx context.Context, key string, usage map[string]int) error {
	f.reserveCalls++
	if _, ok := f.reserved[key]; ok {
		return nil
	}
	for name, amount := range usage {
		if f.stock[name] < amount {
			return &httpclient.RemoteError{Status: 400, Code: "insufficient_stock", Message: name}
		}
	}
	for name, amount := range usage {
		f.stock[name] -= amount
	}
	f.reserved[key] = usage
	return nil
}

func (f *fakeInventory) Release(ctx context.Context, key string, usage map[string]int) error {
	reservedUsage, ok := f.reserved[key]
	if !ok || f.released[key] {
		return nil
	}
	for name, amount := range reservedUsage {
		f.stock[name] += amount
	}
	f.released[key] = true
	return nil
}

type fakeBilling struct {
	register int
	charged  map[string]int

	chargeCalls int
	refundCalls int
}

func newFakeBilling(register int) *fakeBilling {
	return &fakeBilling{register: register, charged: map[string]int{}}
}

func (f *fakeBilling) Charge(ctx context.Context, key string, amountTendered, totalPrice int) (int, error) {
	f.chargeCalls++
	if change, ok := f.charged[key]; ok {
		return change, nil
	}
	if amountTendered < totalPrice {
		return 0, &httpclient.RemoteError{Status: 400, Code: "insufficient_payment"}
	}
	change := amountTendered - totalPrice
	f.register += totalPrice
	f.charged[key] = change
	return change, nil
}

func (f *fakeBilling) Refund(ctx context.Context, key string, totalPrice int) error {
	f.refundCalls++
	if _, ok := f.charged[key]; !ok {
		return nil
	}
	f.register -= totalPrice
	delete(f.charged, key)
	return nil
}

type memoryLog struct {
	mu         sync.Mutex
	entries    []*attemptlog.Entry
	unfinished []*attemptlog.Entry
}

func (l *memoryLog) Save(ctx context.Context, entry *attemptlog.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memoryLog) GetLatest(ctx context.Context, key string) (*attemptlog.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].AttemptKey == key {
			return l.entries[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (l *memoryLog) ListUnfinished(ctx context.Context) ([]*attemptlog.Entry, error) {
	return l.unfinished, nil
}

func (l *memoryLog) lastPhase() attemptlog.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Phase
}

type captureNotifier struct {
	events []alert.Event
}

func (n *captureNotifier) Escalate(ctx context.Context, event alert.Event) {
	n.events = append(n.events, event)
}

// americano: price 3000, per-unit usage beans=2 water=2 milk=1.
func testMenus() *fakeMenus {
	return &fakeMenus{items: map[int64]entity.MenuItem{
		1: {ID: 1, Name: "americano", Price: 3000, CoffeeBeans: 2, Water: 2, Milk: 1},
	}}
}

func testStock() map[string]int {
	return map[string]int{"coffee_beans": 10, "water": 10, "milk": 5}
}

type testEnv struct {
	menus     *fakeMenus
	orders    *fakeOrders
	inventory *fakeInventory
	billing   *fakeBilling
	log       *memoryLog
	notifier  *captureNotifier
	svc       *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		menus:     testMenus(),
		orders:    newFakeOrders(),
		inventory: newFakeInventory(testStock()),
		billing:   newFakeBilling(10000),
		log:       &memoryLog{},
		notifier:  &captureNotifier{},
	}
	env.svc = NewService(env.menus, env.orders, env.inventory, env.billing,
		env.log, nil, env.notifier, nil)
	return env
}

func TestPlaceOrderCommits(t *testing.T) {
	env := newTestEnv()

	receipt, err := env.svc.PlaceOrder(context.Background(), "key-1", 1, 1, 5000)
	require.NoError(t, err)

	assert.Equal(t, "americano", receipt.MenuName)
	assert.Equal(t, 3000, receipt.TotalPrice)
	assert.Equal(t, 2000, receipt.Change)
	assert.NotZero(t, receipt.OrderID)

	// Stock was debited by the scaled per-unit usage.
	assert.Equal(t, map[string]int{"coffee_beans": 8, "water": 8, "milk": 4}, env.inventory.stock)

	order, found, err := env.orders.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3000, order.TotalPrice)
	assert.Equal(t, 2000, order.ChangeAmount)

	assert.Equal(t, attemptlog.PhaseCommitted, env.log.lastPhase())
}

func TestPlaceOrderScalesUsageAndPriceByQuantity(t *testing.T) {
	env := newTestEnv()

	receipt, err := env.svc.PlaceOrder(context.Background(), "key-1", 1, 2, 10000)
	require.NoError(t, err)

	assert.Equal(t, 6000, receipt.TotalPrice)
	assert.Equal(t, 4000, receipt.Change)
	assert.Equal(t, map[string]int{"coffee_beans": 6, "water": 6, "milk": 3}, env.inventory.stock)
}

func TestPlaceOrderGeneratesKeyWhenMissing(t *testing.T) {
	env := newTestEnv()

	receipt, err := env.svc.PlaceOrder(context.Background(), "", 1, 1, 3000)
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.Change)
	assert.Len(t, env.orders.byKey, 1)
}

func TestPlaceOrderReplaysCommittedReceipt(t *testing.T) {
	env := newTestEnv()

	first, err := env.svc.PlaceOrder(context.Background(), "key-1", 1, 1, 5000)
	require.NoError(t, err)

	reserveCalls := env.inventory.reserveCalls
	chargeCalls := env.billing.chargeCalls

	second, err := env.svc.PlaceOrder(context.Background(), "key-1", 1, 1, 5000)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The replay never re-enters the saga.
	assert.Equal(t, reserveCalls, env.inventory.reserveCalls)
	assert.Equal(t, chargeCalls, env.billing.chargeCalls)
}

func TestPlaceOrderRejectsInvalidInput(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.PlaceOrder(context.Background(), "key-1", 1, 0, 5000)
	assert.ErrorIs(t, err, entity.ErrInvalidQuantity)

	_, err = env.svc.PlaceOrder(context.Background(), "key-1", 1, 1, -1)
	assert.ErrorIs(t, err, entity.ErrInvalidPayment)

	_, err = env.svc.PlaceOrder(context.Background(), "key-1", 99, 1, 5000)
	assert.ErrorIs(t, err, entity.ErrMenuNotFound)

	// Nothing downstream was touched.
	assert.Zero(t, env.inventory.reserveCalls)
	assert.Zero(t, env.billing.chargeCalls)
}

func TestPlaceOrderInsufficientPaymentReleasesStock(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.PlaceOrder(context.Background(), "key-1", 1, 1, 1000)
	require.Error(t, err)

	var remote *httpclient.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "insufficient_payment", remote.Code)

	// The reservation was compensated; the failed charge was not refunded.
	assert.Equal(t, testStock(), env.inventory.stock)
	assert.Zero(t, env.billing.refundCalls)
	assert.Equal(t, attemptlog.PhaseFailed, env.log.lastPhase())
}

func TestPlaceOrderInsufficientStockSkipsCharge(t *testing.T) {
	env := newTestEnv()
	env.inventory.stock["milk"] = 0

	_, err := env.svc.PlaceOrder(context.Background(), "key-1", 1, 1, 5000)
	require.Error(t, err)

	var remote *httpclient.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "insufficient_stock", remote.Code)
	assert.Zero(t, env.billing.chargeCalls)
	assert.Equal(t, attemptlog.PhaseFailed, env.log.lastPhase())
}

const recoveryPayload = `{"menu_id":1,"menu_name":"americano","quantity":1,` +
	`"payment_amount":5000,"total_price":3000,` +
	`"usage":{"coffee_beans":2,"water":2,"milk":1}}`

func TestRecoverCommitsPaidAttempt(t *testing.T) {
	env := newTestEnv()
	env.log.unfinished = []*attemptlog.Entry{{
		AttemptKey: "key-paid",
		Phase:      attemptlog.PhasePaid,
		Payload:    recoveryPayload,
		UpdatedAt:  time.Now().UTC(),
	}}

	require.NoError(t, env.svc.Recover(context.Background()))

	order, found, err := env.orders.GetByIdempotencyKey(context.Background(), "key-paid")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3000, order.TotalPrice)
	assert.Equal(t, 2000, order.ChangeAmount)
	assert.Equal(t, attemptlog.PhaseCommitted, env.log.lastPhase())
}

func TestRecoverReleasesUnpaidAttempt(t *testing.T) {
	env := newTestEnv()
	// The crash hit after the reservation landed but before payment.
	usage := map[string]int{"coffee_beans": 2, "water": 2, "milk": 1}
	require.NoError(t, env.inventory.Reserve(context.Background(), "key-stuck", usage))

	env.log.unfinished = []*attemptlog.Entry{{
		AttemptKey: "key-stuck",
		Phase:      attemptlog.PhaseStockReserved,
		Payload:    recoveryPayload,
		UpdatedAt:  time.Now().UTC(),
	}}

	require.NoError(t, env.svc.Recover(context.Background()))

	assert.Equal(t, testStock(), env.inventory.stock)
	assert.Equal(t, attemptlog.PhaseFailed, env.log.lastPhase())
}

func TestRecoverUnpaidRefundsChargeThatLanded(t *testing.T) {
	env := newTestEnv()
	// The crash hit after the charge landed server-side but before the
	// PAID row was written; the log still says STOCK_RESERVED.
	usage := map[string]int{"coffee_beans": 2, "water": 2, "milk": 1}
	require.NoError(t, env.inventory.Reserve(context.Background(), "key-crash", usage))
	_, err := env.billing.Charge(context.Background(), "key-crash", 5000, 3000)
	require.NoError(t, err)
	registerBefore := env.billing.register - 3000

	env.log.unfinished = []*attemptlog.Entry{{
		AttemptKey: "key-crash",
		Phase:      attemptlog.PhaseStockReserved,
		Payload:    recoveryPayload,
		UpdatedAt:  time.Now().UTC(),
	}}

	require.NoError(t, env.svc.Recover(context.Background()))

	// Stock released and the hidden charge refunded; the customer's money
	// does not stay in the register without an order.
	assert.Equal(t, testStock(), env.inventory.stock)
	assert.Equal(t, 1, env.billing.refundCalls)
	assert.Equal(t, registerBefore, env.billing.register)
	assert.Equal(t, attemptlog.PhaseFailed, env.log.lastPhase())
}

func TestRecoverCommitFailureEscalatesAndStaysPending(t *testing.T) {
	env := newTestEnv()
	env.orders.commitErr = errors.New("db down")
	env.log.unfinished = []*attemptlog.Entry{{
		AttemptKey: "key-paid",
		Phase:      attemptlog.PhasePaid,
		Payload:    recoveryPayload,
		UpdatedAt:  time.Now().UTC(),
	}}

	require.NoError(t, env.svc.Recover(context.Background()))

	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, "order_commit_pending", env.notifier.events[0].Reason)
	// No terminal entry was written; the next sweep retries the commit.
	assert.Empty(t, env.log.entries)
}

func TestRecoverEscalatesMalformedPayload(t *testing.T) {
	env := newTestEnv()
	env.log.unfinished = []*attemptlog.Entry{{
		AttemptKey: "key-broken",
		Phase:      attemptlog.PhaseStockReserved,
		Payload:    "not json",
		UpdatedAt:  time.Now().UTC(),
	}}

	require.NoError(t, env.svc.Recover(context.Background()))

	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, "unrecoverable_attempt", env.notifier.events[0].Reason)
}
