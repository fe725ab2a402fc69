package operations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/stock-bot/internal/domain/journal"
	"github.com/Spok95/stock-bot/internal/domain/stock"
	"github.com/Spok95/stock-bot/internal/domain/transfers"
)

type stubTransfers struct {
	res *transfers.TransferResult
	err error
}

func (s stubTransfers) CreateTransfer(context.Context, string, string, []stock.TransferLine) (*transfers.TransferResult, error) {
	return s.res, s.err
}

type stubEntries struct {
	res *transfers.EntryResult
	err error
}

func (s stubEntries) CreateEntry(context.Context, string, []stock.EntryLine) (*transfers.EntryResult, error) {
	return s.res, s.err
}

type stubVerifier struct {
	res      transfers.VerifyResult
	attempts int
	delay    time.Duration
}

func (s *stubVerifier) Verify(_ context.Context, id int64, attempts int, delay time.Duration) transfers.VerifyResult {
	s.attempts, s.delay = attempts, delay
	r := s.res
	r.PickingID = id
	return r
}

type memJournal struct {
	mu      sync.Mutex
	entries []*journal.Entry
	err     error
}

func (j *memJournal) Insert(_ context.Context, e *journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return j.err
}

type recNotifier struct {
	mu    sync.Mutex
	sent  []string
	group string
	err   error
}

func (n *recNotifier) Notify(_ context.Context, group, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.group = group
	n.sent = append(n.sent, message)
	return n.err
}

type recMetrics struct {
	mu         sync.Mutex
	operations []string
	notified   []error
	verified   []int
}

func (m *recMetrics) ObserveOperation(kind, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, kind+"/"+status)
}

func (m *recMetrics) ObserveNotification(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, err)
}

func (m *recMetrics) ObserveVerify(attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified = append(m.verified, attempts)
}

func transferResult() *transfers.TransferResult {
	return &transfers.TransferResult{
		PickingID:   901,
		Reference:   "BOD/INT/00901",
		Origin:      "Bodega",
		Destination: "Visto",
		Lines:       []transfers.Line{{Code: "SKU-1", Name: "Tornillo", Quantity: 3}},
	}
}

func TestTransfer_Done(t *testing.T) {
	j := &memJournal{}
	m := &recMetrics{}
	v := &stubVerifier{res: transfers.VerifyResult{Success: true, State: stock.StateDone, Attempts: 2}}
	s := New(Deps{Transfers: stubTransfers{res: transferResult()}, Verifier: v, Journal: j, Metrics: m},
		Config{VerifyAttempts: 5, VerifyDelay: 2 * time.Second, Group: "ENTRADAS Y SALIDAS"})

	out := s.Transfer(context.Background(), "tg:7", "Bodega", "Visto", []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 3}})

	require.NoError(t, out.Err)
	assert.Equal(t, journal.StatusDone, out.Status)
	assert.Equal(t, stock.StateDone, out.State)
	assert.Equal(t, "Transferencia creada y validada con éxito. Referencia: BOD/INT/00901", out.Message)
	assert.Equal(t, "Bodega ▶ Visto\n[SKU-1] Tornillo: 3", out.Notification)
	assert.Equal(t, 5, v.attempts)
	assert.Equal(t, 2*time.Second, v.delay)

	require.Len(t, j.entries, 1)
	e := j.entries[0]
	assert.Equal(t, out.OperationID, e.ID)
	assert.Equal(t, journal.KindTransfer, e.Kind)
	assert.Equal(t, "tg:7", e.Actor)
	assert.Equal(t, "Bodega", e.Origin)
	assert.Equal(t, "Visto", e.Destination)
	assert.Equal(t, int64(901), e.PickingID)
	assert.Equal(t, []journal.Line{{Code: "SKU-1", Name: "Tornillo", Quantity: 3}}, e.Lines)

	assert.Equal(t, []string{"transfer/done"}, m.operations)
	assert.Equal(t, []int{2}, m.verified)
}

func TestTransfer_PendingWhenNotDone(t *testing.T) {
	j := &memJournal{}
	v := &stubVerifier{res: transfers.VerifyResult{State: stock.StateAssigned, Reference: "BOD/INT/00901", Attempts: 5,
		Message: "La transferencia BOD/INT/00901 quedó en estado 'assigned'."}}
	s := New(Deps{Transfers: stubTransfers{res: transferResult()}, Verifier: v, Journal: j}, Config{VerifyAttempts: 5})

	out := s.Transfer(context.Background(), "tg:7", "Bodega", "Visto", []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 3}})

	assert.Equal(t, journal.StatusPending, out.Status)
	assert.True(t, stock.IsWarning(out.Err))
	assert.Contains(t, out.Message, "Referencia: BOD/INT/00901\n⚠️ La transferencia")
	assert.NotEmpty(t, out.Notification)
	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.StatusPending, j.entries[0].Status)
	assert.Equal(t, "assigned", j.entries[0].State)
}

func TestTransfer_FailureIsJournaledWithInput(t *testing.T) {
	j := &memJournal{}
	m := &recMetrics{}
	v := &stubVerifier{}
	s := New(Deps{Transfers: stubTransfers{err: &stock.SameWarehouseError{Name: "Bodega"}}, Verifier: v, Journal: j, Metrics: m}, Config{})

	out := s.Transfer(context.Background(), "api", "Bodega", "bodega", []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 2}})

	assert.Equal(t, journal.StatusFailed, out.Status)
	assert.Equal(t, stock.KindSameWarehouse, stock.KindOf(out.Err))
	assert.Equal(t, "Error en la transferencia: El almacén de origen y destino no pueden ser el mismo ('Bodega').", out.Message)
	assert.Empty(t, out.Notification)
	assert.Zero(t, v.attempts, "verification must not run after a failure")

	require.Len(t, j.entries, 1)
	assert.Equal(t, []journal.Line{{Code: "SKU-1", Quantity: 2}}, j.entries[0].Lines)
	assert.Zero(t, j.entries[0].PickingID)
	assert.Equal(t, []string{"transfer/failed"}, m.operations)
}

func TestEntry_Done(t *testing.T) {
	j := &memJournal{}
	res := &transfers.EntryResult{
		PickingID: 77,
		Warehouse: "Visto",
		Lines:     []transfers.Line{{Code: "SKU-1", Name: "Tornillo", Quantity: 10, UnitCost: decimal.NewFromInt(200), NewCost: decimal.NewFromInt(150)}},
	}
	v := &stubVerifier{res: transfers.VerifyResult{Success: true, State: stock.StateDone, Reference: "VIS/IN/00077"}}
	s := New(Deps{Entries: stubEntries{res: res}, Verifier: v, Journal: j}, Config{VerifyAttempts: 3})

	out := s.Entry(context.Background(), "tg:9", "Visto", []stock.EntryLine{{ProductCode: "SKU-1", Quantity: 10, UnitCost: decimal.NewFromInt(200)}})

	require.NoError(t, out.Err)
	assert.Equal(t, journal.StatusDone, out.Status)
	assert.Equal(t, "VIS/IN/00077", out.Reference)
	assert.Equal(t, "Entrada realizada correctamente ✅. Referencia: VIS/IN/00077", out.Message)
	assert.Equal(t, "Entrada a *Visto*\n[SKU-1] Tornillo: 10", out.Notification)

	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.KindEntry, j.entries[0].Kind)
	assert.Empty(t, j.entries[0].Origin)
	assert.Equal(t, "200", j.entries[0].Lines[0].UnitCost)
}

func TestEntry_Failure(t *testing.T) {
	s := New(Deps{Entries: stubEntries{err: &stock.NoDefaultSourceLocationError{}}, Verifier: &stubVerifier{}}, Config{})

	out := s.Entry(context.Background(), "tg:9", "Visto", []stock.EntryLine{{ProductCode: "SKU-1", Quantity: 1, UnitCost: decimal.NewFromInt(5)}})

	assert.Equal(t, journal.StatusFailed, out.Status)
	assert.Equal(t, "Error en la entrada: No hay una ubicación de proveedor configurada en Odoo.", out.Message)
}

func TestJournalErrorDoesNotFailOperation(t *testing.T) {
	j := &memJournal{err: errors.New("db down")}
	v := &stubVerifier{res: transfers.VerifyResult{Success: true, State: stock.StateDone}}
	s := New(Deps{Transfers: stubTransfers{res: transferResult()}, Verifier: v, Journal: j}, Config{})

	out := s.Transfer(context.Background(), "tg:7", "Bodega", "Visto", []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 3}})

	assert.Equal(t, journal.StatusDone, out.Status)
	assert.NoError(t, out.Err)
}

func TestNotifyAsync(t *testing.T) {
	n := &recNotifier{}
	m := &recMetrics{}
	s := New(Deps{Notifier: n, Metrics: m}, Config{Group: "ENTRADAS Y SALIDAS", NotifyDriver: "webhook"})

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan error, 1)
	s.NotifyAsync(ctx, "Bodega ▶ Visto", func(err error) { got <- err })
	cancel()
	s.Wait()

	require.NoError(t, <-got)
	assert.Equal(t, []string{"Bodega ▶ Visto"}, n.sent)
	assert.Equal(t, "ENTRADAS Y SALIDAS", n.group)
	assert.Equal(t, []error{nil}, m.notified)
}

func TestNotifyAsync_ErrorReachesCallback(t *testing.T) {
	n := &recNotifier{err: errors.New("status 500")}
	s := New(Deps{Notifier: n}, Config{Group: "g"})

	var got error
	s.NotifyAsync(context.Background(), "msg", func(err error) { got = err })
	s.Wait()

	assert.EqualError(t, got, "status 500")
}

func TestNotifyAsync_EmptyMessageSkipped(t *testing.T) {
	n := &recNotifier{}
	s := New(Deps{Notifier: n}, Config{})

	s.NotifyAsync(context.Background(), "", nil)
	s.Wait()

	assert.Empty(t, n.sent)
}

type stubCatalog struct {
	limit int
}

func (c *stubCatalog) ListWarehouses(context.Context) ([]stock.Warehouse, error) {
	return []stock.Warehouse{{ID: 1, Name: "Bodega"}}, nil
}

func (c *stubCatalog) ListProducts(context.Context) ([]stock.Product, error) {
	return []stock.Product{{ID: 40, DefaultCode: "SKU-1"}}, nil
}

func (c *stubCatalog) ListRecentTransfers(_ context.Context, limit int) ([]stock.TransferSummary, error) {
	c.limit = limit
	return nil, nil
}

func TestRecentTransfers_UsesDefaultLimit(t *testing.T) {
	c := &stubCatalog{}
	s := New(Deps{Catalog: c}, Config{})

	_, err := s.RecentTransfers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, c.limit)

	whs, err := s.Warehouses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bodega", whs[0].Name)
}

func validateTimeout() error {
	return &stock.RemoteCallError{Operation: "validatePicking", Detail: "timeout", Err: context.DeadlineExceeded}
}

func TestTransfer_ValidateTimeoutButPickingDone(t *testing.T) {
	j := &memJournal{}
	m := &recMetrics{}
	partial := transferResult()
	partial.Reference = ""
	v := &stubVerifier{res: transfers.VerifyResult{Success: true, State: stock.StateDone, Reference: "BOD/INT/00901", Attempts: 1}}
	s := New(Deps{Transfers: stubTransfers{res: partial, err: validateTimeout()}, Verifier: v, Journal: j, Metrics: m}, Config{VerifyAttempts: 3})

	out := s.Transfer(context.Background(), "tg:7", "Bodega", "Visto", []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 3}})

	require.NoError(t, out.Err)
	assert.Equal(t, journal.StatusDone, out.Status)
	assert.Equal(t, "Transferencia creada y validada con éxito. Referencia: BOD/INT/00901", out.Message)
	assert.Equal(t, "Bodega ▶ Visto\n[SKU-1] Tornillo: 3", out.Notification)
	assert.Equal(t, 3, v.attempts)

	require.Len(t, j.entries, 1)
	assert.Equal(t, int64(901), j.entries[0].PickingID)
	assert.Equal(t, journal.StatusDone, j.entries[0].Status)
	assert.Equal(t, []string{"transfer/done"}, m.operations)
}

func TestTransfer_ValidateTimeoutLeavesPendingPicking(t *testing.T) {
	j := &memJournal{}
	partial := transferResult()
	partial.Reference = ""
	v := &stubVerifier{res: transfers.VerifyResult{State: stock.StateAssigned, Reference: "BOD/INT/00901", Attempts: 3,
		Message: "La transferencia BOD/INT/00901 quedó en estado 'assigned'."}}
	s := New(Deps{Transfers: stubTransfers{res: partial, err: validateTimeout()}, Verifier: v, Journal: j}, Config{VerifyAttempts: 3})

	out := s.Transfer(context.Background(), "tg:7", "Bodega", "Visto", []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 3}})

	assert.Equal(t, journal.StatusPending, out.Status)
	assert.True(t, stock.IsWarning(out.Err))
	assert.Equal(t, int64(901), out.PickingID)
	assert.Empty(t, out.Notification)
	assert.Contains(t, out.Message, "Error en la transferencia: Error de comunicación con Odoo (validatePicking): timeout")
	assert.Contains(t, out.Message, "No repita la operación: el documento BOD/INT/00901 ya existe en Odoo.")

	require.Len(t, j.entries, 1)
	assert.Equal(t, int64(901), j.entries[0].PickingID)
	assert.Equal(t, journal.StatusPending, j.entries[0].Status)
	assert.Equal(t, "assigned", j.entries[0].State)
	assert.Equal(t, []journal.Line{{Code: "SKU-1", Name: "Tornillo", Quantity: 3}}, j.entries[0].Lines)
}

func TestEntry_ValidateTimeoutLeavesPendingPicking(t *testing.T) {
	j := &memJournal{}
	partial := &transfers.EntryResult{
		PickingID: 77,
		Warehouse: "Visto",
		Lines:     []transfers.Line{{Code: "SKU-1", Name: "Tornillo", Quantity: 1, UnitCost: decimal.NewFromInt(5)}},
	}
	v := &stubVerifier{res: transfers.VerifyResult{State: stock.StateAssigned, Attempts: 1}}
	s := New(Deps{Entries: stubEntries{res: partial, err: validateTimeout()}, Verifier: v, Journal: j}, Config{})

	out := s.Entry(context.Background(), "tg:9", "Visto", []stock.EntryLine{{ProductCode: "SKU-1", Quantity: 1, UnitCost: decimal.NewFromInt(5)}})

	assert.Equal(t, journal.StatusPending, out.Status)
	assert.Contains(t, out.Message, "Error en la entrada:")
	assert.Contains(t, out.Message, "el documento ID 77 ya existe en Odoo")
	require.Len(t, j.entries, 1)
	assert.Equal(t, int64(77), j.entries[0].PickingID)
	assert.Equal(t, journal.StatusPending, j.entries[0].Status)
}
