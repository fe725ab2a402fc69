package transfers

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/stock-bot/internal/domain/stock"
)

func fastRetry() Option { return WithReadRetry(2, time.Millisecond) }

func TestCreateTransfer_BodegaToVisto(t *testing.T) {
	gw := newFakeGateway()
	gw.states = []stock.PickingState{stock.StateDone, stock.StateAssigned, stock.StateDone}
	ctx := context.Background()

	avail, err := stock.NewAvailabilityChecker(gw).Check(ctx, "SKU-1", "Bodega", 2)
	require.NoError(t, err)
	assert.Equal(t, stock.Availability{Available: true, OnHand: 5}, avail)

	res, err := NewTransferOrchestrator(gw, fastRetry()).
		CreateTransfer(ctx, "Bodega", "Visto", []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 2}})
	require.NoError(t, err)

	require.Len(t, gw.created, 1)
	spec := gw.created[0]
	assert.Equal(t, int64(11), spec.PickingTypeID)
	assert.Equal(t, int64(8), spec.SourceLocationID)
	assert.Equal(t, int64(18), spec.DestLocationID)
	assert.Equal(t, []stock.MoveSpec{{ProductID: 40, ProductName: "Tornillo", UomID: 1, Quantity: 2}}, spec.Moves)
	assert.Equal(t, map[int64]float64{100: 2}, gw.doneWrites)

	assert.Equal(t, int64(901), res.PickingID)
	assert.Equal(t, "BOD/INT/00901", res.Reference)
	assert.Equal(t, "Bodega ▶ Visto\n[SKU-1] Tornillo: 2", res.Message())

	// порядок изменяющих шагов фиксирован
	assert.Equal(t, []string{
		"CreatePicking", "ConfirmPicking", "AssignPicking",
		"WriteMoveLineDoneQuantity", "ValidatePicking",
	}, gw.mutations())

	vr := NewVerifier(gw, clockwork.NewFakeClock()).Verify(ctx, res.PickingID, 5, 0)
	assert.True(t, vr.Success)
	assert.Equal(t, 2, vr.Attempts)
	assert.Equal(t, stock.StateDone, vr.State)
	assert.Contains(t, vr.Message, "BOD/INT/00901")
	assert.NoError(t, vr.Err())
}

func TestCreateTransfer_ReportsEveryShortLine(t *testing.T) {
	gw := newFakeGateway()
	gw.addProduct("A", 1, 4)
	gw.addProduct("B", 2, 5)
	gw.addProduct("C", 3, 0)

	_, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", "Visto", []stock.TransferLine{
		{ProductCode: "A", Quantity: 10},
		{ProductCode: "B", Quantity: 5},
		{ProductCode: "C", Quantity: 1},
	})

	var short *stock.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "Bodega", short.Warehouse)
	assert.Equal(t, []stock.Shortfall{
		{Code: "A", Requested: 10, Available: 4},
		{Code: "C", Requested: 1, Available: 0},
	}, short.Lines)
	assert.Empty(t, gw.mutations())
}

func TestCreateTransfer_SameWarehouseRejectedBeforeAnyCall(t *testing.T) {
	gw := newFakeGateway()
	_, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", " bodega ",
		[]stock.TransferLine{{ProductCode: "SKU-1", Quantity: 1}})

	assert.Equal(t, stock.KindSameWarehouse, stock.KindOf(err))
	assert.Empty(t, gw.Calls())
}

func TestCreateTransfer_ResolutionFailures(t *testing.T) {
	line := []stock.TransferLine{{ProductCode: "SKU-1", Quantity: 1}}

	t.Run("unknown origin", func(t *testing.T) {
		gw := newFakeGateway()
		_, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Atlantis", "Visto", line)
		var nf *stock.WarehouseNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Atlantis", nf.Name)
		assert.Empty(t, gw.mutations())
	})

	t.Run("unknown product", func(t *testing.T) {
		gw := newFakeGateway()
		_, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", "Visto",
			[]stock.TransferLine{{ProductCode: "SKU-1", Quantity: 1}, {ProductCode: "GHOST", Quantity: 1}})
		var nf *stock.ProductNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "GHOST", nf.Code)
		assert.Empty(t, gw.mutations())
	})

	t.Run("no internal picking type", func(t *testing.T) {
		gw := newFakeGateway()
		delete(gw.pickingTypes, "1/internal")
		_, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", "Visto", line)
		var npt *stock.NoPickingTypeError
		require.ErrorAs(t, err, &npt)
		assert.Equal(t, stock.KindInternal, npt.Type)
		assert.Empty(t, gw.mutations())
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		gw := newFakeGateway()
		_, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", "Visto",
			[]stock.TransferLine{{ProductCode: "SKU-1", Quantity: 0}})
		assert.Equal(t, stock.KindInvalidLineInput, stock.KindOf(err))
		assert.Empty(t, gw.Calls())
	})
}

func TestCreateTransfer_MergesRepeatedCodes(t *testing.T) {
	gw := newFakeGateway()
	res, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", "Visto", []stock.TransferLine{
		{ProductCode: "SKU-1", Quantity: 2},
		{ProductCode: " SKU-1", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, gw.created[0].Moves, 1)
	assert.Equal(t, 5.0, gw.created[0].Moves[0].Quantity)
	assert.Equal(t, 5, res.Lines[0].Quantity)
}

func TestCreateTransfer_ZeroReservationIsWrittenAsIs(t *testing.T) {
	gw := newFakeGateway()
	gw.reserved = map[int64]float64{40: 0}

	_, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", "Visto",
		[]stock.TransferLine{{ProductCode: "SKU-1", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{100: 0}, gw.doneWrites)
	assert.Equal(t, 1, gw.count("ValidatePicking"))
}

func TestCreateTransfer_RetriesReadsButNotMutations(t *testing.T) {
	gw := newFakeGateway()
	gw.failOnce["FindWarehouseByName"] = failure("findWarehouseByName")
	gw.failOnce["CreatePicking"] = failure("createPicking")

	_, err := NewTransferOrchestrator(gw, fastRetry()).CreateTransfer(context.Background(), "Bodega", "Visto",
		[]stock.TransferLine{{ProductCode: "SKU-1", Quantity: 2}})

	assert.Equal(t, stock.KindRemoteCallFailed, stock.KindOf(err))
	assert.Equal(t, 3, gw.count("FindWarehouseByName"))
	assert.Equal(t, 1, gw.count("CreatePicking"))
	assert.Equal(t, []string{"CreatePicking"}, gw.mutations())
}

func TestCreateTransfer_ReferenceReadFailureIsNotFatal(t *testing.T) {
	gw := newFakeGateway()
	gw.fail["ReadPicking"] = failure("readPicking")

	res, err := NewTransferOrchestrator(gw, fastRetry()).CreateTransfer(context.Background(), "Bodega", "Visto",
		[]stock.TransferLine{{ProductCode: "SKU-1", Quantity: 1}})
	require.NoError(t, err)
	assert.Empty(t, res.Reference)
	assert.Equal(t, int64(901), res.PickingID)
}

func TestCreateTransfer_FailureAfterCreateKeepsPickingID(t *testing.T) {
	for _, step := range []string{"ConfirmPicking", "AssignPicking", "WriteMoveLineDoneQuantity", "ValidatePicking"} {
		t.Run(step, func(t *testing.T) {
			gw := newFakeGateway()
			gw.fail[step] = &stock.RemoteCallError{Operation: step, Detail: "timeout", Err: context.DeadlineExceeded}

			res, err := NewTransferOrchestrator(gw).CreateTransfer(context.Background(), "Bodega", "Visto",
				[]stock.TransferLine{{ProductCode: "SKU-1", Quantity: 2}})

			assert.Equal(t, stock.KindRemoteCallFailed, stock.KindOf(err))
			require.NotNil(t, res)
			assert.Equal(t, int64(901), res.PickingID)
			assert.Equal(t, []Line{{Code: "SKU-1", Name: "Tornillo", Quantity: 2}}, res.Lines)
			assert.Equal(t, 1, gw.count("CreatePicking"))
		})
	}
}
