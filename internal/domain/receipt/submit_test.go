package receipt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okuma/internal/core/apperror"
	"okuma/internal/core/clock"
	appctx "okuma/internal/core/context"
	"okuma/internal/core/prompt"
	"okuma/internal/domain/receipt"
	"okuma/internal/infrastructure/api"
	"okuma/internal/infrastructure/storage"
	"okuma/pkg/logger"
)

type submitFixture struct {
	ctx     context.Context
	kv      *storage.Memory
	backend *api.MockBackend
	store   *receipt.SessionStore
	pending *receipt.PendingQueue
	history *receipt.History
	sub     *receipt.Submitter
}

func newSubmitFixture(t *testing.T, confirm prompt.Confirmer) *submitFixture {
	t.Helper()

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:   42,
		Username: "depo1",
	})
	kv := storage.NewMemory()
	clk := clock.NewManual(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC))
	backend := &api.MockBackend{}
	log := logger.Nop()

	store := receipt.NewSessionStore(ctx, kv, clk, log)
	pending := receipt.NewPendingQueue(ctx, kv, store, log)
	history := receipt.NewHistory(ctx, kv, backend, store, log)
	sub := receipt.NewSubmitter(backend, store, pending, history, confirm, clk, log)

	return &submitFixture{
		ctx: ctx, kv: kv, backend: backend,
		store: store, pending: pending, history: history, sub: sub,
	}
}

func (f *submitFixture) queuePending(t *testing.T, fisno string) {
	t.Helper()
	require.NoError(t, f.store.Start(f.ctx, fisno, "", nil))
	require.NoError(t, f.store.AddItem(f.ctx, "869"+fisno, 1))
	require.NoError(t, f.pending.Save(f.ctx))
}

func TestNextReceiptNumberSkipsPending(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.LastReceiptNumberFunc = func(context.Context) (receipt.LastReceipt, error) {
		return receipt.LastReceipt{Fisno: "100", Tarih: "05.06.2024"}, nil
	}
	f.queuePending(t, "100")
	f.queuePending(t, "101")

	fisno, tarih := f.sub.NextReceiptNumber(f.ctx)

	assert.Equal(t, "102", fisno)
	assert.Equal(t, "2024-06-05", tarih)
}

func TestNextReceiptNumberServerOnly(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.LastReceiptNumberFunc = func(context.Context) (receipt.LastReceipt, error) {
		return receipt.LastReceipt{Fisno: "200", Tarih: "31.12.2023"}, nil
	}

	fisno, tarih := f.sub.NextReceiptNumber(f.ctx)

	assert.Equal(t, "201", fisno)
	assert.Equal(t, "2023-12-31", tarih)
}

func TestNextReceiptNumberServerFailure(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.LastReceiptNumberFunc = func(context.Context) (receipt.LastReceipt, error) {
		return receipt.LastReceipt{}, errors.New("boom")
	}

	fisno, tarih := f.sub.NextReceiptNumber(f.ctx)

	assert.Empty(t, fisno)
	assert.Equal(t, "2024-06-05", tarih, "date falls back to the clock's today")
}

func TestNextReceiptNumberUnparseableDate(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.LastReceiptNumberFunc = func(context.Context) (receipt.LastReceipt, error) {
		return receipt.LastReceipt{Fisno: "5", Tarih: "yok"}, nil
	}

	fisno, tarih := f.sub.NextReceiptNumber(f.ctx)

	assert.Equal(t, "6", fisno)
	assert.Equal(t, "2024-06-05", tarih)
}

func TestCheckFisnoFree(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.queuePending(t, "100")

	assert.True(t, apperror.IsCode(f.sub.CheckFisnoFree("100"), apperror.CodeDuplicateReceipt))
	assert.NoError(t, f.sub.CheckFisnoFree("101"))
}

func TestBuildPayloadIncludesDeletedLines(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	session := &receipt.Session{
		Fisno: "100",
		Tarih: "2024-06-05",
		Details: []receipt.Line{
			{Barcode: "8691234567890", Quantity: 2, Amount: decimal.NewFromInt(20)},
			{Barcode: "4001234567895", Quantity: 1, Amount: decimal.NewFromInt(7)},
			{Barcode: "5701234567899", Quantity: 4, Deleted: true, DetailID: 3},
		},
	}

	payload, err := f.sub.BuildPayload(f.ctx, session)
	require.NoError(t, err)

	assert.Equal(t, int64(100), payload.Fisno)
	require.Len(t, payload.Details, 3, "deleted lines travel with the payload")
	assert.Equal(t, int64(3), payload.TotalQuantity, "totals count active lines only")
	assert.True(t, payload.TotalAmount.Equal(decimal.NewFromInt(27)))
	assert.True(t, payload.IsNew)
	assert.Zero(t, payload.OkumaID)
	assert.NotEmpty(t, payload.IdempotencyKey)

	// Sequence numbers are backfilled 1-based over the full array.
	assert.Equal(t, int64(1), payload.Details[0].Sequence)
	assert.Equal(t, int64(3), payload.Details[2].Sequence)
}

func TestBuildPayloadEdit(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	session := &receipt.Session{
		OkumaID: 12,
		Fisno:   "100",
		Tarih:   "2024-06-05",
		Details: []receipt.Line{{Barcode: "8691234567890", Quantity: 1}},
	}

	payload, err := f.sub.BuildPayload(f.ctx, session)
	require.NoError(t, err)

	assert.Equal(t, int64(12), payload.OkumaID)
	assert.False(t, payload.IsNew)
}

func TestBuildPayloadNonNumericFisno(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	session := &receipt.Session{Fisno: "A-100", Tarih: "2024-06-05"}

	_, err := f.sub.BuildPayload(f.ctx, session)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestSubmitClearsLocalState(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.SaveReceiptFunc = func(_ context.Context, p *receipt.SavePayload) (*receipt.Session, error) {
		return &receipt.Session{OkumaID: 7, Fisno: "100", Tarih: p.Tarih, IsNew: false}, nil
	}

	require.NoError(t, f.store.Start(f.ctx, "100", "", nil))
	require.NoError(t, f.store.AddItem(f.ctx, "8691234567890", 2))

	record, err := f.sub.Submit(f.ctx, f.store.Current())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(7), record.OkumaID)

	assert.Nil(t, f.store.Current(), "submitted session is cleared")

	// The accepted record is available from the sent cache even when the
	// server is down.
	f.backend.HistoryDetailFunc = func(context.Context, int64) (*receipt.Session, error) {
		return nil, errors.New("offline")
	}
	cached, err := f.history.Detail(f.ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "100", cached.Fisno)
}

func TestSubmitPendingReceipt(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.SaveReceiptFunc = func(_ context.Context, p *receipt.SavePayload) (*receipt.Session, error) {
		return &receipt.Session{OkumaID: 8, Fisno: "100"}, nil
	}
	f.queuePending(t, "100")

	_, err := f.sub.Submit(f.ctx, f.pending.Get("100"))
	require.NoError(t, err)

	assert.Nil(t, f.pending.Get("100"), "submitted receipt leaves the queue")
}

func TestSubmitDeclined(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(false))
	called := false
	f.backend.SaveReceiptFunc = func(context.Context, *receipt.SavePayload) (*receipt.Session, error) {
		called = true
		return nil, nil
	}

	require.NoError(t, f.store.Start(f.ctx, "100", "", nil))
	require.NoError(t, f.store.AddItem(f.ctx, "8691234567890", 1))

	record, err := f.sub.Submit(f.ctx, f.store.Current())
	assert.NoError(t, err)
	assert.Nil(t, record)
	assert.False(t, called)
	assert.NotNil(t, f.store.Current(), "declined submit leaves the session alone")
}

func TestSubmitBackendFailureKeepsState(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.SaveReceiptFunc = func(context.Context, *receipt.SavePayload) (*receipt.Session, error) {
		return nil, errors.New("503")
	}

	require.NoError(t, f.store.Start(f.ctx, "100", "", nil))
	require.NoError(t, f.store.AddItem(f.ctx, "8691234567890", 1))

	_, err := f.sub.Submit(f.ctx, f.store.Current())
	assert.True(t, apperror.IsCode(err, apperror.CodeUpstream))
	assert.NotNil(t, f.store.Current(), "failed submit keeps the session for retry")
}

func TestEligibleForTransfer(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))

	matched := receipt.Line{Barcode: "8691234567890", Quantity: 1, Found: true}
	unmatched := receipt.Line{Barcode: "4001234567895", Quantity: 1}

	err := f.sub.EligibleForTransfer(nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = f.sub.EligibleForTransfer(&receipt.Session{
		Aktarildi: receipt.Transferred,
		CariCode:  "C1",
		Details:   []receipt.Line{matched},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeAlreadyTransferred))

	err = f.sub.EligibleForTransfer(&receipt.Session{
		Aktarildi: receipt.NotTransferred,
		Details:   []receipt.Line{unmatched},
	})
	require.True(t, apperror.IsCode(err, apperror.CodeTransferBlocked))
	assert.Contains(t, err.Error(), "stock catalog and the account")

	err = f.sub.EligibleForTransfer(&receipt.Session{
		Aktarildi: receipt.NotTransferred,
		CariCode:  "C1",
		Details:   []receipt.Line{matched, unmatched},
	})
	require.True(t, apperror.IsCode(err, apperror.CodeTransferBlocked))
	assert.Contains(t, err.Error(), "not matched in the stock catalog")
	assert.NotContains(t, err.Error(), "account")

	err = f.sub.EligibleForTransfer(&receipt.Session{
		Aktarildi: receipt.NotTransferred,
		Details:   []receipt.Line{matched},
	})
	require.True(t, apperror.IsCode(err, apperror.CodeTransferBlocked))
	assert.Contains(t, err.Error(), "Account (cari) is required")

	// A deleted unmatched line does not block.
	deletedUnmatched := unmatched
	deletedUnmatched.Deleted = true
	assert.NoError(t, f.sub.EligibleForTransfer(&receipt.Session{
		Aktarildi: receipt.NotTransferred,
		CariCode:  "C1",
		Details:   []receipt.Line{matched, deletedUnmatched},
	}))
}

func TestTransfer(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))
	f.backend.TransferReceiptFunc = func(_ context.Context, okumaID int64) (receipt.TransferResult, error) {
		assert.Equal(t, int64(7), okumaID)
		return receipt.TransferResult{MikroFisno: 555}, nil
	}

	session := &receipt.Session{
		OkumaID:   7,
		Fisno:     "100",
		Tarih:     "2024-06-05",
		CariCode:  "C1",
		Aktarildi: receipt.NotTransferred,
		Details:   []receipt.Line{{Barcode: "8691234567890", Quantity: 1, Found: true}},
	}

	updated, err := f.sub.Transfer(f.ctx, session)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, int64(555), updated.MikroFisno)
	assert.Equal(t, receipt.Transferred, updated.Aktarildi)
	assert.Equal(t, receipt.NotTransferred, session.Aktarildi, "input session untouched")
}

func TestTransferRequiresServerIdentity(t *testing.T) {
	f := newSubmitFixture(t, prompt.Auto(true))

	_, err := f.sub.Transfer(f.ctx, &receipt.Session{
		Fisno:     "100",
		CariCode:  "C1",
		Aktarildi: receipt.NotTransferred,
		Details:   []receipt.Line{{Barcode: "8691234567890", Quantity: 1, Found: true}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
