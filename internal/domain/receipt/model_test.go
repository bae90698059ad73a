package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okuma/internal/core/apperror"
	appctx "okuma/internal/core/context"
)

func testCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:   42,
		Username: "depo1",
	})
}

func TestNewSessionAttribution(t *testing.T) {
	s := NewSession(testCtx(), "100", "2024-06-05", &Cari{Code: "C1", Name: "Acme"})

	assert.Equal(t, int64(42), s.UserID)
	assert.Equal(t, "depo1", s.Username)
	assert.Equal(t, NotTransferred, s.Aktarildi)
	assert.True(t, s.IsNew)
	assert.Equal(t, "C1", s.CariCode)
	assert.Empty(t, s.Details)
}

func TestAddLineMergesActiveBarcode(t *testing.T) {
	s := NewSession(testCtx(), "100", "2024-06-05", nil)
	t0 := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	s.AddLine("8691234567890", 1, t0)
	s.AddLine("8691234567890", 2, t1)

	require.Len(t, s.Details, 1)
	assert.Equal(t, int64(3), s.Details[0].Quantity)
	assert.Equal(t, t1, s.Details[0].Timestamp)
}

func TestAddLineAfterSoftDeleteAppendsFresh(t *testing.T) {
	s := NewSession(testCtx(), "100", "2024-06-05", nil)
	s.OkumaID = 7
	now := time.Now()

	s.AddLine("8691234567890", 2, now)
	require.True(t, s.RemoveLine("8691234567890"))
	s.AddLine("8691234567890", 1, now)

	// The deleted line stays for audit; the new scan starts at 1.
	require.Len(t, s.Details, 2)
	assert.True(t, s.Details[0].Deleted)
	assert.False(t, s.Details[1].Deleted)
	assert.Equal(t, int64(1), s.Details[1].Quantity)
}

func TestRemoveLineHardDeleteWithoutServerIdentity(t *testing.T) {
	s := NewSession(testCtx(), "100", "2024-06-05", nil)
	now := time.Now()
	s.AddLine("111222333", 1, now)
	s.AddLine("444555666", 1, now)

	require.True(t, s.RemoveLine("111222333"))
	require.Len(t, s.Details, 1)
	assert.Equal(t, "444555666", s.Details[0].Barcode)

	assert.False(t, s.RemoveLine("111222333"))
}

func TestRemoveLineSoftDeleteWithServerDetailID(t *testing.T) {
	s := NewSession(testCtx(), "100", "2024-06-05", nil)
	s.Details = []Line{{DetailID: 9, Barcode: "111222333", Quantity: 2}}

	require.True(t, s.RemoveLine("111222333"))
	require.Len(t, s.Details, 1)
	assert.True(t, s.Details[0].Deleted)
	assert.Nil(t, s.FindLine("111222333"))
}

func TestRecalculateTotalsSkipsDeleted(t *testing.T) {
	s := NewSession(testCtx(), "100", "2024-06-05", nil)
	s.Details = []Line{
		{Barcode: "a11", Quantity: 2, Amount: decimal.NewFromInt(10)},
		{Barcode: "b22", Quantity: 3, Amount: decimal.NewFromInt(5)},
		{Barcode: "c33", Quantity: 7, Amount: decimal.NewFromInt(100), Deleted: true},
	}

	s.RecalculateTotals()

	assert.Equal(t, int64(5), s.TotalQuantity)
	assert.True(t, s.TotalAmount.Equal(decimal.NewFromInt(15)),
		"got %s", s.TotalAmount)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSession(testCtx(), "100", "2024-06-05", nil)
	s.AddLine("111222333", 1, time.Now())

	clone := s.Clone()
	clone.Details[0].Quantity = 99
	clone.Fisno = "999"

	assert.Equal(t, int64(1), s.Details[0].Quantity)
	assert.Equal(t, "100", s.Fisno)
}

func TestIsEditPrecedence(t *testing.T) {
	assert.False(t, (&Session{}).IsEdit())
	assert.True(t, (&Session{OkumaID: 5}).IsEdit())
	assert.True(t, (&Session{MikroFisno: 12}).IsEdit())
	assert.True(t, (&Session{MikroFisseri: "A"}).IsEdit())

	assert.False(t, (&Session{MikroFisno: 12}).HasServerIdentity())
	assert.True(t, (&Session{OkumaID: 5}).HasServerIdentity())
}

func TestValidate(t *testing.T) {
	ctx := testCtx()

	s := NewSession(ctx, "", "2024-06-05", nil)
	assert.True(t, apperror.IsCode(s.Validate(ctx), apperror.CodeValidation))

	s = NewSession(ctx, "100", "", nil)
	assert.True(t, apperror.IsCode(s.Validate(ctx), apperror.CodeValidation))

	s = NewSession(ctx, "100", "2024-06-05", nil)
	s.Details = []Line{
		{Barcode: "111222333", Quantity: 1},
		{Barcode: "111222333", Quantity: 2},
	}
	err := s.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	// A deleted duplicate does not trip the check.
	s.Details[1].Deleted = true
	assert.NoError(t, s.Validate(ctx))

	s.Details[0].Quantity = 0
	assert.Error(t, s.Validate(ctx))
}
