package api

import (
	"context"

	"okuma/internal/domain/receipt"
)

// MockBackend is a test implementation of receipt.Backend.
// Unset funcs return empty values.
type MockBackend struct {
	LastReceiptNumberFunc func(ctx context.Context) (receipt.LastReceipt, error)
	SaveReceiptFunc       func(ctx context.Context, payload *receipt.SavePayload) (*receipt.Session, error)
	TransferReceiptFunc   func(ctx context.Context, okumaID int64) (receipt.TransferResult, error)
	HistoryFunc           func(ctx context.Context, page, pageSize int) ([]receipt.Summary, error)
	HistoryDetailFunc     func(ctx context.Context, okumaID int64) (*receipt.Session, error)
}

// LastReceiptNumber implements receipt.Backend.
func (m *MockBackend) LastReceiptNumber(ctx context.Context) (receipt.LastReceipt, error) {
	if m.LastReceiptNumberFunc != nil {
		return m.LastReceiptNumberFunc(ctx)
	}
	return receipt.LastReceipt{}, nil
}

// SaveReceipt implements receipt.Backend.
func (m *MockBackend) SaveReceipt(ctx context.Context, payload *receipt.SavePayload) (*receipt.Session, error) {
	if m.SaveReceiptFunc != nil {
		return m.SaveReceiptFunc(ctx, payload)
	}
	return &receipt.Session{}, nil
}

// TransferReceipt implements receipt.Backend.
func (m *MockBackend) TransferReceipt(ctx context.Context, okumaID int64) (receipt.TransferResult, error) {
	if m.TransferReceiptFunc != nil {
		return m.TransferReceiptFunc(ctx, okumaID)
	}
	return receipt.TransferResult{}, nil
}

// History implements receipt.Backend.
func (m *MockBackend) History(ctx context.Context, page, pageSize int) ([]receipt.Summary, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, page, pageSize)
	}
	return nil, nil
}

// HistoryDetail implements receipt.Backend.
func (m *MockBackend) HistoryDetail(ctx context.Context, okumaID int64) (*receipt.Session, error) {
	if m.HistoryDetailFunc != nil {
		return m.HistoryDetailFunc(ctx, okumaID)
	}
	return &receipt.Session{}, nil
}

// Ensure compile-time interface compliance.
var _ receipt.Backend = (*MockBackend)(nil)
