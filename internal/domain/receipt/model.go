// Package receipt implements the goods-receiving receipt (fiş) session:
// the in-progress scan session, the pending queue, the sent-history cache
// and the reconciliation/submission logic against the backend.
package receipt

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"okuma/internal/core/apperror"
	appctx "okuma/internal/core/context"
)

func init() {
	// The backend and the persisted JSON both carry amounts as bare
	// numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Money is a monetary value with full precision.
type Money = decimal.Decimal

// TransferStatus reports whether a receipt has been pushed onward into the
// downstream ERP (mikro). The backend represents it as a two-value code.
type TransferStatus string

const (
	NotTransferred TransferStatus = "0"
	Transferred    TransferStatus = "1"
)

// MinBarcodeLength is the shortest barcode the session accepts. Shorter
// emissions from the decoder are rejected here, not in the decoder.
const MinBarcodeLength = 3

// Cari identifies the counterparty of a receipt: a selected account code,
// a freeform manually-entered name, or both.
type Cari struct {
	Code string `json:"cari_kodu"`
	Name string `json:"cari_isim"`
}

// Line is one barcode + quantity entry within a receipt.
// Wire names are the backend's field names.
type Line struct {
	DetailID int64  `json:"okumadetay_id"`
	OkumaID  int64  `json:"okuma_id"`
	Sequence int64  `json:"sirano"`
	Barcode  string `json:"barkod"`
	StokCode string `json:"stok_kodu"`
	StokName string `json:"stok_adi"`
	Quantity int64  `json:"miktar"`
	Price    Money  `json:"fiyat"`
	Amount   Money  `json:"tutar"`

	// Found reports whether the barcode was matched in the stock catalog.
	Found       bool `json:"is_bulundu"`
	Transferred bool `json:"is_aktarildi"`
	IsNew       bool `json:"is_new"`

	// Deleted marks a soft-deleted line. Once a session has been synced
	// with the server, removed lines stay in the array for audit.
	Deleted bool `json:"is_deleted"`

	// Timestamp is the last time this line was touched.
	Timestamp time.Time `json:"timestamp"`

	// Edited is set once the quantity was manually overridden.
	Edited bool `json:"is_edited,omitempty"`
}

// Session is a single receipt being built on this terminal.
//
// The session store owns the one "current" session; the pending queue and
// the sent cache own independent copies (see Clone).
type Session struct {
	OkumaID int64  `json:"okuma_id"`
	Fisno   string `json:"fisno"`

	// Tarih is the accounting date, ISO calendar date (YYYY-MM-DD).
	Tarih string `json:"tarih"`

	CariCode string `json:"cari_kodu"`
	CariName string `json:"cari_isim"`

	UserID   int64  `json:"user_id"`
	Username string `json:"username"`

	Aktarildi     TransferStatus `json:"is_aktarildi"`
	IsNew         bool           `json:"is_new"`
	TotalQuantity int64          `json:"toplam_adet"`
	TotalAmount   Money          `json:"toplam_tutar"`

	// Identifiers assigned by the downstream ERP after transfer.
	MikroFisno   int64  `json:"mikro_fisno"`
	MikroFisseri string `json:"mikro_fisseri"`

	// Pending is true once the session sits in the pending queue.
	Pending bool `json:"is_pending"`

	Details []Line `json:"details"`
}

// NewSession creates a fresh empty session attributed to the operator
// from context.
func NewSession(ctx context.Context, fisno, tarih string, cari *Cari) *Session {
	s := &Session{
		Fisno:       fisno,
		Tarih:       tarih,
		UserID:      appctx.GetUserID(ctx),
		Username:    appctx.GetUsername(ctx),
		Aktarildi:   NotTransferred,
		IsNew:       true,
		TotalAmount: decimal.Zero,
		Details:     make([]Line, 0),
	}
	if cari != nil {
		s.CariCode = cari.Code
		s.CariName = cari.Name
	}
	return s
}

// HasServerIdentity reports whether the server has ever accepted this
// session. okuma_id is canonical; the mikro identifiers only exist after
// a transfer, which implies a server round-trip anyway.
func (s *Session) HasServerIdentity() bool {
	return s.OkumaID > 0
}

// IsEdit reports whether a submission of this session updates an existing
// server record rather than creating a new one. Precedence: okuma_id,
// then the downstream ERP identifiers (they can only be set server-side).
func (s *Session) IsEdit() bool {
	return s.OkumaID > 0 || s.MikroFisno > 0 || s.MikroFisseri != ""
}

// FindLine returns the active (non-deleted) line for the barcode, or nil.
func (s *Session) FindLine(barkod string) *Line {
	for i := range s.Details {
		if s.Details[i].Barcode == barkod && !s.Details[i].Deleted {
			return &s.Details[i]
		}
	}
	return nil
}

// AddLine merges a scan into the session: an existing active line with the
// same barcode has its quantity incremented and timestamp refreshed, a new
// barcode appends a line. Never duplicates an active barcode.
func (s *Session) AddLine(barkod string, miktar int64, now time.Time) {
	if line := s.FindLine(barkod); line != nil {
		line.Quantity += miktar
		line.Timestamp = now
		return
	}
	s.Details = append(s.Details, Line{
		Barcode:   barkod,
		Quantity:  miktar,
		Price:     decimal.Zero,
		Amount:    decimal.Zero,
		IsNew:     true,
		Timestamp: now,
	})
}

// SetQuantity overrides the quantity of an active line and marks it edited.
// Reports whether the barcode was present.
func (s *Session) SetQuantity(barkod string, miktar int64, now time.Time) bool {
	line := s.FindLine(barkod)
	if line == nil {
		return false
	}
	line.Quantity = miktar
	line.Edited = true
	line.Timestamp = now
	return true
}

// RemoveLine removes the active line for the barcode. Once the session has
// been synced with the server (or the line itself carries a server detail
// id) the line is soft-deleted and retained for audit; otherwise it is
// removed from the array. Reports whether the barcode was present.
func (s *Session) RemoveLine(barkod string) bool {
	for i := range s.Details {
		line := &s.Details[i]
		if line.Barcode != barkod || line.Deleted {
			continue
		}
		if s.HasServerIdentity() || line.DetailID > 0 {
			line.Deleted = true
		} else {
			s.Details = append(s.Details[:i], s.Details[i+1:]...)
		}
		return true
	}
	return false
}

// ActiveLines returns the non-deleted lines in insertion order.
func (s *Session) ActiveLines() []Line {
	active := make([]Line, 0, len(s.Details))
	for _, line := range s.Details {
		if !line.Deleted {
			active = append(active, line)
		}
	}
	return active
}

// RecalculateTotals updates toplam_adet and toplam_tutar from active lines.
// Deleted lines never count; stale cached totals are never trusted.
func (s *Session) RecalculateTotals() {
	s.TotalQuantity = 0
	s.TotalAmount = decimal.Zero
	for _, line := range s.Details {
		if line.Deleted {
			continue
		}
		s.TotalQuantity += line.Quantity
		s.TotalAmount = s.TotalAmount.Add(line.Amount)
	}
}

// Clone returns a deep copy. The pending queue and the sent cache store
// copies so later mutation of the current session cannot leak into them.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Details = make([]Line, len(s.Details))
	copy(clone.Details, s.Details)
	return &clone
}

// Validate checks session invariants before queueing or submission.
func (s *Session) Validate(ctx context.Context) error {
	if s.Fisno == "" {
		return apperror.NewValidation("receipt number is required").
			WithDetail("field", "fisno")
	}

	if s.Tarih == "" {
		return apperror.NewValidation("date is required").
			WithDetail("field", "tarih")
	}

	seen := make(map[string]bool, len(s.Details))
	for i, line := range s.Details {
		if line.Deleted {
			continue
		}
		if line.Barcode == "" {
			return apperror.NewValidation("barcode must not be empty").
				WithDetail("field", "details").
				WithDetail("lineNo", i+1)
		}
		if line.Quantity < 1 {
			return apperror.NewValidation("quantity must be a positive integer").
				WithDetail("field", "details").
				WithDetail("barkod", line.Barcode)
		}
		if seen[line.Barcode] {
			return apperror.NewValidation("duplicate barcode in active lines").
				WithDetail("field", "details").
				WithDetail("barkod", line.Barcode)
		}
		seen[line.Barcode] = true
	}

	return nil
}
