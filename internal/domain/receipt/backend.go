package receipt

import "context"

// LastReceipt is the server's answer for the most recent receipt number.
// Tarih arrives in the backend's day.month.year textual form.
type LastReceipt struct {
	Fisno string `json:"fisno"`
	Tarih string `json:"tarih"`
}

// TransferResult is the downstream ERP identifier assigned on transfer.
type TransferResult struct {
	MikroFisno int64 `json:"mikro_fisno"`
}

// Summary is one row of the server-side receipt history.
type Summary struct {
	OkumaID       int64          `json:"okuma_id"`
	Fisno         int64          `json:"fisno"`
	Tarih         string         `json:"tarih"`
	CariCode      string         `json:"cari_kodu"`
	CariName      string         `json:"cari_isim"`
	UserID        int64          `json:"user_id"`
	Username      string         `json:"username"`
	Aktarildi     TransferStatus `json:"is_aktarildi"`
	TotalQuantity int64          `json:"toplam_adet"`
	TotalAmount   Money          `json:"toplam_tutar"`
	MikroFisno    int64          `json:"mikro_fisno"`
	MikroFisseri  string         `json:"mikro_fisseri"`
}

// Backend is the remote inventory API as consumed by the receipt domain.
// Implemented by infrastructure/api; tests use the mock there.
type Backend interface {
	// LastReceiptNumber returns the newest server-side receipt number
	// and its date.
	LastReceiptNumber(ctx context.Context) (LastReceipt, error)

	// SaveReceipt submits a receipt (new or edit) and returns the
	// accepted server record, including its okuma_id.
	SaveReceipt(ctx context.Context, payload *SavePayload) (*Session, error)

	// TransferReceipt pushes an accepted receipt into the downstream ERP.
	TransferReceipt(ctx context.Context, okumaID int64) (TransferResult, error)

	// History lists finalized receipts, newest first, paged.
	History(ctx context.Context, page, pageSize int) ([]Summary, error)

	// HistoryDetail fetches one finalized receipt with its lines.
	HistoryDetail(ctx context.Context, okumaID int64) (*Session, error)
}
