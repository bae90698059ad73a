package receipt

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"okuma/internal/core/apperror"
	"okuma/internal/core/clock"
	"okuma/internal/core/prompt"
	"okuma/pkg/logger"
)

// SavePayload is the outbound submission of a receipt. Deleted lines are
// included so the server can soft-delete them too; totals count active
// lines only.
type SavePayload struct {
	OkumaID        int64          `json:"okuma_id"`
	Fisno          int64          `json:"fisno"`
	Tarih          string         `json:"tarih"`
	CariCode       string         `json:"cari_kodu"`
	CariName       string         `json:"cari_isim"`
	UserID         int64          `json:"user_id"`
	Username       string         `json:"username"`
	Aktarildi      TransferStatus `json:"is_aktarildi"`
	TotalQuantity  int64          `json:"toplam_adet"`
	TotalAmount    Money          `json:"toplam_tutar"`
	IsNew          bool           `json:"is_new"`
	MikroFisno     int64          `json:"mikro_fisno"`
	MikroFisseri   string         `json:"mikro_fisseri"`
	IdempotencyKey string         `json:"idempotency_key"`
	Details        []Line         `json:"details"`
}

// Submitter computes receipt numbers against both server and local pending
// state, builds submission payloads and drives the submit/transfer flows.
type Submitter struct {
	backend Backend
	store   *SessionStore
	pending *PendingQueue
	history *History
	confirm prompt.Confirmer
	clock   clock.Clock
	log     *logger.Logger

	// inFlight weakly guards against rapid double submits. Cleared on
	// both success and failure so the user may retry.
	mu       sync.Mutex
	inFlight bool
}

// NewSubmitter creates the reconciliation/submission service.
func NewSubmitter(
	backend Backend,
	store *SessionStore,
	pending *PendingQueue,
	history *History,
	confirm prompt.Confirmer,
	clk clock.Clock,
	log *logger.Logger,
) *Submitter {
	return &Submitter{
		backend: backend,
		store:   store,
		pending: pending,
		history: history,
		confirm: confirm,
		clock:   clk,
		log:     log.WithComponent("submit"),
	}
}

// NextReceiptNumber suggests the next receipt number and its date.
//
// Candidate is serverLast+1; when the maximum fisno across pending
// sessions reaches the candidate, maxPending+1 is used instead so the
// suggestion never collides with queued work. Unparseable numbers count
// as 0. On a server failure the number is empty and the date is today.
func (s *Submitter) NextReceiptNumber(ctx context.Context) (fisno, tarih string) {
	last, err := s.backend.LastReceiptNumber(ctx)
	if err != nil {
		s.log.Warnw("last receipt number lookup failed", "error", err)
		return "", s.clock.Now().Format("2006-01-02")
	}

	candidate := parseFisno(last.Fisno) + 1
	for _, p := range s.pending.List() {
		if n := parseFisno(p.Fisno); n >= candidate {
			candidate = n + 1
		}
	}

	tarih = reformatServerDate(last.Tarih, s.clock.Now())
	return strconv.FormatInt(candidate, 10), tarih
}

// CheckFisnoFree reports a duplicate-receipt error when the number is
// already taken by a pending session. Callers run this before starting a
// session so it cannot silently shadow queued work.
func (s *Submitter) CheckFisnoFree(fisno string) error {
	if s.pending.Get(fisno) != nil {
		return apperror.NewDuplicateReceipt(fisno)
	}
	return nil
}

// BuildPayload prepares a session for submission: backfills per-line
// sequence numbers, recomputes totals from active lines only, and decides
// edit-versus-new from the server identity.
func (s *Submitter) BuildPayload(ctx context.Context, session *Session) (*SavePayload, error) {
	if session == nil {
		return nil, apperror.NewValidation("no session to submit")
	}
	if err := session.Validate(ctx); err != nil {
		return nil, err
	}

	fisno, err := strconv.ParseInt(session.Fisno, 10, 64)
	if err != nil {
		return nil, apperror.NewValidation("receipt number must be numeric").
			WithDetail("fisno", session.Fisno)
	}

	session = session.Clone()
	session.RecalculateTotals()
	for i := range session.Details {
		if session.Details[i].Sequence == 0 {
			session.Details[i].Sequence = int64(i + 1)
		}
	}

	payload := &SavePayload{
		Fisno:          fisno,
		Tarih:          session.Tarih,
		CariCode:       session.CariCode,
		CariName:       session.CariName,
		UserID:         session.UserID,
		Username:       session.Username,
		Aktarildi:      session.Aktarildi,
		TotalQuantity:  session.TotalQuantity,
		TotalAmount:    session.TotalAmount,
		MikroFisno:     session.MikroFisno,
		MikroFisseri:   session.MikroFisseri,
		IdempotencyKey: uuid.NewString(),
		Details:        session.Details,
	}

	if session.IsEdit() {
		payload.OkumaID = session.OkumaID
		payload.IsNew = false
	} else {
		payload.OkumaID = 0
		payload.IsNew = true
	}
	return payload, nil
}

// Submit sends a session to the backend. On success the accepted record is
// echoed into the sent cache, the session leaves the pending queue, and the
// current session is cleared when it was the one submitted. Local state is
// untouched on failure so the user may retry.
func (s *Submitter) Submit(ctx context.Context, session *Session) (*Session, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	payload, err := s.BuildPayload(ctx, session)
	if err != nil {
		return nil, err
	}

	ok, err := s.confirm.Confirm(ctx, "Submit receipt",
		"Send receipt "+session.Fisno+" to the backend?")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	record, err := s.backend.SaveReceipt(ctx, payload)
	if err != nil {
		return nil, apperror.NewUpstream("saveReceipt", err)
	}
	s.log.Infow("receipt saved", "fisno", session.Fisno, "okuma_id", record.OkumaID)

	if err := s.history.Record(ctx, record); err != nil {
		s.log.Warnw("failed to cache sent receipt", "error", err)
	}
	if err := s.pending.Remove(ctx, session.Fisno); err != nil {
		s.log.Warnw("failed to remove submitted receipt from pending", "error", err)
	}
	if cur := s.store.Current(); cur != nil && cur.Fisno == session.Fisno {
		if err := s.store.Clear(ctx); err != nil {
			s.log.Warnw("failed to clear current session", "error", err)
		}
	}

	return record, nil
}

// EligibleForTransfer gates the transfer-to-ERP action: the receipt must
// not be transferred yet, every active line must be matched in the stock
// catalog, and the account code must be set. The three failure modes get
// distinct user-facing messages.
func (s *Submitter) EligibleForTransfer(session *Session) error {
	if session == nil {
		return apperror.NewValidation("no receipt to transfer")
	}
	if session.Aktarildi == Transferred {
		return apperror.NewBusinessRule(apperror.CodeAlreadyTransferred,
			"Receipt has already been transferred")
	}

	itemsMissing := false
	for _, line := range session.ActiveLines() {
		if !line.Found {
			itemsMissing = true
			break
		}
	}
	cariMissing := session.CariCode == ""

	switch {
	case itemsMissing && cariMissing:
		return apperror.NewBusinessRule(apperror.CodeTransferBlocked,
			"Some items are not matched in the stock catalog and the account (cari) is missing")
	case itemsMissing:
		return apperror.NewBusinessRule(apperror.CodeTransferBlocked,
			"Some items are not matched in the stock catalog")
	case cariMissing:
		return apperror.NewBusinessRule(apperror.CodeTransferBlocked,
			"Account (cari) is required for transfer")
	}
	return nil
}

// Transfer pushes an accepted receipt into the downstream ERP and records
// the assigned identifier in the sent cache.
func (s *Submitter) Transfer(ctx context.Context, session *Session) (*Session, error) {
	if err := s.EligibleForTransfer(session); err != nil {
		return nil, err
	}
	if !session.HasServerIdentity() {
		return nil, apperror.NewValidation("receipt must be submitted before transfer")
	}

	ok, err := s.confirm.Confirm(ctx, "Transfer receipt",
		"Push receipt "+session.Fisno+" into the ERP?")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	result, err := s.backend.TransferReceipt(ctx, session.OkumaID)
	if err != nil {
		return nil, apperror.NewUpstream("transferReceipt", err)
	}

	session = session.Clone()
	session.MikroFisno = result.MikroFisno
	session.Aktarildi = Transferred
	s.log.Infow("receipt transferred",
		"okuma_id", session.OkumaID, "mikro_fisno", result.MikroFisno)

	if err := s.history.Record(ctx, session); err != nil {
		s.log.Warnw("failed to cache transferred receipt", "error", err)
	}
	return session, nil
}

func (s *Submitter) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return apperror.NewSubmitInProgress()
	}
	s.inFlight = true
	return nil
}

func (s *Submitter) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// parseFisno parses a receipt number for comparison; failures count as 0.
func parseFisno(fisno string) int64 {
	n, err := strconv.ParseInt(fisno, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// reformatServerDate turns the backend's DD.MM.YYYY into YYYY-MM-DD,
// falling back to today when unparseable.
func reformatServerDate(tarih string, now time.Time) string {
	t, err := time.Parse("02.01.2006", tarih)
	if err != nil {
		return now.Format("2006-01-02")
	}
	return t.Format("2006-01-02")
}
