package receipt

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"okuma/internal/core/apperror"
	"okuma/internal/infrastructure/storage"
	"okuma/pkg/logger"
)

// History serves finalized receipts: server-side listing with a durable
// local cache as fallback, and the optimistic local echo written after a
// successful submission.
type History struct {
	mu      sync.Mutex
	kv      storage.KV
	backend Backend
	store   *SessionStore
	log     *logger.Logger

	sent []*Session
}

// NewHistory loads and migrates the local sent cache. A corrupted storage
// entry is discarded and the cache starts empty.
func NewHistory(ctx context.Context, kv storage.KV, backend Backend, store *SessionStore, log *logger.Logger) *History {
	h := &History{
		kv:      kv,
		backend: backend,
		store:   store,
		log:     log.WithComponent("history"),
	}

	raw, ok, err := kv.Get(ctx, storage.KeySentSessions)
	if err != nil {
		h.log.Warnw("failed to load sent cache", "error", err)
	} else if ok {
		sessions, err := DecodeSessions(ctx, []byte(raw))
		if err != nil {
			h.log.Warnw("discarding corrupted sent cache", "error", err)
			if err := kv.Remove(ctx, storage.KeySentSessions); err != nil {
				h.log.Warnw("failed to remove corrupted entry", "error", err)
			}
		} else {
			h.sent = sessions
		}
	}

	return h
}

// Record writes the accepted server record into the local sent cache as an
// optimistic echo. An existing entry with the same okuma_id is replaced.
func (h *History) Record(ctx context.Context, session *Session) error {
	if session == nil {
		return nil
	}
	session = session.Clone()
	session.Pending = false

	h.mu.Lock()
	defer h.mu.Unlock()

	replaced := false
	for i, s := range h.sent {
		if s.OkumaID != 0 && s.OkumaID == session.OkumaID {
			h.sent[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		h.sent = append(h.sent, session)
	}
	return h.persist(ctx)
}

// List returns finalized receipts, server first. When the server is
// unreachable the local sent cache serves as a degraded mirror.
func (h *History) List(ctx context.Context, page, pageSize int) ([]Summary, error) {
	summaries, err := h.backend.History(ctx, page, pageSize)
	if err == nil {
		return summaries, nil
	}
	h.log.Warnw("history lookup failed, serving local cache", "error", err)

	h.mu.Lock()
	defer h.mu.Unlock()

	cached := make([]Summary, 0, len(h.sent))
	for _, s := range h.sent {
		cached = append(cached, summarize(s))
	}
	return cached, nil
}

// Detail fetches one finalized receipt, falling back to the sent cache.
func (h *History) Detail(ctx context.Context, okumaID int64) (*Session, error) {
	session, err := h.backend.HistoryDetail(ctx, okumaID)
	if err == nil {
		return session, nil
	}
	h.log.Warnw("history detail lookup failed, serving local cache",
		"okuma_id", okumaID, "error", err)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sent {
		if s.OkumaID == okumaID {
			return s.Clone(), nil
		}
	}
	return nil, apperror.NewNotFound("receipt", okumaID)
}

// LoadForEdit starts a current session from a finalized receipt, carrying
// the server identity so a later submission becomes an edit.
func (h *History) LoadForEdit(ctx context.Context, okumaID int64) error {
	session, err := h.Detail(ctx, okumaID)
	if err != nil {
		return err
	}
	session.IsNew = false
	return h.store.Replace(ctx, session)
}

// Clear empties the local sent cache.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sent = nil
	if err := h.kv.Remove(ctx, storage.KeySentSessions); err != nil {
		return apperror.NewStorage(storage.KeySentSessions, err)
	}
	return nil
}

// persist serializes the sent cache. Callers hold h.mu.
func (h *History) persist(ctx context.Context) error {
	data, err := json.Marshal(h.sent)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if err := h.kv.Set(ctx, storage.KeySentSessions, string(data)); err != nil {
		return apperror.NewStorage(storage.KeySentSessions, err)
	}
	return nil
}

func summarize(s *Session) Summary {
	fisno, _ := strconv.ParseInt(s.Fisno, 10, 64)
	return Summary{
		OkumaID:       s.OkumaID,
		Fisno:         fisno,
		Tarih:         s.Tarih,
		CariCode:      s.CariCode,
		CariName:      s.CariName,
		UserID:        s.UserID,
		Username:      s.Username,
		Aktarildi:     s.Aktarildi,
		TotalQuantity: s.TotalQuantity,
		TotalAmount:   s.TotalAmount,
		MikroFisno:    s.MikroFisno,
		MikroFisseri:  s.MikroFisseri,
	}
}

// Filter holds the history screen's client-side filters: free-text search
// over fisno and cari fields, plus per-column matches. A zero Filter
// passes everything.
type Filter struct {
	Search   string // free text: fisno, cari_isim, cari_kodu
	Fisno    string
	Tarih    string // prefix match, YYYY-MM-DD or a prefix of it
	CariCode string
	CariName string
}

// FilterSummaries returns the rows matching the filter.
func FilterSummaries(items []Summary, f Filter) []Summary {
	out := make([]Summary, 0, len(items))
	for _, item := range items {
		if matches(item, f) {
			out = append(out, item)
		}
	}
	return out
}

func matches(item Summary, f Filter) bool {
	fisno := strconv.FormatInt(item.Fisno, 10)

	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(fisno, needle) &&
			!strings.Contains(strings.ToLower(item.CariName), needle) &&
			!strings.Contains(strings.ToLower(item.CariCode), needle) {
			return false
		}
	}
	if f.Fisno != "" && !strings.Contains(fisno, f.Fisno) {
		return false
	}
	if f.Tarih != "" && !strings.HasPrefix(item.Tarih, f.Tarih) {
		return false
	}
	if f.CariCode != "" &&
		!strings.Contains(strings.ToLower(item.CariCode), strings.ToLower(f.CariCode)) {
		return false
	}
	if f.CariName != "" &&
		!strings.Contains(strings.ToLower(item.CariName), strings.ToLower(f.CariName)) {
		return false
	}
	return true
}
