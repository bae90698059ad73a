package receipt

import (
	"context"
	"encoding/json"
	"sync"

	"okuma/internal/core/apperror"
	"okuma/internal/core/clock"
	"okuma/internal/core/observable"
	"okuma/internal/infrastructure/storage"
	"okuma/pkg/logger"
)

// SessionStore owns the single current in-progress session.
//
// Every mutation persists the full session to local storage before
// subscribers are notified, so a reload immediately after a mutation never
// observes a stale prior state.
type SessionStore struct {
	mu    sync.Mutex
	kv    storage.KV
	clock clock.Clock
	log   *logger.Logger

	current *Session
	value   *observable.Value[*Session]
}

// NewSessionStore loads the persisted current session (running the schema
// migration) and publishes it. A corrupted storage entry is discarded and
// the store starts empty.
func NewSessionStore(ctx context.Context, kv storage.KV, clk clock.Clock, log *logger.Logger) *SessionStore {
	st := &SessionStore{
		kv:    kv,
		clock: clk,
		log:   log.WithComponent("session"),
	}

	raw, ok, err := kv.Get(ctx, storage.KeyCurrentSession)
	if err != nil {
		st.log.Warnw("failed to load current session", "error", err)
	} else if ok {
		session, err := DecodeSession(ctx, []byte(raw))
		if err != nil {
			st.log.Warnw("discarding corrupted current session", "error", err)
			if err := kv.Remove(ctx, storage.KeyCurrentSession); err != nil {
				st.log.Warnw("failed to remove corrupted entry", "error", err)
			}
		} else {
			st.current = session
		}
	}

	st.value = observable.New(st.current.Clone())
	return st
}

// Current returns a snapshot of the current session, or nil when none is
// active. Mutating the snapshot does not affect the store.
func (st *SessionStore) Current() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.Clone()
}

// Subscribe registers a callback receiving a session snapshot on every
// mutation (nil marks an absent session). Callbacks run while the store's
// mutation is still in progress and must not call back into the store;
// the snapshot argument carries everything a view needs.
func (st *SessionStore) Subscribe(fn func(*Session)) observable.Unsubscribe {
	return st.value.Subscribe(fn)
}

// Start replaces the current session with a fresh empty one. Calling it
// redundantly for the same untouched receipt is a no-op; otherwise it
// always overwrites. Collisions with the pending queue are the caller's
// responsibility (see Submitter.CheckFisnoFree).
func (st *SessionStore) Start(ctx context.Context, fisno, tarih string, cari *Cari) error {
	if fisno == "" {
		return apperror.NewValidation("receipt number is required").
			WithDetail("field", "fisno")
	}
	if tarih == "" {
		tarih = st.clock.Now().Format("2006-01-02")
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if cur := st.current; cur != nil &&
		cur.Fisno == fisno && cur.Tarih == tarih && len(cur.Details) == 0 {
		return nil
	}

	st.current = NewSession(ctx, fisno, isoDate(tarih), cari)
	return st.persist(ctx)
}

// AddItem merges a scanned or manually entered barcode into the session.
// Without an active session this is a warning no-op: the caller is
// responsible for starting a session first.
func (st *SessionStore) AddItem(ctx context.Context, barkod string, miktar int64) error {
	if len(barkod) < MinBarcodeLength {
		return apperror.NewValidation("barcode is too short").
			WithDetail("barkod", barkod).
			WithDetail("min_length", MinBarcodeLength)
	}
	if miktar < 1 {
		return apperror.NewValidation("quantity must be a positive integer").
			WithDetail("miktar", miktar)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		st.log.Warnw("no active session, scan ignored", "barkod", barkod)
		return nil
	}

	st.current.AddLine(barkod, miktar, st.clock.Now())
	return st.persist(ctx)
}

// UpdateQuantity overrides an active line's quantity and marks it edited.
// A barcode not present in the session is a no-op.
func (st *SessionStore) UpdateQuantity(ctx context.Context, barkod string, miktar int64) error {
	if miktar < 1 {
		return apperror.NewValidation("quantity must be a positive integer").
			WithDetail("miktar", miktar)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		return nil
	}
	if !st.current.SetQuantity(barkod, miktar, st.clock.Now()) {
		return nil
	}
	return st.persist(ctx)
}

// Increase bumps an active line's quantity by one.
func (st *SessionStore) Increase(ctx context.Context, barkod string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		return nil
	}
	line := st.current.FindLine(barkod)
	if line == nil {
		return nil
	}
	st.current.SetQuantity(barkod, line.Quantity+1, st.clock.Now())
	return st.persist(ctx)
}

// Decrease lowers an active line's quantity by one, floored at 1.
func (st *SessionStore) Decrease(ctx context.Context, barkod string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		return nil
	}
	line := st.current.FindLine(barkod)
	if line == nil || line.Quantity <= 1 {
		return nil
	}
	st.current.SetQuantity(barkod, line.Quantity-1, st.clock.Now())
	return st.persist(ctx)
}

// RemoveItem removes a line (soft delete once the session has server
// identity). A barcode not present is a no-op.
func (st *SessionStore) RemoveItem(ctx context.Context, barkod string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		return nil
	}
	if !st.current.RemoveLine(barkod) {
		return nil
	}
	return st.persist(ctx)
}

// UpdateCari replaces the counterparty on the active session.
func (st *SessionStore) UpdateCari(ctx context.Context, cari Cari) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		return nil
	}
	st.current.CariCode = cari.Code
	st.current.CariName = cari.Name
	return st.persist(ctx)
}

// Clear discards the current session and persists the cleared state.
func (st *SessionStore) Clear(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.current = nil
	return st.persist(ctx)
}

// Replace installs a session as the current one (used by the pending
// queue's resume and by history edit-loading). The session is normalized
// so a resumed record is always schema-complete.
func (st *SessionStore) Replace(ctx context.Context, session *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if session != nil {
		session = session.Clone()
		session.Pending = false
		Normalize(ctx, session)
	}
	st.current = session
	return st.persist(ctx)
}

// persist serializes the current session (or null) under the session key
// and notifies subscribers. Callers hold st.mu.
func (st *SessionStore) persist(ctx context.Context) error {
	data, err := json.Marshal(st.current)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if err := st.kv.Set(ctx, storage.KeyCurrentSession, string(data)); err != nil {
		return apperror.NewStorage(storage.KeyCurrentSession, err)
	}
	st.value.Set(st.current.Clone())
	return nil
}
