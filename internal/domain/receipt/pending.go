package receipt

import (
	"context"
	"encoding/json"
	"sync"

	"okuma/internal/core/apperror"
	"okuma/internal/core/observable"
	"okuma/internal/infrastructure/storage"
	"okuma/pkg/logger"
)

// PendingQueue is the durable ordered collection of receipts saved for
// later completion. fisno acts as the primary key inside the queue.
type PendingQueue struct {
	mu    sync.Mutex
	kv    storage.KV
	store *SessionStore
	log   *logger.Logger

	sessions []*Session
	value    *observable.Value[[]*Session]
}

// NewPendingQueue loads and migrates the persisted queue. A corrupted
// storage entry is discarded and the queue starts empty.
func NewPendingQueue(ctx context.Context, kv storage.KV, store *SessionStore, log *logger.Logger) *PendingQueue {
	q := &PendingQueue{
		kv:    kv,
		store: store,
		log:   log.WithComponent("pending"),
	}

	raw, ok, err := kv.Get(ctx, storage.KeyPendingSessions)
	if err != nil {
		q.log.Warnw("failed to load pending sessions", "error", err)
	} else if ok {
		sessions, err := DecodeSessions(ctx, []byte(raw))
		if err != nil {
			q.log.Warnw("discarding corrupted pending sessions", "error", err)
			if err := kv.Remove(ctx, storage.KeyPendingSessions); err != nil {
				q.log.Warnw("failed to remove corrupted entry", "error", err)
			}
		} else {
			q.sessions = sessions
		}
	}

	q.value = observable.New(q.snapshot())
	return q
}

// Subscribe registers a callback receiving the queue snapshot on every
// change. Callbacks must not call back into the queue.
func (q *PendingQueue) Subscribe(fn func([]*Session)) observable.Unsubscribe {
	return q.value.Subscribe(fn)
}

// List returns snapshots of all pending sessions in insertion order.
func (q *PendingQueue) List() []*Session {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

// Get returns the pending session with the given fisno, or nil.
func (q *PendingQueue) Get(fisno string) *Session {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.index(fisno); i >= 0 {
		return q.sessions[i].Clone()
	}
	return nil
}

// Save moves the current active session into the queue and clears the
// current session. Without an active session or with no active lines this
// is a no-op. An existing queue entry with the same fisno is replaced
// (last local write wins).
func (q *PendingQueue) Save(ctx context.Context) error {
	session := q.store.Current()
	if session == nil || len(session.ActiveLines()) == 0 {
		q.log.Debugw("save to pending skipped, session empty")
		return nil
	}

	session.Pending = true
	session.RecalculateTotals()

	q.mu.Lock()
	if i := q.index(session.Fisno); i >= 0 {
		q.log.Warnw("replacing pending session with same fisno", "fisno", session.Fisno)
		q.sessions[i] = session
	} else {
		q.sessions = append(q.sessions, session)
	}
	err := q.persist(ctx)
	q.mu.Unlock()
	if err != nil {
		return err
	}

	return q.store.Clear(ctx)
}

// Resume removes the session from the queue and re-establishes it as the
// current session, re-normalizing so a resumed session is always
// schema-complete.
func (q *PendingQueue) Resume(ctx context.Context, fisno string) error {
	q.mu.Lock()
	i := q.index(fisno)
	if i < 0 {
		q.mu.Unlock()
		return apperror.NewNotFound("pending receipt", fisno)
	}
	session := q.sessions[i]
	q.sessions = append(q.sessions[:i], q.sessions[i+1:]...)
	err := q.persist(ctx)
	q.mu.Unlock()
	if err != nil {
		return err
	}

	return q.store.Replace(ctx, session)
}

// Remove deletes the pending session with the given fisno.
func (q *PendingQueue) Remove(ctx context.Context, fisno string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.index(fisno)
	if i < 0 {
		return nil
	}
	q.sessions = append(q.sessions[:i], q.sessions[i+1:]...)
	return q.persist(ctx)
}

// ClearAll empties the queue and drops the storage key.
func (q *PendingQueue) ClearAll(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sessions = nil
	if err := q.kv.Remove(ctx, storage.KeyPendingSessions); err != nil {
		return apperror.NewStorage(storage.KeyPendingSessions, err)
	}
	q.value.Set(q.snapshot())
	return nil
}

func (q *PendingQueue) index(fisno string) int {
	for i, s := range q.sessions {
		if s.Fisno == fisno {
			return i
		}
	}
	return -1
}

func (q *PendingQueue) snapshot() []*Session {
	out := make([]*Session, 0, len(q.sessions))
	for _, s := range q.sessions {
		out = append(out, s.Clone())
	}
	return out
}

// persist serializes the queue under the pending key and notifies
// subscribers. Callers hold q.mu.
func (q *PendingQueue) persist(ctx context.Context) error {
	data, err := json.Marshal(q.sessions)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if err := q.kv.Set(ctx, storage.KeyPendingSessions, string(data)); err != nil {
		return apperror.NewStorage(storage.KeyPendingSessions, err)
	}
	q.value.Set(q.snapshot())
	return nil
}
