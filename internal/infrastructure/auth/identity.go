// Package auth holds the terminal-side operator identity.
//
// The backend issues a JWT access token at login; the terminal persists it
// and attributes receipts to the user claims it carries. Verification is
// the server's job - the client only reads claims for attribution.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	appctx "okuma/internal/core/context"
	"okuma/internal/infrastructure/storage"
	"okuma/pkg/logger"
)

// User is the persisted operator identity.
type User struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Identity loads, persists and exposes the current operator.
// Absence of a user is valid: attribution falls back to empty values.
type Identity struct {
	mu  sync.RWMutex
	kv  storage.KV
	log *logger.Logger

	current *User
}

// NewIdentity loads the persisted user. A corrupted entry is discarded.
func NewIdentity(ctx context.Context, kv storage.KV, log *logger.Logger) *Identity {
	id := &Identity{kv: kv, log: log.WithComponent("auth")}

	raw, ok, err := kv.Get(ctx, storage.KeyCurrentUser)
	if err != nil {
		id.log.Warnw("failed to load current user", "error", err)
		return id
	}
	if !ok {
		return id
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		id.log.Warnw("discarding corrupted user entry", "error", err)
		if err := kv.Remove(ctx, storage.KeyCurrentUser); err != nil {
			id.log.Warnw("failed to remove corrupted entry", "error", err)
		}
		return id
	}
	id.current = &user
	return id
}

// Login stores the access token and the identity claims it carries.
func (i *Identity) Login(ctx context.Context, token string) (*User, error) {
	user, err := userFromToken(token)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err := i.kv.Set(ctx, storage.KeyCurrentUser, string(data)); err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.current = user
	i.mu.Unlock()

	i.log.Infow("operator logged in", "username", user.Username)
	return user, nil
}

// Logout drops the persisted identity.
func (i *Identity) Logout(ctx context.Context) error {
	if err := i.kv.Remove(ctx, storage.KeyCurrentUser); err != nil {
		return err
	}
	i.mu.Lock()
	i.current = nil
	i.mu.Unlock()
	return nil
}

// Current returns the logged-in user, or nil.
func (i *Identity) Current() *User {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.current == nil {
		return nil
	}
	user := *i.current
	return &user
}

// Token implements api.TokenSource.
func (i *Identity) Token() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.current == nil {
		return ""
	}
	return i.current.Token
}

// WithUser attaches the operator identity to the context for attribution
// and logging. Without a logged-in user the context is returned unchanged.
func (i *Identity) WithUser(ctx context.Context) context.Context {
	user := i.Current()
	if user == nil {
		return ctx
	}
	return appctx.WithUser(ctx, &appctx.UserContext{
		UserID:   user.UserID,
		Username: user.Username,
	})
}

// userFromToken reads identity claims without signature verification.
func userFromToken(token string) (*User, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	user := &User{Token: token}
	if name, ok := claims["username"].(string); ok {
		user.Username = name
	} else if sub, err := claims.GetSubject(); err == nil {
		user.Username = sub
	}
	user.UserID = claimInt64(claims, "user_id")
	return user, nil
}

func claimInt64(claims jwt.MapClaims, key string) int64 {
	switch v := claims[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
