package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Snapshots defines the persistence interface used by Users.
type Snapshots interface {
	Save(ctx context.Context, name string, v any) error
	Load(ctx context.Context, name string, v any) (bool, error)
}

// Logger defines the logging interface used by Users.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Snapshot names within the persistence store.
const (
	snapshotUsers        = "users"
	snapshotPendingUsers = "pending_users"
)

// AuthorizedUser is an operator admitted to the bridge. Identity is
// the chat platform's user id; the name is kept for display only.
type AuthorizedUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// PendingUser is a registration request awaiting approval by an
// existing operator.
type PendingUser struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Requested time.Time `json:"requested"`
}

// RegisterOutcome describes what a registration attempt did.
type RegisterOutcome int

// RegisterOutcome values.
const (
	// Registered means a new pending entry was created.
	Registered RegisterOutcome = iota

	// AlreadyPending means the requester was pending already; the
	// duplicate submission is acknowledged but not re-queued.
	AlreadyPending

	// AlreadyAuthorized means the requester is already an operator.
	AlreadyAuthorized
)

// Users owns operator membership and the pending-user queue.
//
// One distinguished id is the administrator; it carries no extra
// capability here beyond display. Operators are never removed.
//
// All public methods are thread-safe.
type Users struct {
	mu         sync.RWMutex
	authorized map[int64]AuthorizedUser
	pending    map[int64]PendingUser

	adminID   int64
	password  string
	snapshots Snapshots
	logger    Logger
	now       func() time.Time
}

// NewUsers creates the operator membership store.
// The password gates both self-registration and user approval.
func NewUsers(snapshots Snapshots, adminID int64, password string) *Users {
	return &Users{
		authorized: make(map[int64]AuthorizedUser),
		pending:    make(map[int64]PendingUser),
		adminID:    adminID,
		password:   password,
		snapshots:  snapshots,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger.
func (u *Users) SetLogger(logger Logger) {
	u.logger = logger
}

// Load restores membership from the persistence store and guarantees
// the administrator is always a member.
func (u *Users) Load(ctx context.Context) error {
	var users []AuthorizedUser
	if _, err := u.snapshots.Load(ctx, snapshotUsers, &users); err != nil {
		return fmt.Errorf("loading users: %w", err)
	}

	var pending []PendingUser
	if _, err := u.snapshots.Load(ctx, snapshotPendingUsers, &pending); err != nil {
		return fmt.Errorf("loading pending users: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	u.authorized = make(map[int64]AuthorizedUser, len(users)+1)
	for _, user := range users {
		u.authorized[user.ID] = user
	}
	if _, ok := u.authorized[u.adminID]; !ok {
		u.authorized[u.adminID] = AuthorizedUser{ID: u.adminID, Name: "admin"}
	}

	u.pending = make(map[int64]PendingUser, len(pending))
	for _, p := range pending {
		u.pending[p.ID] = p
	}

	u.logger.Info("operator membership loaded",
		"authorized", len(u.authorized),
		"pending", len(u.pending),
	)
	return nil
}

// persistUsers writes the membership collection. Caller must hold mu.
func (u *Users) persistUsers(ctx context.Context) error {
	if err := u.snapshots.Save(ctx, snapshotUsers, u.sortedUsersLocked()); err != nil {
		return fmt.Errorf("persisting users: %w", err)
	}
	return nil
}

// persistPending writes the pending queue. Caller must hold mu.
func (u *Users) persistPending(ctx context.Context) error {
	if err := u.snapshots.Save(ctx, snapshotPendingUsers, u.sortedPendingLocked()); err != nil {
		return fmt.Errorf("persisting pending users: %w", err)
	}
	return nil
}

func (u *Users) sortedUsersLocked() []AuthorizedUser {
	users := make([]AuthorizedUser, 0, len(u.authorized))
	for _, user := range u.authorized {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (u *Users) sortedPendingLocked() []PendingUser {
	pending := make([]PendingUser, 0, len(u.pending))
	for _, p := range u.pending {
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Requested.Equal(pending[j].Requested) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].Requested.Before(pending[j].Requested)
	})
	return pending
}

// checkPassword compares in constant time.
func (u *Users) checkPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(u.password)) == 1
}

// =============================================================================
// Reads
// =============================================================================

// IsAuthorized reports whether the id belongs to an operator.
func (u *Users) IsAuthorized(id int64) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.authorized[id]
	return ok
}

// IsAdmin reports whether the id is the administrator.
func (u *Users) IsAdmin(id int64) bool {
	return id == u.adminID
}

// List returns all operators sorted by id.
func (u *Users) List() []AuthorizedUser {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.sortedUsersLocked()
}

// IDs returns all operator ids, for notification fan-out.
func (u *Users) IDs() []int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()

	ids := make([]int64, 0, len(u.authorized))
	for id := range u.authorized {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PendingList returns pending users in request order.
func (u *Users) PendingList() []PendingUser {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.sortedPendingLocked()
}

// GetPending retrieves a pending user by chat id.
func (u *Users) GetPending(id int64) (PendingUser, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	p, ok := u.pending[id]
	if !ok {
		return PendingUser{}, ErrNotFound
	}
	return p, nil
}

// PendingByIndex retrieves a pending user by zero-based position in
// request order. Returns ErrNotFound for an out-of-range index.
func (u *Users) PendingByIndex(i int) (PendingUser, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	pending := u.sortedPendingLocked()
	if i < 0 || i >= len(pending) {
		return PendingUser{}, ErrNotFound
	}
	return pending[i], nil
}

// =============================================================================
// Mutations
// =============================================================================

// Register handles a self-registration attempt.
//
// A wrong password fails identically whether or not the requester is
// already pending, so the reply leaks nothing about internal state.
func (u *Users) Register(ctx context.Context, id int64, name, password string) (RegisterOutcome, error) {
	if !u.checkPassword(password) {
		return 0, ErrWrongPassword
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.authorized[id]; ok {
		return AlreadyAuthorized, nil
	}
	if _, ok := u.pending[id]; ok {
		return AlreadyPending, nil
	}

	p := PendingUser{
		ID:        id,
		Name:      name,
		Requested: u.now().UTC(),
	}
	u.pending[id] = p

	if err := u.persistPending(ctx); err != nil {
		delete(u.pending, id)
		return 0, err
	}

	u.logger.Info("user registration queued", "id", id, "name", name)
	return Registered, nil
}

// Approve promotes a pending user to operator.
//
// The approving operator must present the shared password again;
// a wrong password fails with ErrWrongPassword, an unknown pending id
// with ErrNotFound.
func (u *Users) Approve(ctx context.Context, id int64, password string) (PendingUser, error) {
	if !u.checkPassword(password) {
		return PendingUser{}, ErrWrongPassword
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	p, ok := u.pending[id]
	if !ok {
		return PendingUser{}, ErrNotFound
	}

	u.authorized[id] = AuthorizedUser{ID: id, Name: p.Name}
	delete(u.pending, id)

	if err := u.persistUsers(ctx); err != nil {
		delete(u.authorized, id)
		u.pending[id] = p
		return PendingUser{}, err
	}
	if err := u.persistPending(ctx); err != nil {
		delete(u.authorized, id)
		u.pending[id] = p
		return PendingUser{}, err
	}

	u.logger.Info("user approved", "id", id, "name", p.Name)
	return p, nil
}
