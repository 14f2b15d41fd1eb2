package vault

import (
	"context"
	"sync"
	"time"
)

// Challenger obtains a PIN from the user, typically by surfacing a prompt.
// Returning an error means the challenge was dismissed or cancelled; nothing
// server-side needs unwinding in that case because no operation was in
// flight during the wait.
type Challenger func(ctx context.Context) (string, error)

// Unlocker is the slice of SessionManager the gate depends on.
type Unlocker interface {
	VerifyPin(ctx context.Context, householdID, userID, pin string) (*UnlockSession, error)
	IsUnlocked(householdID, userID string) bool
}

// accessRequest is the single in-flight unlock attempt. Waiters accumulate
// on it and are resolved exactly once with a shared outcome.
type accessRequest struct {
	waiters []chan bool
}

// ClientGate fronts vault access for one client instance bound to a
// (household, user) pair.
//
// RequestAccess resolves immediately when a locally cached marker is still
// valid. Otherwise it runs the PIN challenge — and any further RequestAccess
// calls arriving before the challenge resolves are folded into the same
// pending request, so a burst of concurrent callers sees one prompt and one
// outcome, not one prompt each.
//
// The local marker is a cache only; the server session stays authoritative.
// Independent gate instances (one per client) do not coordinate.
type ClientGate struct {
	householdID string
	userID      string
	unlocker    Unlocker
	challenge   Challenger
	markerTTL   time.Duration

	mu       sync.Mutex
	markerAt time.Time // zero when no marker cached
	inflight *accessRequest

	now func() time.Time // injectable for tests
}

// NewClientGate creates a gate. markerTTL bounds how long a successful unlock
// is trusted locally before re-checking the server.
func NewClientGate(householdID, userID string, unlocker Unlocker, challenge Challenger, markerTTL time.Duration) *ClientGate {
	if markerTTL <= 0 {
		markerTTL = time.Minute
	}
	return &ClientGate{
		householdID: householdID,
		userID:      userID,
		unlocker:    unlocker,
		challenge:   challenge,
		markerTTL:   markerTTL,
		now:         time.Now,
	}
}

// RequestAccess returns a channel that receives exactly one boolean: whether
// vault access is authorized. The channel is buffered, so the caller may
// read it whenever convenient.
func (g *ClientGate) RequestAccess(ctx context.Context) <-chan bool {
	result := make(chan bool, 1)

	g.mu.Lock()

	// Fresh local marker and a live server session: no prompt, no round trip
	// beyond the session check.
	if !g.markerAt.IsZero() && g.now().Before(g.markerAt) && g.unlocker.IsUnlocked(g.householdID, g.userID) {
		g.mu.Unlock()
		result <- true
		return result
	}
	g.markerAt = time.Time{} // expired marker: silently re-prompt, not an error

	// Fold into the pending challenge if one is already running.
	if g.inflight != nil {
		g.inflight.waiters = append(g.inflight.waiters, result)
		g.mu.Unlock()
		return result
	}

	req := &accessRequest{waiters: []chan bool{result}}
	g.inflight = req
	g.mu.Unlock()

	go g.runChallenge(ctx, req)

	return result
}

// runChallenge executes the PIN prompt and verification, then resolves every
// waiter that accumulated while it ran.
func (g *ClientGate) runChallenge(ctx context.Context, req *accessRequest) {
	ok := false

	pin, err := g.challenge(ctx)
	if err == nil {
		if _, verr := g.unlocker.VerifyPin(ctx, g.householdID, g.userID, pin); verr == nil {
			ok = true
		}
	}

	g.mu.Lock()
	if ok {
		g.markerAt = g.now().Add(g.markerTTL)
	}
	waiters := req.waiters
	req.waiters = nil
	g.inflight = nil
	g.mu.Unlock()

	for _, w := range waiters {
		w <- ok
	}
}

// Invalidate drops the local marker, forcing the next RequestAccess to
// consult the server again.
func (g *ClientGate) Invalidate() {
	g.mu.Lock()
	g.markerAt = time.Time{}
	g.mu.Unlock()
}
