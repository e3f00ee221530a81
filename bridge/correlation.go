package bridge

import (
	"errors"
	"sync"
	"time"
)

// errDuplicateID signals a correlation id collision; the caller generates a
// fresh id and retries.
var errDuplicateID = errors.New("correlation id already outstanding")

// pendingRequest is one in-flight request awaiting its reply. The result slot
// is written at most once; resolved tracks the PENDING -> {RESOLVED,
// TIMED_OUT} transition and is guarded by the owning table's mutex.
type pendingRequest struct {
	id        string
	result    chan string
	resolved  bool
	createdAt time.Time
	deadline  time.Time
}

// correlationTable owns the pending map and the FIFO order tracker. Every
// access goes through one mutex, so a reply and a timeout can never both
// claim the same entry: the first transition wins and the loser is a no-op.
//
// Invariant: an id appears in order iff its entry is in pending and
// unresolved. Insertion order equals dispatch order.
type correlationTable struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	order   []string
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{
		pending: make(map[string]*pendingRequest),
	}
}

// insert registers a new pending request. The capacity check happens under
// the same lock as the insertion, so concurrent callers can never overshoot
// max. A max of zero or less means unbounded.
func (t *correlationTable) insert(id string, deadline time.Time, max int) (*pendingRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if max > 0 && len(t.pending) >= max {
		return nil, ErrTooManyPending
	}
	if _, exists := t.pending[id]; exists {
		return nil, errDuplicateID
	}
	req := &pendingRequest{
		id:        id,
		result:    make(chan string, 1),
		createdAt: time.Now(),
		deadline:  deadline,
	}
	t.pending[id] = req
	t.order = append(t.order, id)
	return req, nil
}

// resolve writes the result slot of the identified request and removes the
// entry. Returns false if the entry is absent or already resolved.
func (t *correlationTable) resolve(id, result string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolveLocked(id, result)
}

// resolveOldest pops the head of the FIFO tracker and resolves it. Returns
// the resolved id, or false when nothing is outstanding.
func (t *correlationTable) resolveOldest(result string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.order) == 0 {
		return "", false
	}
	id := t.order[0]
	if !t.resolveLocked(id, result) {
		return "", false
	}
	return id, true
}

func (t *correlationTable) resolveLocked(id, result string) bool {
	req, ok := t.pending[id]
	if !ok || req.resolved {
		return false
	}
	req.resolved = true
	req.result <- result
	t.removeLocked(id)
	return true
}

// remove deletes an entry from the map and the tracker. Idempotent: removing
// an id that is already gone returns false and changes nothing.
func (t *correlationTable) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[id]; !ok {
		return false
	}
	t.removeLocked(id)
	return true
}

func (t *correlationTable) removeLocked(id string) {
	delete(t.pending, id)
	for i, other := range t.order {
		if other == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// sweepExpired removes every entry whose deadline has passed and returns the
// removed ids. Entries created by one-way sends are reclaimed here.
func (t *correlationTable) sweepExpired(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for id, req := range t.pending {
		if now.After(req.deadline) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		t.removeLocked(id)
	}
	return expired
}

// clear removes every entry and returns how many there were
func (t *correlationTable) clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.pending)
	t.pending = make(map[string]*pendingRequest)
	t.order = nil
	return n
}

func (t *correlationTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// oldestID returns the head of the FIFO tracker without resolving it
func (t *correlationTable) oldestID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.order) == 0 {
		return "", false
	}
	return t.order[0], true
}
