package sync

import "sync"

// lockEntry serializes mutations on a single entry id, so overlapping calls
// cannot race on network-response order. Locks are kept for the lifetime of
// the engine; the set is bounded by the number of entries ever touched.
func (e *Engine) lockEntry(id string) func() {
	e.locksMu.Lock()
	l, ok := e.entryLocks[id]
	if !ok {
		l = &sync.Mutex{}
		e.entryLocks[id] = l
	}
	e.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
