package session

import "sync"

// conversationLocks serializes turns per conversation id while leaving
// distinct conversations fully parallel. Mutexes are kept for the life of
// the process; the per-conversation footprint is one mutex.
type conversationLocks struct {
	mu sync.Map // conversation id -> *sync.Mutex
}

// lock acquires the mutex for a conversation and returns its unlock func.
func (l *conversationLocks) lock(conversationID string) func() {
	v, _ := l.mu.LoadOrStore(conversationID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
