package service

import "sync"

// TicketLocks serializes mutations per ticket id so a concurrent AddLine
// and CloseTicket cannot interleave into a lost update. One instance is
// shared by the ticket and settlement services.
type TicketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTicketLocks creates an empty lock set
func NewTicketLocks() *TicketLocks {
	return &TicketLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a ticket id, creating it on first use
func (t *TicketLocks) Lock(ticketID string) {
	t.mu.Lock()
	lock, ok := t.locks[ticketID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[ticketID] = lock
	}
	t.mu.Unlock()
	lock.Lock()
}

// Unlock releases the mutex for a ticket id
func (t *TicketLocks) Unlock(ticketID string) {
	t.mu.Lock()
	lock, ok := t.locks[ticketID]
	t.mu.Unlock()
	if ok {
		lock.Unlock()
	}
}
