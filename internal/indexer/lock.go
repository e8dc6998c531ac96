package indexer

import "sync/atomic"

// IndexLock rejects overlapping ingestion runs without blocking the caller.
// The MCP server holds one per process.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock and reports whether it was free
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether a run currently holds the lock
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
