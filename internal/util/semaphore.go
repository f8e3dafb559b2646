package util

// Semaphore is a counting semaphore with a FIFO waiter queue, backed by a
// buffered channel. It bounds the File Hasher's worker pool and the
// scheduler's concurrency limit (spec.md §5).
type Semaphore struct {
	permits chan struct{}
}

// NewSemaphore creates a Semaphore with n permits. n <= 0 is treated as 1,
// since a concurrency of zero can never make progress.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{permits: make(chan struct{}, n)}
}

// Acquire blocks until a permit is available.
func (s *Semaphore) Acquire() {
	s.permits <- struct{}{}
}

// TryAcquire acquires a permit without blocking, reporting whether it
// succeeded.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.permits <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a permit to the pool.
func (s *Semaphore) Release() {
	<-s.permits
}

// Cap returns the semaphore's permit capacity.
func (s *Semaphore) Cap() int {
	return cap(s.permits)
}
