package session

import (
	"errors"
	"sync"
)

var ErrReleased = errors.New("buffer released")

// Buffer is an exclusively owned byte slice. Once released its contents are
// dropped and reads fail with [ErrReleased].
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

// NewBuffer takes ownership of data. Callers must not modify data afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the buffer contents. The slice is only valid until Release.
func (b *Buffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	return b.data, nil
}

// Len returns the number of held bytes, 0 after release.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Release drops the contents. Releasing twice or releasing a nil buffer is a no-op.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.data = nil
	b.released = true
	b.mu.Unlock()
}

func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}
