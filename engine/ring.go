package engine

// ringBuffer is a fixed-capacity FIFO that drops the oldest element when
// full. Not safe for concurrent use; callers hold their own lock.
type ringBuffer[T any] struct {
	buf   []T
	start int
	count int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	return &ringBuffer[T]{buf: make([]T, capacity)}
}

func (r *ringBuffer[T]) Push(v T) {
	if r.count == len(r.buf) {
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
		return
	}
	r.buf[(r.start+r.count)%len(r.buf)] = v
	r.count++
}

func (r *ringBuffer[T]) Len() int { return r.count }

// Do calls fn on every element, oldest first.
func (r *ringBuffer[T]) Do(fn func(T)) {
	for i := 0; i < r.count; i++ {
		fn(r.buf[(r.start+i)%len(r.buf)])
	}
}

func (r *ringBuffer[T]) Clear() {
	r.start = 0
	r.count = 0
}
