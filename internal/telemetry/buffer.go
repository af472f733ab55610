package telemetry

// sampleRing keeps the last cap(items) values pushed, overwriting the oldest.
// It is not synchronized; IngestMetrics guards it with its mutex.
type sampleRing[T any] struct {
	items []T
	next  int
	full  bool
}

func newSampleRing[T any](capacity int) *sampleRing[T] {
	return &sampleRing[T]{items: make([]T, max(capacity, 1))}
}

func (r *sampleRing[T]) push(v T) {
	r.items[r.next] = v
	r.next++
	if r.next == len(r.items) {
		r.next = 0
		r.full = true
	}
}

// snapshot returns a copy of the held values, oldest first.
func (r *sampleRing[T]) snapshot() []T {
	if !r.full {
		return append([]T{}, r.items[:r.next]...)
	}
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}
