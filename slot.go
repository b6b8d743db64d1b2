package slotring

// Slot is one fixed-capacity batch of the ring.
//
// The valid data of a slot is the span [Start(), Start()+Len()). The span
// setters do not check bounds: keeping start+length <= Cap() is up to the
// caller, and violating it panics on the next slice access.
type Slot[T any] struct {
	data   []T // fixed length, set by Resize
	start  int // first valid element
	length int // number of valid elements from start
}

// Resize reallocates the storage to capacity elements and empties the span.
// Previous contents are lost.
func (s *Slot[T]) Resize(capacity int) {
	s.data = make([]T, capacity)
	s.start = 0
	s.length = 0
}

// SetEmpty marks the slot as holding no data.
func (s *Slot[T]) SetEmpty() {
	s.start = 0
	s.length = 0
}

// SetFull marks the whole storage as valid.
func (s *Slot[T]) SetFull() {
	s.start = 0
	s.length = len(s.data)
}

// SetDataSpan sets the valid range to [start, start+length).
func (s *Slot[T]) SetDataSpan(start, length int) {
	s.start = start
	s.length = length
}

// SetDataUsed consumes n elements from the front of the span.
func (s *Slot[T]) SetDataUsed(n int) {
	s.start += n
	s.length -= n
}

// SetDataAdded extends the span by n elements at its end.
func (s *Slot[T]) SetDataAdded(n int) {
	s.length += n
}

// Data returns the storage from the span start to the end of the slot, for
// zero-copy reads and writes in place.
func (s *Slot[T]) Data() []T {
	return s.data[s.start:]
}

// DataAt returns the storage from absolute index i, ignoring the span.
func (s *Slot[T]) DataAt(i int) []T {
	return s.data[i:]
}

// Span returns the valid elements only.
func (s *Slot[T]) Span() []T {
	return s.data[s.start : s.start+s.length]
}

func (s *Slot[T]) Cap() int {
	return len(s.data)
}

// Len returns the span length.
func (s *Slot[T]) Len() int {
	return s.length
}

func (s *Slot[T]) Start() int {
	return s.start
}
