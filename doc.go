// Package slotring provides a bounded ring of fixed-capacity slots, shared by
// exactly one producer goroutine and one consumer goroutine.
//
// Each slot holds a batch of up to SlotCapacity elements (e.g. sensor or audio
// samples) and a (start, length) span describing which part of the batch is
// valid, so a slot may be filled or drained across several operations. Every
// slot also carries an int64 microsecond timestamp that the ring never
// interprets.
//
// The handshake is acquire, transfer, commit:
//
//	i, err := r.AcquireWrite(time.Second) // producer
//	n := copy(r.Slot(i).Data(), samples)
//	r.Slot(i).SetDataSpan(0, n)
//	r.CommitWrite()
//
//	i, err := r.AcquireRead(time.Second) // consumer
//	use(r.Slot(i).Span())
//	r.CommitRead()
//
// Acquire only reports an index; the transfer happens without holding the
// ring's lock, and Commit advances the cursor. Correctness of the transfer
// relies on the single-producer / single-consumer discipline, which Producer
// and Consumer handles make explicit.
package slotring
