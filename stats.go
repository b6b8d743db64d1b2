package slotring

import (
	"github.com/templexxx/cpu"
	"go.uber.org/atomic"
)

const falseSharingRange = cpu.X86FalseSharingRange

// counters are bumped by the producer and the consumer on their own cache
// lines, and read lock-free by Stats.
type counters struct {
	_ [falseSharingRange]byte

	// producer side
	writeAcquires atomic.Uint64
	writeWaits    atomic.Uint64
	writeTimeouts atomic.Uint64
	writeFull     atomic.Uint64
	writes        atomic.Uint64

	_ [falseSharingRange]byte

	// consumer side
	readAcquires atomic.Uint64
	readWaits    atomic.Uint64
	readTimeouts atomic.Uint64
	readEmpty    atomic.Uint64
	reads        atomic.Uint64

	_ [falseSharingRange]byte

	clears  atomic.Uint64
	resizes atomic.Uint64
}

// Stats is a point-in-time snapshot of a ring's counters.
type Stats struct {
	// WriteAcquires counts AcquireWrite / TryAcquireWrite calls.
	WriteAcquires uint64
	// WriteWaits counts write acquires that had to block on a full ring.
	WriteWaits uint64
	// WriteTimeouts counts write acquires that gave up (timeout, context or close).
	WriteTimeouts uint64
	// WriteFull counts TryAcquireWrite calls rejected with ErrFull.
	WriteFull uint64
	// Writes counts CommitWrite calls.
	Writes uint64

	ReadAcquires uint64
	ReadWaits    uint64
	ReadTimeouts uint64
	ReadEmpty    uint64
	Reads        uint64

	Clears  uint64
	Resizes uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		WriteAcquires: c.writeAcquires.Load(),
		WriteWaits:    c.writeWaits.Load(),
		WriteTimeouts: c.writeTimeouts.Load(),
		WriteFull:     c.writeFull.Load(),
		Writes:        c.writes.Load(),
		ReadAcquires:  c.readAcquires.Load(),
		ReadWaits:     c.readWaits.Load(),
		ReadTimeouts:  c.readTimeouts.Load(),
		ReadEmpty:     c.readEmpty.Load(),
		Reads:         c.reads.Load(),
		Clears:        c.clears.Load(),
		Resizes:       c.resizes.Load(),
	}
}
