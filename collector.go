package slotring

import "github.com/prometheus/client_golang/prometheus"

// Observable is the diagnostic view of a Ring, whatever its element type.
type Observable interface {
	Level() int
	SlotCount() int
	SlotCapacity() int
	Stats() Stats
}

var _ Observable = (*Ring[byte])(nil)

// Collector exports a ring's level, geometry and counters to Prometheus.
type Collector struct {
	source Observable

	level        *prometheus.Desc
	slots        *prometheus.Desc
	slotCapacity *prometheus.Desc
	acquires     *prometheus.Desc
	waits        *prometheus.Desc
	timeouts     *prometheus.Desc
	rejected     *prometheus.Desc
	commits      *prometheus.Desc
	clears       *prometheus.Desc
	resizes      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a Collector for source. Per-side counters carry a
// "side" label with the value "read" or "write".
func NewCollector(namespace string, source Observable, constLabels prometheus.Labels) *Collector {
	if source == nil {
		panic(`slotring: nil collector source`)
	}
	side := []string{"side"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "slotring", name), help, labels, constLabels)
	}
	return &Collector{
		source:       source,
		level:        desc("level", "Occupied slots.", nil),
		slots:        desc("slots", "Number of slots.", nil),
		slotCapacity: desc("slot_capacity", "Elements per slot.", nil),
		acquires:     desc("acquires_total", "Acquire calls.", side),
		waits:        desc("waits_total", "Acquires that blocked.", side),
		timeouts:     desc("timeouts_total", "Acquires that gave up waiting.", side),
		rejected:     desc("rejected_total", "Non-blocking acquires refused (full or empty).", side),
		commits:      desc("commits_total", "Committed slots.", side),
		clears:       desc("clears_total", "Clear calls.", nil),
		resizes:      desc("resizes_total", "Resize calls.", nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.level
	ch <- c.slots
	ch <- c.slotCapacity
	ch <- c.acquires
	ch <- c.waits
	ch <- c.timeouts
	ch <- c.rejected
	ch <- c.commits
	ch <- c.clears
	ch <- c.resizes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	gauge := func(d *prometheus.Desc, v int) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	gauge(c.level, c.source.Level())
	gauge(c.slots, c.source.SlotCount())
	gauge(c.slotCapacity, c.source.SlotCapacity())

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.acquires, s.ReadAcquires, "read")
	counter(c.acquires, s.WriteAcquires, "write")
	counter(c.waits, s.ReadWaits, "read")
	counter(c.waits, s.WriteWaits, "write")
	counter(c.timeouts, s.ReadTimeouts, "read")
	counter(c.timeouts, s.WriteTimeouts, "write")
	counter(c.rejected, s.ReadEmpty, "read")
	counter(c.rejected, s.WriteFull, "write")
	counter(c.commits, s.Reads, "read")
	counter(c.commits, s.Writes, "write")
	counter(c.clears, s.Clears)
	counter(c.resizes, s.Resizes)
}
