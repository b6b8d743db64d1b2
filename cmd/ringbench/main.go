// Command ringbench streams synthetic int32 sensor samples through a
// slotring.Ring, one producer and one consumer goroutine, verifying the
// samples arrive gap-free and in order. It reports throughput and the ring's
// counters, and can expose them on /metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aradilov/slotring"
)

func main() {
	configPath := flag.String("config", "", "config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ringbench:", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ringbench:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = run(ctx, cfg, logger, prometheus.NewRegistry())
	// stdout Sync fails on some terminals, that is not worth a non-zero exit
	_ = logger.Sync()
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	conf := zap.NewProductionConfig()
	conf.Level = lvl
	conf.EncoderConfig.TimeKey = "time"
	return conf.Build()
}

// report summarizes a run.
type report struct {
	Samples    int64
	Slots      int64
	MaxLatency time.Duration
	Elapsed    time.Duration
	Stats      slotring.Stats
}

func run(ctx context.Context, cfg *Config, logger *zap.Logger, reg *prometheus.Registry) (*report, error) {
	ring := slotring.New[int32](cfg.Slots, cfg.SlotCapacity,
		slotring.WithLogger(logger),
		slotring.WithClock(func() int64 { return time.Now().UnixMicro() }),
		slotring.WithCloseGrace(cfg.CloseGrace),
	)
	if err := reg.Register(slotring.NewCollector("ringbench", ring, nil)); err != nil {
		return nil, errors.Wrap(err, "register collector")
	}

	producer, err := ring.Producer()
	if err != nil {
		return nil, err
	}
	consumer, err := ring.Consumer()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("starting",
		zap.Int("slots", cfg.Slots),
		zap.Int("slot_capacity", cfg.SlotCapacity),
		zap.Int("read_chunk", cfg.ReadChunk),
		zap.Duration("duration", cfg.Duration))

	rep := &report{}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ring.Close()
	})

	g.Go(func() error {
		var seq int32
		for gctx.Err() == nil {
			s, err := producer.Acquire(cfg.AcquireTimeout)
			switch {
			case errors.Is(err, slotring.ErrTimeout):
				continue
			case errors.Is(err, slotring.ErrClosed):
				return nil
			case err != nil:
				return errors.Wrap(err, "producer")
			}
			data := s.DataAt(0)
			for i := range data {
				data[i] = seq
				seq++
			}
			s.SetFull()
			producer.StampNow()
			producer.Commit()
		}
		return nil
	})

	g.Go(func() error {
		var (
			next int32
			buf  = make([]int32, cfg.ReadChunk)
		)
		for {
			n, ts, err := consumer.Read(cfg.AcquireTimeout, buf)
			switch {
			case errors.Is(err, slotring.ErrTimeout):
				if gctx.Err() != nil {
					return nil
				}
				continue
			case errors.Is(err, slotring.ErrClosed):
				return nil
			case err != nil:
				return errors.Wrap(err, "consumer")
			}
			for _, v := range buf[:n] {
				if v != next {
					return errors.Errorf("sample %d out of order, want %d", v, next)
				}
				next++
			}
			rep.Samples += int64(n)
			if consumer.Index() < 0 {
				rep.Slots++
				if d := time.Duration(time.Now().UnixMicro()-ts) * time.Microsecond; d > rep.MaxLatency {
					rep.MaxLatency = d
				}
			}
		}
	})

	err = g.Wait()
	rep.Elapsed = time.Since(start)
	rep.Stats = ring.Stats()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		shutdownCancel()
	}
	if err != nil {
		return rep, err
	}

	rate := float64(rep.Samples) / rep.Elapsed.Seconds()
	logger.Info("finished",
		zap.Int64("samples", rep.Samples),
		zap.Int64("slots", rep.Slots),
		zap.Float64("samples_per_sec", rate),
		zap.Duration("max_latency", rep.MaxLatency),
		zap.Uint64("write_waits", rep.Stats.WriteWaits),
		zap.Uint64("read_waits", rep.Stats.ReadWaits),
		zap.Uint64("read_timeouts", rep.Stats.ReadTimeouts))
	return rep, nil
}
