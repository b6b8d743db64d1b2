package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/aradilov/slotring"
)

// Config controls a ringbench run. Zero values take the defaults below.
type Config struct {
	Slots          int           `mapstructure:"slots"`
	SlotCapacity   int           `mapstructure:"slot_capacity"`
	ReadChunk      int           `mapstructure:"read_chunk"`
	Duration       time.Duration `mapstructure:"duration"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	CloseGrace     time.Duration `mapstructure:"close_grace"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	LogLevel       string        `mapstructure:"log_level"`
}

const envPrefix = "RINGBENCH"

func (c *Config) applyDefaults() {
	if c.Slots == 0 {
		c.Slots = 8
	}
	if c.SlotCapacity == 0 {
		c.SlotCapacity = 1024
	}
	if c.ReadChunk == 0 {
		c.ReadChunk = 256
	}
	if c.Duration == 0 {
		c.Duration = 5 * time.Second
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = 100 * time.Millisecond
	}
	if c.CloseGrace == 0 {
		c.CloseGrace = slotring.DefaultCloseGrace
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	switch {
	case c.Slots < 1:
		return errors.Errorf("slots must be positive, got %d", c.Slots)
	case c.SlotCapacity < 1:
		return errors.Errorf("slot_capacity must be positive, got %d", c.SlotCapacity)
	case c.ReadChunk < 1:
		return errors.Errorf("read_chunk must be positive, got %d", c.ReadChunk)
	case c.Duration < 0:
		return errors.Errorf("duration must not be negative, got %s", c.Duration)
	}
	return nil
}

// loadConfig reads path (if not empty) and RINGBENCH_* environment overrides.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"slots", "slot_capacity", "read_chunk", "duration",
		"acquire_timeout", "close_grace", "metrics_addr", "log_level",
	} {
		// AutomaticEnv only applies to keys viper knows about.
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", key)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
