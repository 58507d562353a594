// Package config loads queue, admission, priority and dispatcher settings from TOML
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/lixenwraith/castqueue/castqueue"
	"github.com/lixenwraith/castqueue/contention"
	"github.com/lixenwraith/castqueue/parameter"
	"github.com/lixenwraith/castqueue/physics"
)

var (
	ErrUnknownKey = errors.New("config: unknown key")
	ErrInvalid    = errors.New("config: invalid value")
)

type Config struct {
	Queue      QueueConfig      `toml:"queue"`
	Contention ContentionConfig `toml:"contention"`
	Priority   PriorityConfig   `toml:"priority"`
	Dispatcher DispatcherConfig `toml:"dispatcher"`
	Log        LogConfig        `toml:"log"`
}

type QueueConfig struct {
	Name string `toml:"name"`
}

type ContentionConfig struct {
	Policy string `toml:"policy"`
	Quota  int    `toml:"quota"`
	Window int    `toml:"window"`
	// Optional wall-clock cap: duration string -> max dispatches in that window
	Rates map[string]int `toml:"rates"`
}

type ClassConfig struct {
	Base         float64 `toml:"base"`
	GrowthFactor float64 `toml:"growth_factor"`
	GrowthTime   float64 `toml:"growth_time"`
}

type PriorityConfig struct {
	Low     ClassConfig `toml:"low"`
	Medium  ClassConfig `toml:"medium"`
	High    ClassConfig `toml:"high"`
	Highest ClassConfig `toml:"highest"`
}

type DispatcherConfig struct {
	Workers int `toml:"workers"`
	Backlog int `toml:"backlog"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the built-in settings
func Default() *Config {
	classes := castqueue.DefaultPriorityClasses()
	class := func(t castqueue.Tier) ClassConfig {
		c := classes[t]
		return ClassConfig{Base: c.Base, GrowthFactor: c.GrowthFactor, GrowthTime: c.GrowthTime}
	}
	return &Config{
		Queue: QueueConfig{Name: parameter.DefaultQueueName},
		Contention: ContentionConfig{
			Policy: contention.PolicyDefault.String(),
			Quota:  parameter.DefaultQuota,
			Window: parameter.ContentionWindow,
		},
		Priority: PriorityConfig{
			Low:     class(castqueue.Low),
			Medium:  class(castqueue.Medium),
			High:    class(castqueue.High),
			Highest: class(castqueue.Highest),
		},
		Dispatcher: DispatcherConfig{
			Workers: parameter.DispatcherWorkers,
			Backlog: parameter.DispatcherBacklog,
		},
		Log: LogConfig{Level: zerolog.InfoLevel.String()},
	}
}

// Load reads a TOML file over the defaults; an empty path returns the defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML over the defaults and validates the result
// Keys the schema does not know are rejected
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs error

	if strings.TrimSpace(c.Queue.Name) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: queue.name is empty", ErrInvalid))
	}
	if _, err := contention.ParsePolicy(c.Contention.Policy); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: contention.policy: %w", ErrInvalid, err))
	}
	if c.Contention.Quota < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: contention.quota %d is negative", ErrInvalid, c.Contention.Quota))
	}
	if c.Contention.Window <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: contention.window %d must be positive", ErrInvalid, c.Contention.Window))
	}
	if len(c.Contention.Rates) > 0 {
		if _, err := c.Rates(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: contention.rates: %w", ErrInvalid, err))
		}
	}

	classes := c.PriorityClasses()
	for i, class := range classes {
		if err := class.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: priority.%s: %w", ErrInvalid, castqueue.Tier(i), err))
		}
	}

	if c.Dispatcher.Workers <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: dispatcher.workers %d must be positive", ErrInvalid, c.Dispatcher.Workers))
	}
	if c.Dispatcher.Backlog < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: dispatcher.backlog %d is negative", ErrInvalid, c.Dispatcher.Backlog))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalid, err))
	}
	return errs
}

// Rates parses the duration keys of contention.rates
func (c *Config) Rates() (map[time.Duration]int, error) {
	rates := make(map[time.Duration]int, len(c.Contention.Rates))
	for k, n := range c.Contention.Rates {
		d, err := time.ParseDuration(k)
		if err != nil {
			return nil, err
		}
		rates[d] = n
	}
	if err := contention.ValidateRates(rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// Controller builds the admission controller, wrapped in a rate limiter when rates are set
func (c *Config) Controller() (contention.Controller, error) {
	policy, err := contention.ParsePolicy(c.Contention.Policy)
	if err != nil {
		return nil, err
	}
	ctrl, err := contention.New(policy, c.Contention.Quota, c.Contention.Window)
	if err != nil {
		return nil, err
	}
	if len(c.Contention.Rates) == 0 {
		return ctrl, nil
	}
	rates, err := c.Rates()
	if err != nil {
		return nil, err
	}
	return contention.NewRateLimited(ctrl, c.Queue.Name, rates)
}

// PriorityClasses returns the aging curves indexed by tier
func (c *Config) PriorityClasses() [castqueue.TierCount]castqueue.PriorityClass {
	conv := func(cc ClassConfig) castqueue.PriorityClass {
		return castqueue.PriorityClass{Base: cc.Base, GrowthFactor: cc.GrowthFactor, GrowthTime: cc.GrowthTime}
	}
	return [castqueue.TierCount]castqueue.PriorityClass{
		castqueue.Low:     conv(c.Priority.Low),
		castqueue.Medium:  conv(c.Priority.Medium),
		castqueue.High:    conv(c.Priority.High),
		castqueue.Highest: conv(c.Priority.Highest),
	}
}

func (c *Config) LogLevel() (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.Log.Level)))
}

// QueueOptions returns the castqueue options this configuration implies
func (c *Config) QueueOptions(logger zerolog.Logger) []castqueue.Option {
	return []castqueue.Option{
		castqueue.WithName(c.Queue.Name),
		castqueue.WithLogger(logger),
		castqueue.WithPriorityClasses(c.PriorityClasses()),
	}
}

// DispatcherOptions returns the worker pool options this configuration implies
func (c *Config) DispatcherOptions(logger zerolog.Logger) []physics.DispatcherOption {
	return []physics.DispatcherOption{
		physics.WithWorkers(c.Dispatcher.Workers),
		physics.WithBacklog(c.Dispatcher.Backlog),
		physics.WithDispatcherLogger(logger),
	}
}
