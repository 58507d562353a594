package castqueue

import (
	"github.com/rs/zerolog"

	"github.com/lixenwraith/castqueue/parameter"
)

type options struct {
	name     string
	logger   zerolog.Logger
	classes  [TierCount]PriorityClass
	capacity int
}

func defaultOptions() options {
	return options{
		name:     parameter.DefaultQueueName,
		logger:   zerolog.Nop(),
		classes:  DefaultPriorityClasses(),
		capacity: parameter.CompletionInboxSize,
	}
}

// Option configures a Queue
type Option func(*options)

// WithName labels the queue in logs and metrics
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the structured logger, zerolog.Nop by default
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPriorityClasses replaces every tier's aging curve
// Invalid classes are ignored and logged at construction
func WithPriorityClasses(classes [TierCount]PriorityClass) Option {
	return func(o *options) {
		o.classes = classes
	}
}

// WithCapacity presizes the backlog arena
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}
