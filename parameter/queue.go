package parameter

import "time"

// Request queue scheduling
const (
	// DefaultQuota is the number of deferred dispatches admitted per tick
	DefaultQuota = 8

	// ContentionWindow is the width of the rolling per-tick count window
	ContentionWindow = 10

	// ConservativeBonus is the extra deferred quota granted when immediate casts saturate a tick
	ConservativeBonus = 2

	// CompletionInboxSize is the initial capacity of the completion inbox buffers
	CompletionInboxSize = 64

	// DefaultQueueName labels logs and metrics when no name is configured
	DefaultQueueName = "castqueue"
)

// Priority tier aging curves: priority(age) = Base * GrowthFactor^(age/GrowthTime)
// Base increases with tier, GrowthFactor and GrowthTime decrease so lower tiers
// grow faster and overtake a starved higher tier after a few seconds
const (
	PriorityLowBase          = 1.0
	PriorityLowGrowthFactor  = 32.0
	PriorityLowGrowthTime    = 1.0
	PriorityMedBase          = 10.0
	PriorityMedGrowthFactor  = 16.0
	PriorityMedGrowthTime    = 0.9
	PriorityHighBase         = 100.0
	PriorityHighGrowthFactor = 8.0
	PriorityHighGrowthTime   = 0.8
	PriorityTopBase          = 1000.0
	PriorityTopGrowthFactor  = 4.0
	PriorityTopGrowthTime    = 0.7
)

// Async dispatcher
const (
	// DispatcherWorkers is the default number of query worker goroutines
	DispatcherWorkers = 4

	// DispatcherBacklog is the job channel capacity; overflow runs inline
	DispatcherBacklog = 1024

	// SandboxTickInterval is the fixed update interval of the probe sandbox
	SandboxTickInterval = 50 * time.Millisecond
)
