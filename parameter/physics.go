package parameter

// Query result capacities, fixed so results live inline without allocation
const (
	// MaxRayHits bounds the hits reported by a single ray cast
	MaxRayHits = 8

	// MaxIntersectHits bounds the entities reported by a single shape intersection
	MaxIntersectHits = 16

	// MaxSkipEntities bounds the entities a query may exclude
	MaxSkipEntities = 4
)

// Query world defaults
const (
	// QueryGridWidth is the default width of the query world grid
	QueryGridWidth = 120

	// QueryGridHeight is the default height of the query world grid
	QueryGridHeight = 40

	// QueryCellCapacity is the number of entities a single grid cell can hold
	QueryCellCapacity = 7
)

// Swarm probing
const (
	// ProbeDistanceFloat is how far ahead an agent probes, in cells
	ProbeDistanceFloat = 6.0

	// AvoidDistanceFloat is the hit distance below which an agent turns away
	AvoidDistanceFloat = 3.0

	// AgentSpeedFloat is the agent cruise speed in cells per second
	AgentSpeedFloat = 8.0
)
