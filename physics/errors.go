package physics

import "errors"

var (
	ErrOutOfBounds   = errors.New("physics: position out of bounds")
	ErrCellFull      = errors.New("physics: cell full")
	ErrUnknownEntity = errors.New("physics: unknown entity")
	ErrInvalidGrid   = errors.New("physics: invalid grid dimensions")
	ErrNoCallback    = errors.New("physics: caster queued before a completion callback was set")
)
