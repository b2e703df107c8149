package world

import "fmt"

// State is the world lifecycle state.
type State int

const (
	Uninitialized State = iota
	Configuring
	Running
	Finalized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
