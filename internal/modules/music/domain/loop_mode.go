package domain

// LoopMode represents the loop mode for queue playback.
type LoopMode int

const (
	LoopModeOff   LoopMode = iota // Default: no looping
	LoopModeTrack                 // Repeat current track indefinitely
	LoopModeQueue                 // Re-append finished tracks to the queue
)

// String returns a human-readable representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopModeTrack:
		return "track"
	case LoopModeQueue:
		return "queue"
	default:
		return "off"
	}
}

// Cycle returns the next mode in the cycle off -> track -> queue -> off.
func (m LoopMode) Cycle() LoopMode {
	switch m {
	case LoopModeOff:
		return LoopModeTrack
	case LoopModeTrack:
		return LoopModeQueue
	default:
		return LoopModeOff
	}
}

// ParseLoopMode converts a string to a LoopMode.
func ParseLoopMode(s string) LoopMode {
	switch s {
	case "track":
		return LoopModeTrack
	case "queue":
		return LoopModeQueue
	default:
		return LoopModeOff
	}
}
