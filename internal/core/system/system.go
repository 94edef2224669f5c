package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain room command queues
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: simulate rooms
	PhasePostUpdate              // 3: unused
	PhaseOutput                  // 4: encode + broadcast snapshots
	PhasePersist                 // 5: unused, results are submitted by the finalizer
	PhaseCleanup                 // 6: tear down finished rooms
)

// System is one stage of the game loop.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
