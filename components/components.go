// Package components defines ECS components for the simulation.
package components

import "fmt"

// BehaviorTag is the single active state of an agent's behavior state machine.
type BehaviorTag uint8

const (
	TagWander   BehaviorTag = iota // Initial state, nothing better to do
	TagForage                      // Hungry and heading for food
	TagSeekMate                    // Eligible and heading for a mate
	TagMate                        // Held by an active mating process
)

// Behavior holds the state machine data for one agent.
type Behavior struct {
	Tag       BehaviorTag
	TargetID  EntityID // food or mate being approached
	HasTarget bool
	Mating    bool     // set while a mating process holds this agent
	Partner   EntityID // mating partner while Mating
	Changes   uint32   // number of tag transitions, for telemetry
}

// Schedule records when an agent was last evaluated.
type Schedule struct {
	LastUpdate    float64 // real seconds
	LastSimUpdate float64 // simulated seconds
}

// String returns the display name for a BehaviorTag.
func (t BehaviorTag) String() string {
	names := BehaviorTagNames()
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// BehaviorTagNames returns the display names for all tags.
// The order matches the BehaviorTag constants.
func BehaviorTagNames() []string {
	return []string{"Wander", "Forage", "SeekMate", "Mate"}
}

// BehaviorTagCount returns the number of behavior tags.
func BehaviorTagCount() int {
	return len(BehaviorTagNames())
}

// ParseBehaviorTag converts a display name back into a tag.
func ParseBehaviorTag(s string) (BehaviorTag, error) {
	for i, name := range BehaviorTagNames() {
		if name == s {
			return BehaviorTag(i), nil
		}
	}
	return TagWander, fmt.Errorf("unknown behavior tag %q", s)
}

// Valid reports whether t is one of the declared tags.
func (t BehaviorTag) Valid() bool {
	return int(t) < BehaviorTagCount()
}
