package systems

// PhaseInfo describes one phase of a simulation frame.
type PhaseInfo struct {
	ID          string // Internal identifier (used for perf tracking)
	Name        string // Display name
	Description string // What the phase does
	Category    string // Grouping (e.g., "core", "mating")
}

// PhaseRegistry holds metadata about the frame phases, in frame order.
// This centralizes phase naming so the CLI and perf tracker stay in sync.
type PhaseRegistry struct {
	phases []PhaseInfo
	byID   map[string]PhaseInfo
}

// NewPhaseRegistry creates a registry with every frame phase.
func NewPhaseRegistry() *PhaseRegistry {
	reg := &PhaseRegistry{
		byID: make(map[string]PhaseInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all frame phases in execution order.
// Update this when adding new phases.
func (r *PhaseRegistry) registerDefaults() {
	r.Register(PhaseInfo{ID: "spatial", Name: "Spatial Snapshot", Description: "Copies the spatial index and reservations for workers", Category: "core"})
	r.Register(PhaseInfo{ID: "scheduler", Name: "Scheduler", Description: "Updates the due agents within the frame budget", Category: "core"})
	r.Register(PhaseInfo{ID: "decisions", Name: "Decisions", Description: "Resolves behavior transitions, inline or on workers", Category: "behavior"})
	r.Register(PhaseInfo{ID: "mating", Name: "Mating", Description: "Advances, validates and completes mating processes", Category: "mating"})
	r.Register(PhaseInfo{ID: "dispatch", Name: "Dispatch", Description: "Applies offspring and end-of-mating commands", Category: "mating"})
	r.Register(PhaseInfo{ID: "food", Name: "Food", Description: "Regrows eaten food items", Category: "environment"})
	r.Register(PhaseInfo{ID: "cleanup", Name: "Cleanup", Description: "Removes dead agents", Category: "core"})
	r.Register(PhaseInfo{ID: "telemetry", Name: "Telemetry", Description: "Flushes stats windows and output", Category: "internal"})
}

// Register adds a phase to the registry.
func (r *PhaseRegistry) Register(info PhaseInfo) {
	r.phases = append(r.phases, info)
	r.byID[info.ID] = info
}

// Get returns phase info by ID.
func (r *PhaseRegistry) Get(id string) (PhaseInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// Name returns the display name for a phase ID.
// Falls back to the ID itself if not found.
func (r *PhaseRegistry) Name(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered phases.
func (r *PhaseRegistry) All() []PhaseInfo {
	return r.phases
}

// ByCategory returns phases filtered by category.
func (r *PhaseRegistry) ByCategory(category string) []PhaseInfo {
	var result []PhaseInfo
	for _, info := range r.phases {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// IDs returns all phase IDs in frame order.
func (r *PhaseRegistry) IDs() []string {
	ids := make([]string, len(r.phases))
	for i, info := range r.phases {
		ids[i] = info.ID
	}
	return ids
}
