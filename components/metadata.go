package components

// FieldDescriptor describes a readout field for display and log layers.
type FieldDescriptor struct {
	ID     string  // Unique identifier
	Label  string  // Display name
	Format string  // Printf format (e.g., "%.2f")
	Min    float32 // Minimum value (for bars)
	Max    float32 // Maximum value (for bars)
	IsBar  bool    // True to render as progress bar
	Group  string  // Logical grouping
}

// Readout is the read-only view of an agent exposed to visualization,
// UI and logging layers. It is a copy; mutating it has no effect on the agent.
type Readout struct {
	ID            EntityID
	Position      Position
	BehaviorTag   BehaviorTag
	IsMating      bool
	EnergyPercent float32
	AgeProgress   float32
	Generation    uint32
}

// NewReadout builds a Readout from component values.
func NewReadout(org *Organism, pos *Position, vit *Vitals, beh *Behavior) Readout {
	return Readout{
		ID:            org.ID,
		Position:      *pos,
		BehaviorTag:   beh.Tag,
		IsMating:      beh.Mating,
		EnergyPercent: vit.EnergyPercent(),
		AgeProgress:   vit.AgeProgress(),
		Generation:    org.Generation,
	}
}

// ReadoutFieldDescriptors returns metadata for Readout fields.
// Field IDs must match cases in GetReadoutValue().
func ReadoutFieldDescriptors() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: "energy", Label: "Energy", Format: "%.2f", Min: 0, Max: 1, IsBar: true, Group: "vitals"},
		{ID: "age", Label: "Age", Format: "%.2f", Min: 0, Max: 1, IsBar: true, Group: "vitals"},
		{ID: "behavior", Label: "Behavior", Format: "%.0f", Min: 0, Max: float32(BehaviorTagCount() - 1), Group: "state"},
		{ID: "mating", Label: "Mating", Format: "%.0f", Min: 0, Max: 1, Group: "state"},
		{ID: "generation", Label: "Gen", Format: "%.0f", Group: "lineage"},
	}
}

// GetReadoutValue extracts a readout field value by ID.
func GetReadoutValue(r *Readout, fieldID string) float32 {
	switch fieldID {
	case "energy":
		return r.EnergyPercent
	case "age":
		return r.AgeProgress
	case "behavior":
		return float32(r.BehaviorTag)
	case "mating":
		if r.IsMating {
			return 1
		}
		return 0
	case "generation":
		return float32(r.Generation)
	default:
		return 0
	}
}
