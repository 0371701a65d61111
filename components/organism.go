package components

// EntityID identifies an agent or a food item for its whole lifetime.
// Agents and food share one id space.
type EntityID uint32

// Vitals tracks an agent's metabolic state.
// Value is in absolute energy units; Max is the per-agent capacity.
type Vitals struct {
	Energy    float32 `inspect:"bar"`
	MaxEnergy float32 `inspect:"label,fmt:%.2f"`
	Age       float32 `inspect:"label,fmt:%.1fs"` // simulated seconds alive
	MaxAge    float32 `inspect:"label,fmt:%.1fs"`
	Alive     bool    `inspect:"bool"`
}

// EnergyPercent returns Energy/MaxEnergy clamped to [0,1].
func (v *Vitals) EnergyPercent() float32 {
	if v.MaxEnergy <= 0 {
		return 0
	}
	p := v.Energy / v.MaxEnergy
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// AgeProgress returns Age/MaxAge clamped to [0,1].
func (v *Vitals) AgeProgress() float32 {
	if v.MaxAge <= 0 {
		return 0
	}
	p := v.Age / v.MaxAge
	if p > 1 {
		return 1
	}
	return p
}

// Organism bundles identity and lineage.
type Organism struct {
	ID         EntityID `inspect:"label"`
	Generation uint32   `inspect:"label"`
	ParentA    EntityID `inspect:"label"` // 0 for founders
	ParentB    EntityID `inspect:"label"`
}

// Reproduction holds maturity and cooldown state.
type Reproduction struct {
	MaturityAge   float32 `inspect:"label,fmt:%.1fs"`
	CooldownUntil float64 `inspect:"label,fmt:%.1fs"` // simulated time
	Enabled       bool    `inspect:"bool"`            // false = no reproduction capability
}

// IsMature reports whether an agent of the given age has reached maturity.
func (r *Reproduction) IsMature(age float32) bool {
	return age >= r.MaturityAge
}

// CooldownElapsed reports whether the reproduction cooldown has passed at simNow.
func (r *Reproduction) CooldownElapsed(simNow float64) bool {
	return simNow >= r.CooldownUntil
}
