// Package telemetry provides population statistics, performance tracking and run output.
package telemetry

import "github.com/pthm-cable/swarm/systems"

// MatingRecord is one finished or started mating process, as written to
// matings.csv and the run ledger.
type MatingRecord struct {
	Process   uint64  `csv:"process" db:"process"`
	Event     string  `csv:"event" db:"event"`
	Initiator uint32  `csv:"initiator" db:"initiator"`
	Partner   uint32  `csv:"partner" db:"partner"`
	SimTime   float64 `csv:"sim_time" db:"sim_time"`
	Elapsed   float64 `csv:"elapsed" db:"elapsed"`
	Offspring int     `csv:"offspring" db:"offspring"`
	FastPath  bool    `csv:"fast_path" db:"fast_path"`
	Reason    string  `csv:"reason" db:"reason"`
}

// NewMatingRecord flattens a coordinator event.
func NewMatingRecord(ev systems.MatingEvent) MatingRecord {
	return MatingRecord{
		Process:   uint64(ev.Process),
		Event:     ev.Kind.String(),
		Initiator: uint32(ev.Initiator),
		Partner:   uint32(ev.Partner),
		SimTime:   ev.SimTime,
		Elapsed:   ev.Elapsed,
		Offspring: ev.Offspring,
		FastPath:  ev.FastPath,
		Reason:    ev.Reason,
	}
}

// Finished reports whether the record ends a process.
func (r MatingRecord) Finished() bool {
	return r.Event != systems.EventStarted.String()
}
