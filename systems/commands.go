package systems

import (
	"fmt"
	"sync"
)

// Command is an opaque mutation request issued by the core and applied by
// the game's dispatcher on the tick thread.
type Command interface {
	fmt.Stringer
	command()
}

// Outcome describes how a mating process ended.
type Outcome uint8

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CreateOffspring asks the dispatcher to spawn a new agent.
type CreateOffspring struct {
	ParentA   EntityID
	ParentB   EntityID
	Position  Vec2
	ProcessID ProcessID
}

func (CreateOffspring) command() {}

func (c CreateOffspring) String() string {
	return fmt.Sprintf("CreateOffspring{%d+%d at (%.2f,%.2f) p%d}", c.ParentA, c.ParentB, c.Position.X, c.Position.Y, c.ProcessID)
}

// EndMating tells one participant its mating process is over.
type EndMating struct {
	Agent     EntityID
	Partner   EntityID
	ProcessID ProcessID
	Outcome   Outcome
}

func (EndMating) command() {}

func (c EndMating) String() string {
	return fmt.Sprintf("EndMating{%d (partner %d) p%d %s}", c.Agent, c.Partner, c.ProcessID, c.Outcome)
}

// CommandSink accepts commands for later application.
type CommandSink interface {
	Dispatch(cmd Command)
}

// CommandQueue is a FIFO CommandSink drained once per frame.
type CommandQueue struct {
	mu   sync.Mutex
	cmds []Command
}

// Dispatch appends a command.
func (q *CommandQueue) Dispatch(cmd Command) {
	q.mu.Lock()
	q.cmds = append(q.cmds, cmd)
	q.mu.Unlock()
}

// Drain returns all queued commands in dispatch order and empties the queue.
// dst is reused when it has capacity.
func (q *CommandQueue) Drain(dst []Command) []Command {
	q.mu.Lock()
	dst = append(dst[:0], q.cmds...)
	clear(q.cmds)
	q.cmds = q.cmds[:0]
	q.mu.Unlock()
	return dst
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cmds)
}
