package progress

// EventKind enumerates the progress event stream spec.md §6 defines as
// "the only contract the optional terminal UI consumes".
type EventKind string

const (
	EventTaskStart  EventKind = "task-start"
	EventTaskStdout EventKind = "task-stdout"
	EventTaskStderr EventKind = "task-stderr"
	EventTaskEnd    EventKind = "task-end"
	EventSummary    EventKind = "summary"
)

// Event is a single item on the progress stream. Fields not relevant to
// Kind are left zero-valued.
type Event struct {
	Kind EventKind

	TaskID  string // task-start, task-stdout, task-stderr, task-end
	Command string // task-start

	Chunk string // task-stdout, task-stderr

	Success     bool  // task-end
	ExitCode    int   // task-end
	DurationMs  int64 // task-end
	Cached      bool  // task-end

	Total   int   // summary
	Succeed int   // summary
	Failed  int   // summary
	Skipped int   // summary
	TotalMs int64 // summary
}

// Subscriber receives progress events. The scheduler fans out to every
// registered subscriber synchronously, in emission order.
type Subscriber interface {
	OnEvent(Event)
}

// Broadcaster is a concrete Subscriber that fans out to zero or more
// downstream subscribers, used so the scheduler only needs to hold one
// Subscriber reference (e.g. both a terminal renderer and a log file).
type Broadcaster struct {
	subscribers []Subscriber
}

// NewBroadcaster constructs a Broadcaster over the given subscribers.
func NewBroadcaster(subscribers ...Subscriber) *Broadcaster {
	return &Broadcaster{subscribers: subscribers}
}

// OnEvent implements Subscriber.
func (b *Broadcaster) OnEvent(e Event) {
	for _, s := range b.subscribers {
		s.OnEvent(e)
	}
}
