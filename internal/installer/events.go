package installer

import "sync"

// EventKind identifies a session lifecycle notification.
type EventKind int

const (
	// EventStart is emitted when a session enters Running.
	EventStart EventKind = iota
	// EventEach is emitted before each task runs.
	EventEach
	// EventData carries raw task output. Chunks are not line-delimited.
	EventData
	// EventStop is emitted once when a session stops, fails or is aborted.
	EventStop
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEach:
		return "each"
	case EventData:
		return "data"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers of a session or factory.
type Event struct {
	Kind    EventKind
	Session *Session
	RunID   string
	Task    *Task
	Data    []byte
	Err     error
}

// BeforeStartGate is consulted before a non-forced start. Returning false
// suppresses the start so an interactive consumer can run the session later.
type BeforeStartGate func(s *Session) bool

type notifier struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(Event)
	order     []int
}

func (n *notifier) subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(Event))
	}
	id := n.next
	n.next++
	n.listeners[id] = fn
	n.order = append(n.order, id)

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
		for i, v := range n.order {
			if v == id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
	}
}

func (n *notifier) emit(e Event) {
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.order))
	for _, id := range n.order {
		fns = append(fns, n.listeners[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

type gates struct {
	mu    sync.Mutex
	next  int
	gates map[int]BeforeStartGate
	order []int
}

func (g *gates) add(gate BeforeStartGate) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gates == nil {
		g.gates = make(map[int]BeforeStartGate)
	}
	id := g.next
	g.next++
	g.gates[id] = gate
	g.order = append(g.order, id)

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.gates, id)
		for i, v := range g.order {
			if v == id {
				g.order = append(g.order[:i], g.order[i+1:]...)
				break
			}
		}
	}
}

// allow runs every gate, even after one has suppressed the start, so each
// consumer sees the session.
func (g *gates) allow(s *Session) bool {
	g.mu.Lock()
	list := make([]BeforeStartGate, 0, len(g.order))
	for _, id := range g.order {
		list = append(list, g.gates[id])
	}
	g.mu.Unlock()

	allowed := true
	for _, gate := range list {
		if !gate(s) {
			allowed = false
		}
	}
	return allowed
}
