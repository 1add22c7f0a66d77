package machine

// A Broadcaster delivers state snapshots to every observer.
//
// Broadcast is called with the machine lock held and must not block.
type Broadcaster interface {
	Broadcast(v interface{})
}

type discard struct{}

func (discard) Broadcast(interface{}) {}
