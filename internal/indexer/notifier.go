package indexer

import "sync"

// notifier fans a height change out to subscribed trigger channels.
type notifier struct {
	mu   sync.RWMutex
	subs []chan<- struct{}
}

// Subscribe registers ch for height change signals.
func (n *notifier) Subscribe(ch chan<- struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.subs = append(n.subs, ch)
}

func (n *notifier) notify() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs {
		signal(ch)
	}
}

// signal performs a non-blocking send. A full channel already holds a
// pending signal, so dropping this one loses nothing.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
