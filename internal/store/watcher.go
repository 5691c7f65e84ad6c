package store

import (
	"context"
	"sort"
	"sync"
)

// Watcher collects change notifications for a set of collections. Changes
// arriving while the consumer is busy are coalesced, never dropped: Ready
// fires at least once after every change, and Take drains the pending set.
type Watcher struct {
	collections map[string]struct{}

	mu    sync.Mutex
	dirty map[string]struct{}

	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
	onClose func(*Watcher)
}

func newWatcher(collections []string, onClose func(*Watcher)) *Watcher {
	w := &Watcher{
		collections: make(map[string]struct{}, len(collections)),
		dirty:       make(map[string]struct{}),
		ready:       make(chan struct{}, 1),
		done:        make(chan struct{}),
		onClose:     onClose,
	}
	for _, c := range collections {
		w.collections[c] = struct{}{}
	}
	return w
}

func (w *Watcher) notify(collection string) {
	if _, ok := w.collections[collection]; !ok {
		return
	}
	w.mu.Lock()
	w.dirty[collection] = struct{}{}
	w.mu.Unlock()
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

func (w *Watcher) notifyAll() {
	for c := range w.collections {
		w.notify(c)
	}
}

func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Done is closed by Close.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Take returns the collections changed since the previous call, sorted.
func (w *Watcher) Take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirty))
	for c := range w.dirty {
		out = append(out, c)
	}
	w.dirty = make(map[string]struct{})
	sort.Strings(out)
	return out
}

// Close stops delivery. Safe to call more than once.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		if w.onClose != nil {
			w.onClose(w)
		}
	})
}

// Broadcaster fans change notifications out to registered watchers. Both
// backends use it; the zero value is ready to use.
type Broadcaster struct {
	mu       sync.Mutex
	watchers map[*Watcher]struct{}
}

// Watch registers a watcher that is closed when ctx ends or Close is called.
func (b *Broadcaster) Watch(ctx context.Context, collections ...string) *Watcher {
	w := newWatcher(collections, b.remove)
	b.mu.Lock()
	if b.watchers == nil {
		b.watchers = make(map[*Watcher]struct{})
	}
	b.watchers[w] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-w.done:
		}
	}()
	return w
}

func (b *Broadcaster) remove(w *Watcher) {
	b.mu.Lock()
	delete(b.watchers, w)
	b.mu.Unlock()
}

func (b *Broadcaster) snapshot() []*Watcher {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Watcher, 0, len(b.watchers))
	for w := range b.watchers {
		out = append(out, w)
	}
	return out
}

// Publish marks the collections changed for every interested watcher.
func (b *Broadcaster) Publish(collections ...string) {
	for _, w := range b.snapshot() {
		for _, c := range collections {
			w.notify(c)
		}
	}
}

// PublishAll marks every watched collection changed, used after a change
// feed reconnects and individual notifications may have been missed.
func (b *Broadcaster) PublishAll() {
	for _, w := range b.snapshot() {
		w.notifyAll()
	}
}

// CloseAll closes every registered watcher.
func (b *Broadcaster) CloseAll() {
	for _, w := range b.snapshot() {
		w.Close()
	}
}
