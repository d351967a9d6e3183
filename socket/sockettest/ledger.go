package sockettest

import "sync"

// ledger is the ordered record of frames a Socket has received. Watchers are
// evaluated under the same lock as the append, so a condition checked and a
// watcher registered in one call cannot miss a frame in between.
type ledger struct {
	mu       sync.Mutex
	messages []string
	watchers map[*watcher]struct{}
	frozen   bool

	// cleared counts frames dropped by clear, so positions stay comparable
	// across a clear.
	cleared int
}

type watcher struct {
	match  func(messages []string, latest string) bool
	done   chan struct{}
	result []string
}

func newLedger() *ledger {
	return &ledger{watchers: make(map[*watcher]struct{})}
}

func (l *ledger) append(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return
	}
	l.messages = append(l.messages, msg)

	for w := range l.watchers {
		if w.match(l.messages, msg) {
			delete(l.watchers, w)
			w.result = l.snapshotLocked()
			close(w.done)
		}
	}
}

// freeze stops further appends.
func (l *ledger) freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
}

func (l *ledger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *ledger) snapshotLocked() []string {
	out := make([]string, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *ledger) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleared += len(l.messages)
	l.messages = l.messages[:0]
}

// positionLocked returns the position of the last occurrence of value counted
// from the first frame ever recorded. With no occurrence it returns the
// position just before the current contents.
func (l *ledger) positionLocked(value string) int {
	if i := lastIndex(l.messages, value); i >= 0 {
		return l.cleared + i
	}
	return l.cleared - 1
}

// check evaluates ready against the current contents.
func (l *ledger) check(ready func(messages []string) bool) ([]string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ready(l.messages) {
		return l.snapshotLocked(), true
	}
	return nil, false
}

// watch evaluates ready against the current contents and, if it does not
// hold, registers match to run on every later append. A nil watcher means
// ready held and the snapshot is returned.
func (l *ledger) watch(ready func(messages []string) bool, match func(messages []string, latest string) bool) ([]string, *watcher) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ready(l.messages) {
		return l.snapshotLocked(), nil
	}

	w := &watcher{match: match, done: make(chan struct{})}
	l.watchers[w] = struct{}{}
	return nil, w
}

// unwatch removes w. It reports false if w already matched.
func (l *ledger) unwatch(w *watcher) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.watchers[w]; !ok {
		return false
	}
	delete(l.watchers, w)
	return true
}

func (l *ledger) watcherCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watchers)
}

func contains(messages []string, value string) bool {
	return lastIndex(messages, value) >= 0
}

func lastIndex(messages []string, value string) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i] == value {
			return i
		}
	}
	return -1
}
