package wizard

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// debouncer runs only the last function triggered within delay. A delay of
// zero runs fn immediately on the calling goroutine.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func (d *debouncer) trigger(fn func()) {
	if d.delay <= 0 {
		fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// deferred reports whether triggered functions run after the caller returned.
func (d *debouncer) deferred() bool { return d.delay > 0 }

func searchNotice(one, many string, matches int, query string) string {
	if strings.TrimSpace(query) == "" {
		return "Search cleared."
	}
	if matches == 1 {
		return fmt.Sprintf("1 %s matches %q.", one, query)
	}
	return fmt.Sprintf("%d %s match %q.", matches, many, query)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
