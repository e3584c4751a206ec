package watch

import "time"

// Trigger describes the burst of changes that caused a rebuild.
type Trigger struct {
	// Count is the number of relevant events in the burst.
	Count int
	// LastPath is the most recently changed path.
	LastPath string
	First    time.Time
	Last     time.Time
	// Cause is "quiet" or "max_delay".
	Cause string
}

// debouncer accumulates change events until the loop flushes them. It is
// owned by the Watcher loop goroutine.
type debouncer struct {
	pending  bool
	first    time.Time
	last     time.Time
	lastPath string
	count    int
}

// add records one event and reports whether it opened a new burst.
func (d *debouncer) add(path string, now time.Time) bool {
	opened := !d.pending
	if opened {
		d.pending = true
		d.first = now
		d.count = 0
	}
	d.last = now
	d.lastPath = path
	d.count++
	return opened
}

// flush ends the burst.
func (d *debouncer) flush(cause string) (Trigger, bool) {
	if !d.pending {
		return Trigger{}, false
	}
	t := Trigger{
		Count:    d.count,
		LastPath: d.lastPath,
		First:    d.first,
		Last:     d.last,
		Cause:    cause,
	}
	*d = debouncer{}
	return t, true
}
