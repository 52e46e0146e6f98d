// Package solution owns the candidate source buffers during a repair run and
// the history of patches the model proposed for them.
package solution

import "sort"

// Patch records one applied candidate. History is append-only: reverting
// never deletes entries, it only changes what Current returns.
type Patch struct {
	// Attempt is the repair attempt that produced the patch.
	Attempt int
	// Path is the source file the patch replaces.
	Path string
	// Previous is the buffer content before the patch.
	Previous string
	// Updated is the buffer content after the patch.
	Updated string
	// Accepted is set once the patched source passes verification.
	Accepted bool
}

// Tracker holds the current candidate source per file path and every recorded
// state along the way. It is the single owner of that state: callers read and
// write through it and never keep a second mutable copy. A Tracker must not be
// shared between concurrent repair runs.
type Tracker struct {
	current map[string]string
	// states snapshots the buffers after each attempt; key 0 is the original.
	states  map[int]map[string]string
	history []Patch
}

// NewTracker seeds a tracker with the original sources (attempt 0 state).
func NewTracker(sources map[string]string) *Tracker {
	orig := copyMap(sources)
	return &Tracker{
		current: copyMap(orig),
		states:  map[int]map[string]string{0: orig},
	}
}

// Current returns a copy of the candidate sources keyed by file path.
func (t *Tracker) Current() map[string]string {
	return copyMap(t.current)
}

// ApplyPatch replaces the buffer for path, records the patch in history, and
// snapshots the resulting state under the attempt number.
func (t *Tracker) ApplyPatch(path, newText string, attempt int) {
	prev := t.current[path]
	t.current[path] = newText
	t.states[attempt] = copyMap(t.current)
	t.history = append(t.history, Patch{
		Attempt:  attempt,
		Path:     path,
		Previous: prev,
		Updated:  newText,
	})
}

// RevertTo restores the most recent recorded state at or before the given
// attempt number. History is untouched.
func (t *Tracker) RevertTo(attempt int) {
	recorded := make([]int, 0, len(t.states))
	for n := range t.states {
		if n <= attempt {
			recorded = append(recorded, n)
		}
	}
	if len(recorded) == 0 {
		return
	}
	sort.Ints(recorded)
	t.current = copyMap(t.states[recorded[len(recorded)-1]])
}

// Accept marks every history entry of the given attempt as accepted.
func (t *Tracker) Accept(attempt int) {
	for i := range t.history {
		if t.history[i].Attempt == attempt {
			t.history[i].Accepted = true
		}
	}
}

// History returns a copy of the append-only patch record.
func (t *Tracker) History() []Patch {
	out := make([]Patch, len(t.history))
	copy(out, t.history)
	return out
}

// Original returns a copy of the untouched attempt-0 sources.
func (t *Tracker) Original() map[string]string {
	return copyMap(t.states[0])
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
