package engine

import (
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/mitchellfyi/lofield/script"
)

// Disposable is any runtime object a performance program can construct that
// owns resources requiring explicit release. The active session exclusively
// owns every Disposable created during its evaluation pass and releases
// them in one sweep at stop or render completion.
type Disposable interface {
	Dispose()
}

// Resources collects the Disposables of one session. A program may keep
// constructing objects from scheduled transport callbacks on the render
// goroutine after the evaluation pass returned, while the session owner
// reads the set from another goroutine, so the list is guarded.
type Resources struct {
	mu   sync.Mutex
	list []Disposable
}

// Add appends a constructed object to the session's set.
func (r *Resources) Add(d Disposable) {
	r.mu.Lock()
	r.list = append(r.list, d)
	r.mu.Unlock()
}

// Items returns a copy of the tracked objects in construction order.
func (r *Resources) Items() []Disposable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Disposable(nil), r.list...)
}

// Len returns how many objects are tracked.
func (r *Resources) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// TrackNamespace wraps a script namespace so that everything a program
// constructs through it is captured. Every uppercase-named callable export
// (a constructor by convention) is replaced by a version that adds the
// constructed instance to res when it is a Disposable; all other exports
// pass through untouched. Constructed instances behave identically to the
// unwrapped ones.
func TrackNamespace(ns *script.Dict, res *Resources) *script.Dict {
	wrapped := make(map[string]script.Value, len(ns.Entries))
	for name, v := range ns.Entries {
		ctor, ok := v.(script.Callable)
		if !ok || !startsUpper(name) {
			wrapped[name] = v
			continue
		}
		wrapped[name] = script.NativeFunc(func(args []script.Value) (script.Value, error) {
			instance, err := ctor.Call(args)
			if err != nil {
				return nil, err
			}
			if d, ok := instance.(Disposable); ok {
				res.Add(d)
			}
			return instance, nil
		})
	}
	return &script.Dict{Entries: wrapped}
}

func startsUpper(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
