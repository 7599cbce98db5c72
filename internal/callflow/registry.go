package callflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"callout-engine/internal/calls"
)

// CallContext is everything a flow may consult: the triggering event, the
// phone call it belongs to, and the prior events for that call. Flows are
// pure functions from this history to markup.
type CallContext struct {
	Event     calls.RemotePhoneCallEvent
	PhoneCall calls.PhoneCall
	History   []calls.RemotePhoneCallEvent
}

// Flow produces the next voice-menu instruction for a call. An empty document
// is a valid terminal response (no further instruction).
type Flow interface {
	ToTwiML(ctx context.Context, cc CallContext) (string, error)
}

// Factory builds a Flow instance.
type Factory func() Flow

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a flow available under name. Flows are registered at process
// start; re-registering a name panics to surface wiring mistakes early.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || f == nil {
		panic("callflow: Register requires a name and a factory")
	}
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("callflow: flow %q registered twice", name))
	}
	registry[name] = f
}

// New instantiates the flow registered under name. An unregistered name is a
// configuration error: callers validate their configured flows at startup and
// treat this error as fatal.
func New(name string) (Flow, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("callflow: no flow registered under %q", name)
	}
	return f(), nil
}

// Registered lists registered flow names, sorted. Useful for diagnostics.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the flow name for a call: participation override first, then
// callout, then account default, then the engine default.
func Resolve(participationFlow, calloutFlow, accountFlow, engineDefault string) string {
	for _, name := range []string{participationFlow, calloutFlow, accountFlow} {
		if name != "" {
			return name
		}
	}
	return engineDefault
}
