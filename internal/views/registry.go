package views

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]View)
	registryMu sync.RWMutex
)

// Register adds a view to the registry.
// Panics if a view with the same key is already registered.
func Register(v View) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[v.Key]; exists {
		panic(fmt.Sprintf("view already registered: %s", v.Key))
	}
	registry[v.Key] = v
}

// Get returns a view by key.
// Returns false if not found.
func Get(key string) (View, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	v, ok := registry[key]
	return v, ok
}

// All returns all registered views.
// Sorted by group then by key for consistent ordering.
func All() []View {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]View, 0, len(registry))
	for _, v := range registry {
		result = append(result, v)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByGroup returns all views of a group, sorted by key.
func ByGroup(group string) []View {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []View
	for _, v := range registry {
		if v.Group == group {
			result = append(result, v)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Groups returns all unique group names, sorted.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, v := range registry {
		seen[v.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// Allowed returns the views p may open, grouped in registry order.
func Allowed(p Permissions) []View {
	var out []View
	for _, v := range All() {
		if v.Allowed(p) {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of registered views.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered views.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]View)
}
