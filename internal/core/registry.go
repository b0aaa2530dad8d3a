package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]EntityType)
	registryMu sync.RWMutex
)

// Register adds an entity type to the registry.
// Panics if an entity type with the same key is already registered.
func Register(et EntityType) {
	registryMu.Lock()
	defer registryMu.Unlock()

	et.Key = strings.ToLower(et.Key)
	if _, exists := registry[et.Key]; exists {
		panic(fmt.Sprintf("entity type already registered: %s", et.Key))
	}
	if et.Loadable && (et.Table == "" || et.PrimaryKey == "") {
		panic(fmt.Sprintf("loadable entity type %s needs a table and a primary key", et.Key))
	}

	registry[et.Key] = et
}

// Get returns an entity type by key.
// Returns false if not found.
func Get(key string) (EntityType, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	et, ok := registry[strings.ToLower(key)]
	return et, ok
}

// All returns all registered entity types.
// Sorted by category then by key for consistent ordering.
func All() []EntityType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityType, 0, len(registry))
	for _, et := range registry {
		result = append(result, et)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByCategory returns all entity types of a category, sorted by key.
func ByCategory(category string) []EntityType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []EntityType
	for _, et := range registry {
		if et.Category == category {
			result = append(result, et)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Categories returns all non-empty categories, sorted alphabetically.
func Categories() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, et := range registry {
		if et.Category != "" {
			seen[et.Category] = true
		}
	}

	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}

	sort.Strings(cats)
	return cats
}

// Count returns the number of registered entity types.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Selection is the set of entity-type keys included in a run.
type Selection map[string]bool

// Includes reports whether key was selected.
func (s Selection) Includes(key string) bool {
	return s[strings.ToLower(key)]
}

// Keys returns the selected keys in sorted order.
func (s Selection) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Select expands category names into entity-type keys.
// Names that are not a category are taken as keys verbatim.
// An empty list selects every category.
func Select(names []string) Selection {
	if len(names) == 0 {
		names = Categories()
	}
	sel := make(Selection)
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		members := ByCategory(n)
		if len(members) == 0 {
			sel[n] = true
			continue
		}
		for _, et := range members {
			sel[et.Key] = true
		}
	}
	return sel
}

// Relevant reports whether partitions of key should be loaded: the key is
// registered, loadable and selected. The second result is false when key is
// unknown to the registry.
func Relevant(key string, sel Selection) (relevant, known bool) {
	et, ok := Get(key)
	if !ok {
		return false, false
	}
	return et.Loadable && sel.Includes(et.Key), true
}
