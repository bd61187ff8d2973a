package projectconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// splitPath splits a dotted path. The empty path has no segments.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// normalize converts v to the generic JSON shapes the tree holds:
// map[string]any, []any, string, float64, bool and nil.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return out, nil
}

// lookup returns the value at segs, or nil.
func lookup(tree map[string]any, segs []string) any {
	var node any = tree
	for _, seg := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[seg]
	}
	return node
}

// assign stores v at segs, creating intermediate maps. A nil v deletes the
// key and prunes maps left empty.
func assign(tree map[string]any, segs []string, v any) {
	if len(segs) == 0 {
		return
	}
	if v == nil {
		remove(tree, segs)
		return
	}
	m := tree
	for _, seg := range segs[:len(segs)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	m[segs[len(segs)-1]] = v
}

func remove(m map[string]any, segs []string) {
	if len(segs) == 1 {
		delete(m, segs[0])
		return
	}
	child, ok := m[segs[0]].(map[string]any)
	if !ok {
		return
	}
	remove(child, segs[1:])
	if len(child) == 0 {
		delete(m, segs[0])
	}
}

// match is one concrete path matched by a pattern.
type match struct {
	path   string
	tokens []string
}

// matches enumerates the paths in tree matched by the pattern segments.
// Results are sorted by path.
func matches(tree map[string]any, pattern []string) []match {
	var out []match
	var walk func(node any, i int, prefix, tokens []string)
	walk = func(node any, i int, prefix, tokens []string) {
		if i == len(pattern) {
			out = append(out, match{
				path:   strings.Join(prefix, "."),
				tokens: append([]string(nil), tokens...),
			})
			return
		}
		m, ok := node.(map[string]any)
		if !ok {
			return
		}
		seg := pattern[i]
		if isCapture(seg) {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(m[k], i+1, append(prefix, k), append(tokens, k))
			}
			return
		}
		if child, ok := m[seg]; ok {
			walk(child, i+1, append(prefix, seg), tokens)
		}
	}
	walk(tree, 0, nil, nil)
	return out
}

// matchPath reports whether path matches the pattern exactly and returns
// the captured tokens.
func matchPath(pattern, segs []string) ([]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var tokens []string
	for i, p := range pattern {
		if isCapture(p) {
			tokens = append(tokens, segs[i])
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return tokens, true
}

func isCapture(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

// deepCopy copies a normalized tree value.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
