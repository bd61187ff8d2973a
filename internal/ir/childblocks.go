package ir

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ChildBlocksMode distinguishes the three shapes a childBlocks setting can take.
type ChildBlocksMode int

const (
	// ChildBlocksNone allows no child blocks.
	ChildBlocksNone ChildBlocksMode = iota
	// ChildBlocksAny allows any block type of the same field as a child.
	ChildBlocksAny
	// ChildBlocksSet allows exactly the listed handles.
	ChildBlocksSet
)

// ChildBlocksWildcard is the config value meaning "any sibling block type".
const ChildBlocksWildcard = "*"

// ChildBlocks is the normalized form of a block type's childBlocks setting.
//
// Config payloads carry it as null, "", "*", a JSON-encoded array string or
// an array of handles; all of those decode into one of the three modes.
type ChildBlocks struct {
	mode    ChildBlocksMode
	handles mapset.Set[string]
}

// NoChildBlocks returns a setting that allows no children.
func NoChildBlocks() ChildBlocks {
	return ChildBlocks{mode: ChildBlocksNone}
}

// AnyChildBlocks returns the "*" setting.
func AnyChildBlocks() ChildBlocks {
	return ChildBlocks{mode: ChildBlocksAny}
}

// ChildBlocksOf returns a setting restricted to the given handles.
// An empty list is the same as NoChildBlocks.
func ChildBlocksOf(handles ...string) ChildBlocks {
	if len(handles) == 0 {
		return NoChildBlocks()
	}
	return ChildBlocks{mode: ChildBlocksSet, handles: mapset.NewThreadUnsafeSet(handles...)}
}

// Mode returns the setting's mode.
func (c ChildBlocks) Mode() ChildBlocksMode {
	return c.mode
}

// Allows reports whether a child of the given handle is permitted.
func (c ChildBlocks) Allows(handle string) bool {
	switch c.mode {
	case ChildBlocksAny:
		return true
	case ChildBlocksSet:
		return c.handles.Contains(handle)
	default:
		return false
	}
}

// Handles returns the allowed handles in sorted order. It is nil unless the
// mode is ChildBlocksSet.
func (c ChildBlocks) Handles() []string {
	if c.mode != ChildBlocksSet {
		return nil
	}
	out := c.handles.ToSlice()
	sort.Strings(out)
	return out
}

// Equal reports whether two settings allow the same children.
func (c ChildBlocks) Equal(other ChildBlocks) bool {
	if c.mode != other.mode {
		return false
	}
	if c.mode != ChildBlocksSet {
		return true
	}
	return c.handles.Equal(other.handles)
}

// Value returns the config representation: nil, "*" or a sorted []any.
func (c ChildBlocks) Value() any {
	switch c.mode {
	case ChildBlocksAny:
		return ChildBlocksWildcard
	case ChildBlocksSet:
		handles := c.Handles()
		out := make([]any, len(handles))
		for i, h := range handles {
			out[i] = h
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (c ChildBlocks) MarshalJSON() ([]byte, error) {
	switch c.mode {
	case ChildBlocksAny:
		return json.Marshal(ChildBlocksWildcard)
	case ChildBlocksSet:
		return json.Marshal(c.Handles())
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ChildBlocks) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("childBlocks: %w", err)
	}
	parsed, err := ParseChildBlocks(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseChildBlocks normalizes any accepted childBlocks representation.
func ParseChildBlocks(raw any) (ChildBlocks, error) {
	switch v := raw.(type) {
	case nil:
		return NoChildBlocks(), nil
	case string:
		s := strings.TrimSpace(v)
		switch {
		case s == "":
			return NoChildBlocks(), nil
		case s == ChildBlocksWildcard:
			return AnyChildBlocks(), nil
		case strings.HasPrefix(s, "["):
			var handles []string
			if err := json.Unmarshal([]byte(s), &handles); err != nil {
				return ChildBlocks{}, fmt.Errorf("childBlocks: invalid encoded list %q: %w", s, err)
			}
			return ChildBlocksOf(handles...), nil
		default:
			return ChildBlocksOf(s), nil
		}
	case []string:
		return ChildBlocksOf(v...), nil
	case []any:
		handles := make([]string, 0, len(v))
		for i, elem := range v {
			h, ok := elem.(string)
			if !ok {
				return ChildBlocks{}, fmt.Errorf("childBlocks[%d]: expected string, got %T", i, elem)
			}
			handles = append(handles, h)
		}
		return ChildBlocksOf(handles...), nil
	case bool:
		// Some older configs stored `false` for "no children".
		if !v {
			return NoChildBlocks(), nil
		}
		return ChildBlocks{}, fmt.Errorf("childBlocks: unsupported value true")
	default:
		return ChildBlocks{}, fmt.Errorf("childBlocks: unsupported type %T", raw)
	}
}
