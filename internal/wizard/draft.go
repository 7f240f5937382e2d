package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPath  = errors.New("invalid field path")
	ErrItemNotFound = errors.New("item not found")
)

// Draft is the not-yet-submitted form data of a wizard. It is treated as immutable:
// every change returns a new Draft that copies only the maps and slices on the changed path.
// Nested objects must be map[string]any and arrays []any.
type Draft map[string]any

type segment struct {
	key      string
	selector bool
}

// parsePath splits "address.city", "selected_categories[c1]" or "items[id].name".
func parsePath(path string) ([]segment, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	var segs []segment
	for _, part := range strings.Split(path, ".") {
		name, rest, hasBracket := strings.Cut(part, "[")
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		segs = append(segs, segment{key: name})

		for hasBracket {
			var sel string
			var ok bool
			sel, rest, ok = strings.Cut(rest, "]")
			if !ok || sel == "" {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
			}
			segs = append(segs, segment{key: sel, selector: true})
			if rest == "" {
				break
			}
			if rest[0] != '[' {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
			}
			rest = rest[1:]
		}
	}
	return segs, nil
}

// Get returns the value at path.
func (d Draft) Get(path string) (any, bool) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, false
	}

	var node any = map[string]any(d)
	for _, seg := range segs {
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[seg.key]
			if !ok {
				return nil, false
			}
			node = v
		case []any:
			if !seg.selector {
				return nil, false
			}
			i := indexOf(n, seg.key)
			if i < 0 {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// With returns a copy of d with path set to value. Siblings are shared, not copied.
// Missing intermediate objects are created.
func (d Draft) With(path string, value any) (Draft, error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	root, err := setPath(map[string]any(d), segs, value, path)
	if err != nil {
		return nil, err
	}
	return Draft(root.(map[string]any)), nil
}

func setPath(node any, segs []segment, value any, path string) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg := segs[0]

	switch n := node.(type) {
	case nil:
		child, err := setPath(nil, segs[1:], value, path)
		if err != nil {
			return nil, err
		}
		return map[string]any{seg.key: child}, nil
	case Draft:
		return setPath(map[string]any(n), segs, value, path)
	case map[string]any:
		child, err := setPath(n[seg.key], segs[1:], value, path)
		if err != nil {
			return nil, err
		}
		copied := make(map[string]any, len(n)+1)
		for k, v := range n {
			copied[k] = v
		}
		copied[seg.key] = child
		return copied, nil
	case []any:
		if !seg.selector {
			return nil, fmt.Errorf("%w: %q addresses an array without an item id", ErrInvalidPath, path)
		}
		i := indexOf(n, seg.key)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s in %q", ErrItemNotFound, seg.key, path)
		}
		child, err := setPath(n[i], segs[1:], value, path)
		if err != nil {
			return nil, err
		}
		copied := make([]any, len(n))
		copy(copied, n)
		copied[i] = child
		return copied, nil
	default:
		return nil, fmt.Errorf("%w: %q descends into a %T", ErrInvalidPath, path, node)
	}
}

// indexOf finds the array element whose "id" equals id.
func indexOf(items []any, id string) int {
	for i, it := range items {
		if m, ok := it.(map[string]any); ok && fmt.Sprint(m["id"]) == id {
			return i
		}
	}
	return -1
}

// FromRecord flattens an existing record into a draft for edit mode.
func FromRecord(record any) (Draft, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode record into draft: %w", err)
	}
	return d, nil
}
