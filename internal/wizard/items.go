package wizard

import (
	"fmt"
)

// Add appends item to the array at path under a fresh id and returns that id.
// A missing array is created.
func (c *Controller) Add(path string, item map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var items []any
	if v, ok := c.draft.Get(path); ok && v != nil {
		arr, isArray := v.([]any)
		if !isArray {
			return "", fmt.Errorf("%w: %q is not an array", ErrInvalidPath, path)
		}
		items = arr
	}

	id := c.newID()
	for indexOf(items, id) >= 0 {
		id = c.newID()
	}

	entry := make(map[string]any, len(item)+1)
	for k, v := range item {
		entry[k] = v
	}
	entry["id"] = id

	next := make([]any, len(items), len(items)+1)
	copy(next, items)
	next = append(next, entry)

	d, err := c.draft.With(path, next)
	if err != nil {
		return "", err
	}
	c.draft = d
	return id, nil
}

// Remove drops the item with id from the array at path.
func (c *Controller) Remove(path, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.draft.Get(path)
	items, isArray := v.([]any)
	if !ok || !isArray {
		return fmt.Errorf("%w: %q is not an array", ErrInvalidPath, path)
	}
	if indexOf(items, id) < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	kept := make([]any, 0, len(items)-1)
	for _, it := range items {
		if m, ok := it.(map[string]any); ok && fmt.Sprint(m["id"]) == id {
			continue
		}
		kept = append(kept, it)
	}

	d, err := c.draft.With(path, kept)
	if err != nil {
		return err
	}
	c.draft = d
	for k := range c.errors {
		if len(k) > len(path) && k[:len(path)+1] == path+"[" {
			delete(c.errors, k)
		}
	}
	return nil
}

// UpdateItem sets one field of the item with id. Other items keep their identity.
func (c *Controller) UpdateItem(path, id, field string, value any) error {
	return c.UpdateField(fmt.Sprintf("%s[%s].%s", path, id, field), value)
}

// Items returns the array at path, or nil.
func (c *Controller) Items(path string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.draft.Get(path)
	items, _ := v.([]any)
	return items
}
