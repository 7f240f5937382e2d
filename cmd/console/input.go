package main

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"marketplace/internal/client"
	"marketplace/internal/wizard"
)

// fieldFor finds the definition bound to a concrete draft path. Item paths such as
// items[3f2a].quantity match their items[*].quantity declaration; a keyed path such as
// selected_categories[bedding] falls back to the field that owns the map.
func fieldFor(def *wizard.Definition, path string) (wizard.Field, bool) {
	if f, _, ok := def.Field(path); ok {
		return f, true
	}
	if f, _, ok := def.Field(wildcard(path)); ok {
		return f, true
	}
	if owner, _, ok := strings.Cut(path, "["); ok {
		if f, _, ok := def.Field(owner); ok {
			return f, true
		}
	}
	return wizard.Field{}, false
}

// wildcard replaces every [selector] in path with [*].
func wildcard(path string) string {
	var b strings.Builder
	for {
		before, rest, ok := strings.Cut(path, "[")
		b.WriteString(before)
		if !ok {
			return b.String()
		}
		_, after, ok := strings.Cut(rest, "]")
		if !ok {
			b.WriteString("[" + rest)
			return b.String()
		}
		b.WriteString("[*]")
		path = after
	}
}

// fieldValue converts typed input into the value stored in the draft, according to the
// field kind. readFile loads uploads for file fields.
func fieldValue(def *wizard.Definition, path, raw string, readFile func(string) ([]byte, error)) (any, error) {
	f, _ := fieldFor(def, path)
	switch f.Kind {
	case "number":
		return wizard.ParseFloat(raw), nil
	case "integer":
		return wizard.ParseInt(raw), nil
	case "file":
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		data, err := readFile(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", raw, err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(raw))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return client.File{Name: filepath.Base(raw), ContentType: contentType, Data: data}, nil
	case "categories":
		if !strings.Contains(path, "[") {
			return nil, fmt.Errorf("set categories one at a time: %s[<category>]=<sub>,<sub>", f.Path)
		}
		if list := wizard.ParseList(raw); len(list) > 0 {
			return list, nil
		}
		return []any{}, nil
	case "items":
		return nil, errors.New("add items with +" + f.Path + " field=value ...")
	}
	return raw, nil
}

// parseAssignments reads "name=Cotton quantity=4" into an item map, converting
// each value by the kind declared for path[*].field.
func parseAssignments(def *wizard.Definition, path string, args []string, readFile func(string) ([]byte, error)) (map[string]any, error) {
	item := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q must look like field=value", arg)
		}
		v, err := fieldValue(def, path+"[*]."+key, raw, readFile)
		if err != nil {
			return nil, err
		}
		item[key] = v
	}
	return item, nil
}
