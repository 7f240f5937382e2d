package wizard

import (
	"embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var builtinFS embed.FS

// ErrUnknownWizard is returned by Builtin for a name with no embedded definition.
var ErrUnknownWizard = errors.New("unknown wizard")

// Definition is the fixed sequence of steps a wizard walks through.
type Definition struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
	Steps []Step `yaml:"steps"`
	// RevalidatePrevious makes Next check every step up to the current one.
	RevalidatePrevious bool         `yaml:"revalidate_previous"`
	Submit             SubmitTarget `yaml:"submit"`
}

// Step is one screen of fields.
type Step struct {
	Name   string  `yaml:"name"`
	Title  string  `yaml:"title"`
	Fields []Field `yaml:"fields"`
}

// Field binds a draft path to validation rules written in validator tag syntax.
// A path segment of [*] applies the rules to every item of an array.
type Field struct {
	Path    string `yaml:"path"`
	Label   string `yaml:"label"`
	Rules   string `yaml:"rules"`
	Message string `yaml:"message"`
	Kind    string `yaml:"kind"`
}

// SubmitTarget is where the finished draft is sent. {id} in a path is replaced by the draft's id.
// EditMethod and EditPath apply when the wizard was opened on an existing record; they default
// to PUT and Path/{id}.
type SubmitTarget struct {
	Method     string `yaml:"method"`
	Path       string `yaml:"path"`
	EditMethod string `yaml:"edit_method"`
	EditPath   string `yaml:"edit_path"`
}

// For returns the method and unresolved path for a new or an existing record.
func (t SubmitTarget) For(editing bool) (method, p string) {
	if !editing {
		return t.Method, t.Path
	}
	method, p = t.EditMethod, t.EditPath
	if method == "" {
		method = http.MethodPut
	}
	if p == "" {
		p = t.Path
		if !strings.Contains(p, "{id}") {
			p = strings.TrimSuffix(p, "/") + "/{id}"
		}
	}
	return method, p
}

// ParseDefinition parses and checks a YAML wizard definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing wizard YAML: %w", err)
	}
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("wizard %q is invalid: %w", def.Name, err)
	}
	return &def, nil
}

// LoadDefinition reads a definition from disk.
func LoadDefinition(file string) (*Definition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read wizard definition: %w", err)
	}
	return ParseDefinition(data)
}

// Builtin returns one of the embedded definitions by name.
func Builtin(name string) (*Definition, error) {
	data, err := builtinFS.ReadFile(path.Join("definitions", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWizard, name)
	}
	return ParseDefinition(data)
}

// BuiltinNames lists the embedded definitions.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("definitions")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Field returns the field bound to path, if any step declares it.
func (d *Definition) Field(p string) (Field, int, bool) {
	for i, step := range d.Steps {
		for _, f := range step.Fields {
			if f.Path == p {
				return f, i + 1, true
			}
		}
	}
	return Field{}, 0, false
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return errors.New("name is required")
	}
	if len(d.Steps) == 0 {
		return errors.New("at least one step is required")
	}

	seen := map[string]bool{}
	for i, step := range d.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d has no name", i+1)
		}
		for _, f := range step.Fields {
			if _, err := parsePath(f.Path); err != nil {
				return fmt.Errorf("step %q: %w", step.Name, err)
			}
			if seen[f.Path] {
				return fmt.Errorf("field %q is declared twice", f.Path)
			}
			seen[f.Path] = true
			if err := checkRules(f.Rules); err != nil {
				return fmt.Errorf("field %q: %w", f.Path, err)
			}
		}
	}

	var err error
	if d.Submit.Method, err = submitMethod(d.Submit.Method, http.MethodPost); err != nil {
		return err
	}
	if d.Submit.EditMethod, err = submitMethod(d.Submit.EditMethod, http.MethodPut); err != nil {
		return err
	}
	if d.Submit.Path == "" {
		return errors.New("submit path is required")
	}
	if d.Submit.EditPath != "" && !strings.Contains(d.Submit.EditPath, "{id}") {
		return fmt.Errorf("edit path %q must contain {id}", d.Submit.EditPath)
	}
	return nil
}

func submitMethod(m, fallback string) (string, error) {
	switch strings.ToUpper(m) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return strings.ToUpper(m), nil
	case "":
		return fallback, nil
	}
	return "", fmt.Errorf("unsupported submit method %q", m)
}
