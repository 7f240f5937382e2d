package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"marketplace/internal/wizard"
)

const wizardHelp = `Commands:
  path=value           set a field, e.g. address.city=Pune or items[<id>].quantity=3
  +path field=value    add an item to an array, e.g. +items name=Seams result=pass
  -path id             remove an item
  :next  :back         move between steps
  :show                print the draft
  :submit              validate everything and send
  :reset               start over
  :quit                leave without submitting`

func runWizard(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("wizard", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("def", "", "built-in wizard: "+strings.Join(wizard.BuiltinNames(), ", "))
	file := fs.String("file", "", "YAML wizard definition to load instead of a built-in")
	edit := fs.String("edit", "", "resource/id of a record to pre-fill the draft from")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		def *wizard.Definition
		err error
	)
	switch {
	case *file != "":
		def, err = wizard.LoadDefinition(*file)
	case *name != "":
		def, err = wizard.Builtin(*name)
	default:
		return fmt.Errorf("wizard needs -def or -file; built-ins: %s", strings.Join(wizard.BuiltinNames(), ", "))
	}
	if err != nil {
		return err
	}

	opts := []wizard.Option{wizard.WithLogger(a.logger)}
	if *edit != "" {
		draft, err := loadDraft(ctx, a, *edit)
		if err != nil {
			return err
		}
		opts = append(opts, wizard.WithDraft(draft))
	}

	w := wizard.New(def, a.client, opts...)
	return driveWizard(ctx, w, a.in, a.out, os.ReadFile)
}

func loadDraft(ctx context.Context, a *app, ref string) (wizard.Draft, error) {
	resource, id, ok := strings.Cut(ref, "/")
	if !ok || id == "" {
		return nil, fmt.Errorf("-edit wants resource/id, got %q", ref)
	}
	coll, err := lookupCollection(resource)
	if err != nil {
		return nil, err
	}
	rec, err := coll.get(ctx, a, id)
	if err != nil {
		return nil, err
	}
	return wizard.FromRecord(rec)
}

// driveWizard runs the read-eval loop until submit succeeds, :quit, or input ends.
func driveWizard(ctx context.Context, w *wizard.Controller, in io.Reader, out io.Writer, readFile func(string) ([]byte, error)) error {
	def := w.Definition()
	fmt.Fprintf(out, "%s\n%s\n", def.Title, wizardHelp)
	printStep(out, w)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == ":quit":
			fmt.Fprintln(out, "Draft discarded.")
			return nil
		case line == ":help":
			fmt.Fprintln(out, wizardHelp)
		case line == ":show":
			data, err := json.MarshalIndent(w.Draft(), "", "  ")
			if err != nil {
				fmt.Fprintln(out, "Draft holds a value that cannot be shown:", err)
				continue
			}
			fmt.Fprintln(out, string(data))
		case line == ":reset":
			w.Reset()
			printStep(out, w)
		case line == ":back":
			if w.Previous() {
				printStep(out, w)
			} else {
				fmt.Fprintln(out, "Already at the first step.")
			}
		case line == ":next":
			switch {
			case w.Step() == w.Last():
				fmt.Fprintln(out, "This is the last step, use :submit.")
			case w.Next():
				printStep(out, w)
			default:
				printErrors(out, w.Errors())
			}
		case line == ":submit":
			resp, err := w.Submit(ctx)
			var fieldErrs wizard.Errors
			switch {
			case errors.As(err, &fieldErrs):
				printErrors(out, fieldErrs)
			case err != nil:
				fmt.Fprintln(out, "Submit failed:", describe(err))
			default:
				fmt.Fprintln(out, "Submitted.", createdID(resp))
				return nil
			}
		case strings.HasPrefix(line, "+"):
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				fmt.Fprintln(out, "usage: +path field=value ...")
				continue
			}
			item, err := parseAssignments(def, fields[0], fields[1:], readFile)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			id, err := w.Add(fields[0], item)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			fmt.Fprintf(out, "Added %s[%s]\n", fields[0], id)
		case strings.HasPrefix(line, "-"):
			fields := strings.Fields(line[1:])
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: -path id")
				continue
			}
			if err := w.Remove(fields[0], fields[1]); err != nil {
				fmt.Fprintln(out, err)
			}
		default:
			path, raw, ok := strings.Cut(line, "=")
			if !ok {
				fmt.Fprintln(out, "Unknown command, :help lists them.")
				continue
			}
			path = strings.TrimSpace(path)
			value, err := fieldValue(def, path, strings.TrimSpace(raw), readFile)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if err := w.UpdateField(path, value); err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if msg := w.Blur(path); msg != "" {
				fmt.Fprintf(out, "  ! %s\n", msg)
			}
		}
	}
}

func printStep(out io.Writer, w *wizard.Controller) {
	step := w.CurrentStep()
	fmt.Fprintf(out, "\nStep %d of %d: %s\n", w.Step(), w.Last(), step.Title)
	draft := w.Draft()
	for _, f := range step.Fields {
		if strings.Contains(f.Path, "[*]") {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.Path
		}
		value, _ := draft.Get(f.Path)
		if f.Kind == "items" {
			items, _ := value.([]any)
			fmt.Fprintf(out, "  %s (%s): %d item(s)\n", label, f.Path, len(items))
			for _, it := range items {
				fmt.Fprintf(out, "    %v\n", it)
			}
			continue
		}
		fmt.Fprintf(out, "  %s (%s) = %s\n", label, f.Path, display(value))
	}
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func printErrors(out io.Writer, errs wizard.Errors) {
	paths := make([]string, 0, len(errs))
	for p := range errs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(out, "  ! %s: %s\n", p, errs[p])
	}
}

func createdID(resp json.RawMessage) string {
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp, &body); err != nil || body.ID == "" {
		return ""
	}
	if body.Status != "" {
		return fmt.Sprintf("id=%s status=%s", body.ID, body.Status)
	}
	return "id=" + body.ID
}
