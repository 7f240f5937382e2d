package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"marketplace/internal/client"
	"marketplace/internal/listing"
	"marketplace/internal/session"
	"marketplace/internal/wizard"
)

// filterFlags collects repeated -filter field=value arguments.
type filterFlags map[string]string

func (f filterFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f filterFlags) Set(s string) error {
	field, value, ok := strings.Cut(s, "=")
	if !ok || field == "" {
		return fmt.Errorf("filter %q must look like field=value", s)
	}
	f[field] = value
	return nil
}

// parseListArgs reads the list flags and the resource name.
func parseListArgs(args []string, out io.Writer) (string, listOptions, error) {
	opts := listOptions{filters: filterFlags{}}
	var expand string

	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.search, "search", "", "case-insensitive text to match")
	fs.StringVar(&opts.status, "status", listing.StatusAll, "status to show, or all")
	fs.Var(filterFlags(opts.filters), "filter", "extra criterion field=value, e.g. category=electronics (repeatable)")
	fs.StringVar(&opts.sortKey, "sort", "", "sort key, e.g. name or price")
	fs.StringVar(&opts.order, "order", "asc", "asc or desc")
	fs.IntVar(&opts.page, "page", 1, "page to show")
	fs.IntVar(&opts.pageSize, "page-size", 0, "rows per page, 0 shows everything")
	fs.StringVar(&expand, "expand", "", "comma separated ids of parent rows to expand")
	if err := fs.Parse(args); err != nil {
		return "", opts, err
	}

	if fs.NArg() != 1 {
		return "", opts, errors.New("list needs exactly one resource")
	}
	if o := strings.ToLower(opts.order); o != "asc" && o != "desc" {
		return "", opts, fmt.Errorf("order must be asc or desc, got %q", opts.order)
	}
	for _, id := range wizard.ParseList(expand) {
		opts.expand = append(opts.expand, id.(string))
	}
	return fs.Arg(0), opts, nil
}

func runList(ctx context.Context, a *app, args []string) error {
	name, opts, err := parseListArgs(args, a.out)
	if err != nil {
		return err
	}
	coll, err := lookupCollection(name)
	if err != nil {
		return err
	}
	return coll.list(ctx, a, opts)
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(a.out)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("delete needs a resource and an id")
	}

	coll, err := lookupCollection(fs.Arg(0))
	if err != nil {
		return err
	}

	reader := bufio.NewReader(a.in)
	confirm := func(summary string) bool {
		if *yes {
			return true
		}
		return ask(reader, a.out, fmt.Sprintf("Delete %q? [y/N] ", summary))
	}

	err = coll.delete(ctx, a, fs.Arg(1), confirm)
	if errors.Is(err, listing.ErrNotConfirmed) {
		fmt.Fprintln(a.out, "Nothing deleted.")
		return nil
	}
	return err
}

// ask reads one answer; only y or yes confirm.
func ask(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt)
	line, _ := r.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, prompted when omitted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("login needs -email")
	}
	if *password == "" {
		fmt.Fprint(a.out, "Password: ")
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	resp, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := client.StartSession(ctx, a.session, resp); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s).\n", resp.User.Email, resp.User.Role)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := a.client.Logout(ctx, a.session); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	user, err := a.session.User(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s <%s> role=%s\n", user.FirstName, user.LastName, user.Email, user.Role)
	return nil
}

// describe turns an error into the line shown to the operator.
func describe(err error) string {
	var fieldErrs wizard.Errors
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		return session.ErrSessionExpired.Error()
	case errors.Is(err, session.ErrNotAuthenticated):
		return "not logged in, run: console login -email <email>"
	case errors.As(err, &fieldErrs):
		return fieldErrs.Error()
	}
	var reqErr *client.RequestError
	if errors.As(err, &reqErr) || errors.Is(err, client.ErrMalformedResponse) || errors.Is(err, client.ErrUnauthorized) {
		return client.Message(err)
	}
	return err.Error()
}
