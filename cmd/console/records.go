package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"marketplace/internal/client"
	"marketplace/internal/domain"
	"marketplace/internal/listing"

	"go.uber.org/zap"
)

// listOptions are the view criteria applied by the list controller.
type listOptions struct {
	search   string
	status   string
	filters  map[string]string
	sortKey  string
	order    string
	page     int
	pageSize int
	expand   []string
}

// collection binds a resource name to its typed get, list and delete operations.
type collection struct {
	get    func(ctx context.Context, a *app, id string) (domain.Record, error)
	list   func(ctx context.Context, a *app, opts listOptions) error
	delete func(ctx context.Context, a *app, id string, confirm func(summary string) bool) error
}

var collections = map[string]collection{
	"categories":  collectionOf[*domain.Category]("categories"),
	"coupons":     collectionOf[*domain.Coupon]("coupons"),
	"inspections": collectionOf[*domain.Inspection]("inspections"),
	"inventory":   collectionOf[*domain.InventoryItem]("inventory"),
	"messages":    collectionOf[*domain.Message]("messages"),
	"orders":      collectionOf[*domain.Order]("orders"),
	"returns":     collectionOf[*domain.ReturnRequest]("returns"),
	"vendors":     collectionOf[*domain.Vendor]("vendors"),
}

func lookupCollection(name string) (collection, error) {
	c, ok := collections[name]
	if !ok {
		names := make([]string, 0, len(collections))
		for n := range collections {
			names = append(names, n)
		}
		sort.Strings(names)
		return collection{}, fmt.Errorf("unknown resource %q, want one of: %s", name, strings.Join(names, ", "))
	}
	return c, nil
}

func collectionOf[R domain.Record](name string) collection {
	newController := func(a *app) *listing.Controller[R] {
		return listing.New[R](client.NewResource[R](a.client, name), a.logger.With(zap.String("resource", name)))
	}

	return collection{
		get: func(ctx context.Context, a *app, id string) (domain.Record, error) {
			rec, err := client.NewResource[R](a.client, name).Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
		list: func(ctx context.Context, a *app, opts listOptions) error {
			ctrl := newController(a)
			fmt.Fprintf(a.out, "Loading %s...\n", name)
			if err := ctrl.Load(ctx); err != nil {
				return err
			}

			ctrl.SetSearch(opts.search)
			ctrl.SetStatus(opts.status)
			for field, value := range opts.filters {
				ctrl.SetFilter(field, value)
			}
			ctrl.SetSort(opts.sortKey, listing.ParseDirection(opts.order))
			ctrl.SetPageSize(opts.pageSize)
			for _, id := range opts.expand {
				ctrl.ToggleExpanded(id)
			}

			renderList(a.out, ctrl, opts.page)
			return nil
		},
		delete: func(ctx context.Context, a *app, id string, confirm func(summary string) bool) error {
			ctrl := newController(a)
			if err := ctrl.Load(ctx); err != nil {
				return err
			}
			err := ctrl.Delete(ctx, id, func(r R) bool {
				return confirm(summary(r))
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %s %s. %d %s left.\n", name, id, len(ctrl.All()), name)
			return nil
		},
	}
}

func renderList[R domain.Record](w io.Writer, ctrl *listing.Controller[R], pageNumber int) {
	switch ctrl.State() {
	case listing.StateError:
		fmt.Fprintln(w, "Could not load records:", client.Message(ctrl.Err()))
		return
	case listing.StateEmpty:
		fmt.Fprintln(w, "No results found.")
		return
	}

	page := ctrl.Page(pageNumber)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSUMMARY\tUPDATED")
	for _, r := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.RecordID(), r.RecordStatus(), summary(r), formatTime(r.Meta().UpdatedAt))
		if ctrl.IsExpanded(r.RecordID()) {
			for _, child := range children(r) {
				fmt.Fprintf(tw, "  └ %s\t%s\t%s\t\n", child[0], child[1], child[2])
			}
		}
	}
	tw.Flush()

	fmt.Fprintf(w, "Page %d of %d, %d matching records\n", page.Number, page.TotalPages, page.TotalItems)
	counts := ctrl.Counts()
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = fmt.Sprintf("%s=%d", s, counts[s])
	}
	fmt.Fprintln(w, "By status:", strings.Join(parts, " "))
}

// summary is the first non-empty searchable field, with a child count for parent rows.
func summary(r domain.Record) string {
	text := ""
	for _, f := range r.SearchFields() {
		if f != "" {
			text = f
			break
		}
	}
	if p, ok := r.(domain.Parent); ok && p.ChildCount() > 0 {
		text = fmt.Sprintf("%s (%d)", text, p.ChildCount())
	}
	return text
}

// children returns id, status and name of each child row.
func children(r domain.Record) [][3]string {
	c, ok := r.(*domain.Category)
	if !ok {
		return nil
	}
	rows := make([][3]string, len(c.Subcategories))
	for i, s := range c.Subcategories {
		rows[i] = [3]string{s.ID, s.Status, s.Name}
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
