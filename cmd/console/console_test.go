package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketplace/internal/client"
	"marketplace/internal/session"
	"marketplace/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSubmitter struct {
	calls   int
	method  string
	path    string
	payload map[string]any
	resp    json.RawMessage
	err     error
}

func (s *recordingSubmitter) SubmitPayload(ctx context.Context, method, path string, payload map[string]any) (json.RawMessage, error) {
	s.calls++
	s.method, s.path, s.payload = method, path, payload
	return s.resp, s.err
}

func noFiles(string) ([]byte, error) { return nil, errors.New("no files in this test") }

func TestParseListArgs(t *testing.T) {
	name, opts, err := parseListArgs([]string{
		"-search", "cotton", "-status", "ACTIVE", "-filter", "category=bedding", "-filter", "priority=high",
		"-sort", "price", "-order", "DESC", "-page", "2", "-page-size", "10", "-expand", "c1, c2", "inventory",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "inventory", name)
	assert.Equal(t, "cotton", opts.search)
	assert.Equal(t, "ACTIVE", opts.status)
	assert.Equal(t, map[string]string{"category": "bedding", "priority": "high"}, opts.filters)
	assert.Equal(t, "price", opts.sortKey)
	assert.Equal(t, "DESC", opts.order)
	assert.Equal(t, 2, opts.page)
	assert.Equal(t, 10, opts.pageSize)
	assert.Equal(t, []string{"c1", "c2"}, opts.expand)

	_, opts, err = parseListArgs([]string{"orders"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "all", opts.status)
	assert.Equal(t, 1, opts.page)

	for _, bad := range [][]string{
		{},
		{"orders", "extra"},
		{"-order", "sideways", "orders"},
		{"-filter", "nonsense", "orders"},
	} {
		_, _, err := parseListArgs(bad, &bytes.Buffer{})
		assert.Error(t, err, "%v", bad)
	}
}

func TestLookupCollection(t *testing.T) {
	_, err := lookupCollection("categories")
	assert.NoError(t, err)

	_, err = lookupCollection("widgets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "categories, coupons, inspections")
}

func TestWildcard(t *testing.T) {
	assert.Equal(t, "items[*].quantity", wildcard("items[3f2a].quantity"))
	assert.Equal(t, "address.city", wildcard("address.city"))
	assert.Equal(t, "a[*].b[*].c", wildcard("a[x].b[y].c"))
	assert.Equal(t, "broken[x", wildcard("broken[x"))
}

func TestFieldValue(t *testing.T) {
	inspection, err := wizard.Builtin("quality-inspection")
	require.NoError(t, err)
	product, err := wizard.Builtin("product")
	require.NoError(t, err)
	vendor, err := wizard.Builtin("vendor-registration")
	require.NoError(t, err)

	v, err := fieldValue(product, "price", "24.50", noFiles)
	require.NoError(t, err)
	assert.Equal(t, 24.5, v)

	v, err = fieldValue(product, "price", "cheap", noFiles)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v.(float64)))

	v, err = fieldValue(inspection, "items[abc].quantity", "4", noFiles)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	v, err = fieldValue(inspection, "notes", "seams ok", noFiles)
	require.NoError(t, err)
	assert.Equal(t, "seams ok", v)

	_, err = fieldValue(inspection, "items", "x", noFiles)
	assert.Error(t, err)

	v, err = fieldValue(vendor, "selected_categories[bedding]", "Sheets, Pillows", noFiles)
	require.NoError(t, err)
	assert.Equal(t, []any{"Sheets", "Pillows"}, v)

	_, err = fieldValue(vendor, "selected_categories", "bedding", noFiles)
	assert.Error(t, err)

	v, err = fieldValue(vendor, "logo", "/tmp/brand/logo.png", func(p string) ([]byte, error) {
		assert.Equal(t, "/tmp/brand/logo.png", p)
		return []byte{0x89, 'P', 'N', 'G'}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, client.File{Name: "logo.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}, v)

	_, err = fieldValue(vendor, "certification", "/missing.pdf", noFiles)
	assert.Error(t, err)
}

func TestDriveWizard_ProductFlow(t *testing.T) {
	def, err := wizard.Builtin("product")
	require.NoError(t, err)
	sub := &recordingSubmitter{resp: json.RawMessage(`{"id":"inv-1","status":"IN_STOCK"}`)}
	w := wizard.New(def, sub, wizard.WithLogger(zap.NewNop()))

	input := strings.Join([]string{
		"name=Desk lamp",
		"sku=LMP-1",
		":next",
		"category=lighting",
		":next",
		"price=cheap",
		"price=24.5",
		"stock=10",
		":submit",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, driveWizard(context.Background(), w, strings.NewReader(input), &out, noFiles))

	text := out.String()
	assert.Contains(t, text, "Step 1 of 2: Basics")
	assert.Contains(t, text, "! category: Category is required")
	assert.Contains(t, text, "Step 2 of 2: Price and stock")
	assert.Contains(t, text, "! Price must be a number")
	assert.Contains(t, text, "Submitted. id=inv-1 status=IN_STOCK")

	require.Equal(t, 1, sub.calls)
	assert.Equal(t, "POST", sub.method)
	assert.Equal(t, "inventory", sub.path)
	assert.Equal(t, "Desk lamp", sub.payload["name"])
	assert.Equal(t, 24.5, sub.payload["price"])
	assert.Equal(t, 10, sub.payload["stock"])
}

func TestDriveWizard_ItemsAndFailedSubmit(t *testing.T) {
	def, err := wizard.Builtin("quality-inspection")
	require.NoError(t, err)
	sub := &recordingSubmitter{err: &client.RequestError{StatusCode: 403, Message: "insufficient permissions"}}
	n := 0
	w := wizard.New(def, sub, wizard.WithLogger(zap.NewNop()), wizard.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	}))

	input := strings.Join([]string{
		"checker_id=CHECKER_007",
		"vendor_id=v-1",
		":next",
		"+items name=Seams quantity=12 result=pass",
		"+items name=Zips quantity=3 result=fail",
		"-items item-2",
		":next",
		"status=Passed",
		":submit",
		":quit",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, driveWizard(context.Background(), w, strings.NewReader(input), &out, noFiles))

	text := out.String()
	assert.Contains(t, text, "Added items[item-1]")
	assert.Contains(t, text, "Added items[item-2]")
	assert.Contains(t, text, "Submit failed: insufficient permissions")
	assert.Contains(t, text, "Draft discarded.")
	assert.False(t, w.Submitted())

	items, _ := w.Draft().Get("items")
	require.Len(t, items, 1)
	assert.Equal(t, 12, items.([]any)[0].(map[string]any)["quantity"])
	assert.Equal(t, "inspections", sub.path)
}

func TestDriveWizard_CheckoutFlow(t *testing.T) {
	def, err := wizard.Builtin("checkout")
	require.NoError(t, err)
	sub := &recordingSubmitter{resp: json.RawMessage(`{"id":"ord-1","status":"Pending"}`)}
	w := wizard.New(def, sub, wizard.WithLogger(zap.NewNop()), wizard.WithIDGenerator(func() string { return "line-1" }))

	input := strings.Join([]string{
		"customer=Asha Rao",
		"email=asha@example.com",
		"shipping_address.street=12 MG Road",
		"shipping_address.city=Pune",
		"shipping_address.state=MH",
		"shipping_address.zip=411001",
		":next",
		"payment_method=upi",
		":next",
		":submit",
		"+items name=Towel quantity=2 price=10",
		":submit",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, driveWizard(context.Background(), w, strings.NewReader(input), &out, noFiles))

	text := out.String()
	assert.Contains(t, text, "Step 3 of 3: Review")
	assert.Contains(t, text, "! items: Cart items is required")
	assert.Contains(t, text, "Added items[line-1]")
	assert.Contains(t, text, "Submitted. id=ord-1 status=Pending")

	require.Equal(t, 1, sub.calls)
	assert.Equal(t, "POST", sub.method)
	assert.Equal(t, "orders", sub.path)
	items := sub.payload["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, "Towel", line["name"])
	assert.Equal(t, 2, line["quantity"])
	assert.Equal(t, 10.0, line["price"])
}

func TestDriveWizard_CheckoutRejectsBadQuantity(t *testing.T) {
	def, err := wizard.Builtin("checkout")
	require.NoError(t, err)
	w := wizard.New(def, &recordingSubmitter{}, wizard.WithIDGenerator(func() string { return "line-1" }))

	_, err = w.Add("items", map[string]any{"name": "Towel", "quantity": 0, "price": 10.0})
	require.NoError(t, err)
	errs := w.ValidateAll()
	assert.Contains(t, errs, "items[line-1].quantity")
	assert.NotContains(t, errs, "items[line-1].price")
}

func TestRunWizard_EditUpdatesExistingRecord(t *testing.T) {
	var method, path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "/api/inventory/inv-1", r.URL.Path)
			io.WriteString(w, `{"id":"inv-1","name":"Towel","sku":"T-1","category":"bath","price":12.5,"stock":4,"status":"IN_STOCK"}`)
		default:
			method, path = r.Method, r.URL.Path
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			io.WriteString(w, `{"id":"inv-1","status":"IN_STOCK"}`)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	provider := session.NewProvider(session.NewMemoryStore(), zap.NewNop())
	require.NoError(t, provider.Login(ctx, "opaque-token", session.User{ID: "u-1", Role: "vendor"}))
	c, err := client.New(srv.URL+"/api", provider, zap.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	a := &app{logger: zap.NewNop(), session: provider, client: c, in: strings.NewReader("stock=9\n:submit\n"), out: &out}
	require.NoError(t, runWizard(ctx, a, []string{"-def", "product", "-edit", "inventory/inv-1"}))

	assert.Contains(t, out.String(), "Submitted. id=inv-1 status=IN_STOCK")
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/api/inventory/inv-1", path)
	assert.Equal(t, "inv-1", body["id"])
	assert.Equal(t, 9.0, body["stock"])
	assert.Equal(t, "Towel", body["name"])
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "not logged in, run: console login -email <email>",
		describe(fmt.Errorf("%w: %w", client.ErrUnauthorized, session.ErrNotAuthenticated)))
	assert.Equal(t, session.ErrSessionExpired.Error(), describe(session.ErrSessionExpired))
	assert.Equal(t, "email already taken", describe(&client.RequestError{StatusCode: 409, Message: "email already taken"}))
	assert.Equal(t, "validation failed: price: Price is required", describe(wizard.Errors{"price": "Price is required"}))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}
