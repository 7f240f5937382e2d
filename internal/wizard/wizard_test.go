package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	err     error
	calls   int
	method  string
	path    string
	payload map[string]any
}

func (r *recordingSubmitter) SubmitPayload(ctx context.Context, method, path string, payload map[string]any) (json.RawMessage, error) {
	r.calls++
	r.method, r.path, r.payload = method, path, payload
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(`{"id":"created"}`), nil
}

const threeSteps = `
name: three
steps:
  - name: contact
    fields:
      - path: email
        rules: required,email_basic
  - name: address
    fields:
      - path: address.city
        rules: required
  - name: account
    fields:
      - path: password
        rules: required,min=6
submit:
  path: accounts
`

func mustDefinition(t *testing.T, src string) *Definition {
	t.Helper()
	def, err := ParseDefinition([]byte(src))
	require.NoError(t, err)
	return def
}

func filled() Draft {
	return Draft{
		"email":    "asha@example.com",
		"address":  map[string]any{"city": "Pune"},
		"password": "secret1",
	}
}

func TestParseDefinition_Defaults(t *testing.T) {
	def := mustDefinition(t, threeSteps)
	assert.Equal(t, "POST", def.Submit.Method)
	assert.Len(t, def.Steps, 3)

	f, step, ok := def.Field("address.city")
	require.True(t, ok)
	assert.Equal(t, 2, step)
	assert.Equal(t, "required", f.Rules)
}

func TestParseDefinition_Rejects(t *testing.T) {
	cases := map[string]string{
		"no name":         "steps: [{name: a}]\nsubmit: {path: x}",
		"no steps":        "name: x\nsubmit: {path: x}",
		"bad path":        "name: x\nsteps: [{name: a, fields: [{path: 'a[]'}]}]\nsubmit: {path: x}",
		"unknown rule":    "name: x\nsteps: [{name: a, fields: [{path: a, rules: 'nope_rule'}]}]\nsubmit: {path: x}",
		"duplicate":       "name: x\nsteps: [{name: a, fields: [{path: a}, {path: a}]}]\nsubmit: {path: x}",
		"bad method":      "name: x\nsteps: [{name: a}]\nsubmit: {method: GET, path: x}",
		"missing submit":  "name: x\nsteps: [{name: a}]",
		"bad edit":        "name: x\nsteps: [{name: a}]\nsubmit: {path: x, edit_method: DELETE}",
		"edit path no id": "name: x\nsteps: [{name: a}]\nsubmit: {path: x, edit_path: x/current}",
		"not yaml":        "name: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestBuiltinDefinitionsLoad(t *testing.T) {
	names := BuiltinNames()
	assert.ElementsMatch(t, []string{"checkout", "login", "product", "quality-inspection", "vendor-registration"}, names)
	for _, name := range names {
		def, err := Builtin(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, def.Name)
	}

	_, err := Builtin("missing")
	assert.ErrorIs(t, err, ErrUnknownWizard)
}

func TestNavigation_Bounds(t *testing.T) {
	c := New(mustDefinition(t, threeSteps), &recordingSubmitter{}, WithDraft(filled()))

	assert.False(t, c.Previous())
	assert.Equal(t, 1, c.Step())

	assert.True(t, c.Next())
	assert.True(t, c.Next())
	assert.Equal(t, 3, c.Step())

	assert.False(t, c.Next())
	assert.Equal(t, 3, c.Step())

	// invalid data at the last step still leaves the step alone
	require.NoError(t, c.UpdateField("password", ""))
	assert.False(t, c.Next())
	assert.Equal(t, 3, c.Step())
}

func TestNext_BlockedByValidationThenAdvancesByOne(t *testing.T) {
	c := New(mustDefinition(t, threeSteps), &recordingSubmitter{})

	assert.False(t, c.Next())
	assert.Equal(t, 1, c.Step())
	assert.Equal(t, "Email is required", c.Errors()["email"])

	require.NoError(t, c.UpdateField("email", "not-an-email"))
	assert.Empty(t, c.Errors(), "editing a field clears its error")
	assert.False(t, c.Next())
	assert.Equal(t, "Enter a valid email address", c.Errors()["email"])

	require.NoError(t, c.UpdateField("email", "asha@example.com"))
	assert.True(t, c.Next())
	assert.Equal(t, 2, c.Step())
	assert.Empty(t, c.Errors())
}

func TestNext_OnlyCurrentStepByDefault(t *testing.T) {
	c := New(mustDefinition(t, threeSteps), &recordingSubmitter{}, WithDraft(filled()))
	require.True(t, c.Next())

	require.NoError(t, c.UpdateField("email", ""))
	assert.True(t, c.Next(), "earlier steps are not revalidated")
}

func TestNext_RevalidatePrevious(t *testing.T) {
	def := mustDefinition(t, threeSteps)
	def.RevalidatePrevious = true
	c := New(def, &recordingSubmitter{}, WithDraft(filled()))
	require.True(t, c.Next())

	require.NoError(t, c.UpdateField("email", ""))
	assert.False(t, c.Next())
	assert.Contains(t, c.Errors(), "email")
	assert.Equal(t, 2, c.Step())
}

func TestPrevious_KeepsDraft(t *testing.T) {
	c := New(mustDefinition(t, threeSteps), &recordingSubmitter{}, WithDraft(filled()))
	require.True(t, c.Next())
	require.NoError(t, c.UpdateField("address.city", "Nashik"))

	require.True(t, c.Previous())
	city, _ := c.Draft().Get("address.city")
	assert.Equal(t, "Nashik", city)
}

func TestBlur_ValidatesOneField(t *testing.T) {
	c := New(mustDefinition(t, threeSteps), &recordingSubmitter{})
	assert.Equal(t, "Password is required", c.Blur("password"))
	assert.Equal(t, Errors{"password": "Password is required"}, c.Errors())

	require.NoError(t, c.UpdateField("password", "abc"))
	assert.Equal(t, "Password must be at least 6 characters", c.Blur("password"))
	assert.Equal(t, "", c.Blur("unknown"))
}

func TestSubmit_ValidatesWholeDraft(t *testing.T) {
	sub := &recordingSubmitter{}
	d := filled()
	d["email"] = ""
	c := New(mustDefinition(t, threeSteps), sub, WithDraft(d))

	_, err := c.Submit(context.Background())
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Contains(t, errs, "email")
	assert.Equal(t, 0, sub.calls)
}

func TestSubmit_SendsDraftOnce(t *testing.T) {
	sub := &recordingSubmitter{}
	c := New(mustDefinition(t, threeSteps), sub, WithDraft(filled()))

	resp, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"created"}`, string(resp))
	assert.Equal(t, "POST", sub.method)
	assert.Equal(t, "accounts", sub.path)
	assert.Equal(t, "asha@example.com", sub.payload["email"])
	assert.True(t, c.Submitted())

	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, sub.calls)

	c.Reset()
	assert.False(t, c.Submitted())
	assert.Equal(t, 1, c.Step())
}

func TestSubmit_EditModeResolvesID(t *testing.T) {
	def := mustDefinition(t, threeSteps)
	def.Submit = SubmitTarget{Method: "PUT", Path: "accounts/{id}"}
	sub := &recordingSubmitter{}

	d := filled()
	d["id"] = "acc-9"
	_, err := New(def, sub, WithDraft(d)).Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "accounts/acc-9", sub.path)

	_, err = New(def, sub, WithDraft(filled())).Submit(context.Background())
	assert.Error(t, err)
}

func TestSubmitTarget_For(t *testing.T) {
	def := mustDefinition(t, threeSteps)
	method, p := def.Submit.For(false)
	assert.Equal(t, "POST", method)
	assert.Equal(t, "accounts", p)

	method, p = def.Submit.For(true)
	assert.Equal(t, "PUT", method)
	assert.Equal(t, "accounts/{id}", p)

	method, p = SubmitTarget{Path: "accounts/", EditMethod: "PATCH"}.For(true)
	assert.Equal(t, "PATCH", method)
	assert.Equal(t, "accounts/{id}", p)
}

func TestSubmit_ExistingRecordIsUpdatedInPlace(t *testing.T) {
	def, err := Builtin("product")
	require.NoError(t, err)

	draft, err := FromRecord(map[string]any{
		"id": "inv-1", "name": "Towel", "sku": "T-1", "category": "bath",
		"price": 12.5, "stock": 4, "status": "IN_STOCK",
	})
	require.NoError(t, err)

	sub := &recordingSubmitter{}
	c := New(def, sub, WithDraft(draft))
	assert.True(t, c.Editing())
	require.NoError(t, c.UpdateField("stock", 9))

	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PUT", sub.method)
	assert.Equal(t, "inventory/inv-1", sub.path)
	assert.Equal(t, 9, sub.payload["stock"])

	sub = &recordingSubmitter{}
	fresh := New(def, sub, WithDraft(Draft{"name": "Towel", "sku": "T-1", "category": "bath", "price": 12.5, "stock": 4}))
	assert.False(t, fresh.Editing())
	_, err = fresh.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "POST", sub.method)
	assert.Equal(t, "inventory", sub.path)
}

func TestSubmit_NoSubmitter(t *testing.T) {
	_, err := New(mustDefinition(t, threeSteps), nil).Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoSubmitter)
}

// Property: a failed submit leaves draft and step exactly as they were.
func TestProperty_SubmitFailureIsAtomic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("draft and step are unchanged after a failed submit", prop.ForAll(
		func(city string, steps int, backendFails bool) bool {
			sub := &recordingSubmitter{}
			if backendFails {
				sub.err = errors.New("backend rejected")
			}
			d := filled()
			d["address"] = map[string]any{"city": city}
			c := New(mustDefinition(t, threeSteps), sub, WithDraft(d))
			for i := 0; i < steps; i++ {
				c.Next()
			}

			beforeDraft := c.Draft()
			beforeStep := c.Step()

			_, err := c.Submit(context.Background())
			if err == nil {
				return !backendFails && city != ""
			}
			return reflect.DeepEqual(beforeDraft, c.Draft()) &&
				reflect.ValueOf(beforeDraft).Pointer() == reflect.ValueOf(c.Draft()).Pointer() &&
				beforeStep == c.Step() &&
				!c.Submitted()
		},
		gen.OneConstOf("", "Pune", "Mumbai"),
		gen.IntRange(0, 3),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: Add grows by one with a fresh id, Remove shrinks by one and drops that id.
func TestProperty_DynamicArrayAddRemove(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("add and remove keep ids unique", prop.ForAll(
		func(adds int, removePick int) bool {
			def := mustDefinition(t, threeSteps)
			c := New(def, nil)

			seen := map[string]bool{}
			for i := 0; i < adds; i++ {
				before := len(c.Items("items"))
				id, err := c.Add("items", map[string]any{"name": fmt.Sprintf("item %d", i)})
				if err != nil || seen[id] || len(c.Items("items")) != before+1 {
					return false
				}
				seen[id] = true
			}

			items := c.Items("items")
			target := items[removePick%len(items)].(map[string]any)["id"].(string)
			if err := c.Remove("items", target); err != nil {
				return false
			}
			after := c.Items("items")
			if len(after) != adds-1 {
				return false
			}
			for _, it := range after {
				if it.(map[string]any)["id"] == target {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAdd_RegeneratesCollidingIDs(t *testing.T) {
	ids := []string{"same", "same", "other"}
	next := 0
	c := New(mustDefinition(t, threeSteps), nil, WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))

	first, err := c.Add("items", nil)
	require.NoError(t, err)
	second, err := c.Add("items", nil)
	require.NoError(t, err)
	assert.Equal(t, "same", first)
	assert.Equal(t, "other", second)
}

func TestUpdateItem_PreservesOtherItems(t *testing.T) {
	c := New(mustDefinition(t, threeSteps), nil)
	_, _ = c.Add("items", map[string]any{"name": "Towel"})
	b, _ := c.Add("items", map[string]any{"name": "Sheet"})
	before := c.Items("items")

	require.NoError(t, c.UpdateItem("items", b, "name", "Duvet"))
	after := c.Items("items")

	assert.Equal(t, reflect.ValueOf(before[0]).Pointer(), reflect.ValueOf(after[0]).Pointer())
	assert.Equal(t, "Duvet", after[1].(map[string]any)["name"])
	assert.Equal(t, "Sheet", before[1].(map[string]any)["name"])

	assert.ErrorIs(t, c.UpdateItem("items", "missing", "name", "x"), ErrItemNotFound)
	assert.ErrorIs(t, c.Remove("items", "missing"), ErrItemNotFound)
}

func TestInspectionWizard_ItemRules(t *testing.T) {
	def, err := Builtin("quality-inspection")
	require.NoError(t, err)
	c := New(def, &recordingSubmitter{})

	require.NoError(t, c.UpdateField("checker_id", "CHECKER_12"))
	require.NoError(t, c.UpdateField("vendor_id", "v1"))
	assert.False(t, c.Next())
	assert.Equal(t, "Checker ID must look like CHECKER_001", c.Errors()["checker_id"])

	require.NoError(t, c.UpdateField("checker_id", "CHECKER_012"))
	require.True(t, c.Next())

	assert.False(t, c.Next())
	assert.Contains(t, c.Errors(), "items")

	id, err := c.Add("items", map[string]any{"name": "Towel", "quantity": ParseInt("x"), "result": "pass"})
	require.NoError(t, err)
	assert.False(t, c.Next())
	assert.Equal(t, "Quantity inspected must be a number", c.Errors()[fmt.Sprintf("items[%s].quantity", id)])

	require.NoError(t, c.UpdateItem("items", id, "quantity", ParseInt("12")))
	assert.True(t, c.Next())
	assert.Equal(t, 3, c.Step())
}

func TestProductWizard_NumericRules(t *testing.T) {
	def, err := Builtin("product")
	require.NoError(t, err)
	c := New(def, &recordingSubmitter{}, WithDraft(Draft{"name": "Towel", "sku": "T-1", "category": "bath"}))
	require.True(t, c.Next())

	require.NoError(t, c.UpdateField("price", ParseFloat("abc")))
	require.NoError(t, c.UpdateField("stock", 0))
	assert.True(t, math.IsNaN(c.Draft()["price"].(float64)), "bad input is stored as-is")
	assert.False(t, c.Next())
	assert.Equal(t, "Price must be a number", c.Errors()["price"])

	require.NoError(t, c.UpdateField("price", ParseFloat("0")))
	c.ValidateStep(2)
	assert.Equal(t, "Price must be greater than 0", c.Errors()["price"])
	assert.NotContains(t, c.Errors(), "stock", "zero stock is present and valid")

	require.NoError(t, c.UpdateField("price", ParseFloat("199.5")))
	assert.Empty(t, c.ValidateAll())
}

func TestVendorRegistration_FullFlow(t *testing.T) {
	def, err := Builtin("vendor-registration")
	require.NoError(t, err)
	assert.True(t, def.RevalidatePrevious)

	sub := &recordingSubmitter{}
	c := New(def, sub)
	set := func(path string, v any) { require.NoError(t, c.UpdateField(path, v)) }

	set("business_name", "Acme Linen")
	set("owner_name", "Asha")
	set("email", "asha@acme.in")
	set("phone", "98765")
	assert.False(t, c.Next())
	assert.Equal(t, "Phone must be a 10 digit number", c.Errors()["phone"])
	set("phone", "9876543210")
	require.True(t, c.Next())

	set("address.street", "1 Mill Rd")
	set("address.city", "Pune")
	set("address.state", "MH")
	set("address.zip", "411001")
	require.True(t, c.Next())

	assert.False(t, c.Next())
	set("selected_categories[bedding]", []any{"sheets", "pillows"})
	require.True(t, c.Next())

	_, err = c.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, c.Errors(), "certification")
	assert.NotContains(t, c.Errors(), "logo", "logo is optional")

	set("certification", map[string]any{"file_name": "cert.pdf"})
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vendors", sub.path)
}
