package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Errors Submit returns when it refuses to send.
var (
	ErrAlreadySubmitted = errors.New("wizard already submitted")
	ErrSubmitInProgress = errors.New("submit already in progress")
	ErrNoSubmitter      = errors.New("wizard has no submitter")
)

// Submitter sends the finished draft to the backend in one request.
// *client.Client satisfies it.
type Submitter interface {
	SubmitPayload(ctx context.Context, method, path string, payload map[string]any) (json.RawMessage, error)
}

// Controller drives a fixed sequence of steps over one shared Draft.
// Steps are 1-indexed.
type Controller struct {
	def       *Definition
	submitter Submitter
	logger    *zap.Logger
	newID     func() string

	// editing is set when the initial draft is an existing record.
	editing bool

	mu         sync.Mutex
	initial    Draft
	draft      Draft
	step       int
	errors     Errors
	submitting bool
	submitted  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDraft pre-populates the draft, e.g. from FromRecord. A draft carrying an id opens the
// wizard in edit mode, so Submit uses the definition's edit target.
func WithDraft(d Draft) Option {
	return func(c *Controller) {
		if d == nil {
			return
		}
		c.initial = d
		id, ok := d.Get("id")
		c.editing = ok && !missing(id)
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithIDGenerator replaces the UUID generator used for new array items.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}

// New starts a wizard at its first step with an empty draft.
func New(def *Definition, submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		def:       def,
		submitter: submitter,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
		initial:   Draft{},
		step:      1,
		errors:    Errors{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.draft = c.initial
	return c
}

// Definition returns the definition the wizard walks.
func (c *Controller) Definition() *Definition { return c.def }

// First is the number of the first step, always 1.
func (c *Controller) First() int { return 1 }

// Last is the number of the final step.
func (c *Controller) Last() int { return len(c.def.Steps) }

// Editing reports whether the wizard was opened on an existing record.
func (c *Controller) Editing() bool { return c.editing }

// Step returns the current step number.
func (c *Controller) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// CurrentStep returns the definition of the current step.
func (c *Controller) CurrentStep() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.def.Steps[c.step-1]
}

// Draft returns the current draft. Drafts are never mutated in place, so it is safe to keep.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Errors returns a copy of the errors currently surfaced.
func (c *Controller) Errors() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Errors, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

// Submitted reports whether a submit has succeeded.
func (c *Controller) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// UpdateField replaces the value at path and clears that field's error.
// Values are stored as given; validation happens on blur, next or submit.
func (c *Controller) UpdateField(path string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.draft.With(path, value)
	if err != nil {
		return err
	}
	c.draft = next
	delete(c.errors, path)
	return nil
}

// Blur validates a single field, as when an input loses focus.
func (c *Controller) Blur(path string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, _, ok := c.def.Field(path)
	if !ok {
		return ""
	}
	errs := Errors{}
	c.checkField(f, errs)
	for k := range c.errors {
		if k == path || strings.HasPrefix(k, itemPrefix(path)) {
			delete(c.errors, k)
		}
	}
	for k, v := range errs {
		c.errors[k] = v
	}
	return errs[path]
}

// ValidateStep checks the fields of step n without moving.
func (c *Controller) ValidateStep(n int) Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	errs := c.validateSteps(n, n)
	c.errors = errs
	return errs
}

// ValidateAll checks every step.
func (c *Controller) ValidateAll() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	errs := c.validateSteps(1, c.Last())
	c.errors = errs
	return errs
}

// Next advances one step when the current step is valid. At the last step it does nothing.
func (c *Controller) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step >= c.Last() {
		return false
	}

	from := c.step
	if c.def.RevalidatePrevious {
		from = 1
	}
	errs := c.validateSteps(from, c.step)
	c.errors = errs
	if len(errs) > 0 {
		c.logger.Debug("Step blocked by validation",
			zap.String("wizard", c.def.Name),
			zap.Int("step", c.step),
			zap.Int("errors", len(errs)),
		)
		return false
	}
	c.step++
	return true
}

// Previous moves back one step. It is never blocked and keeps the draft intact.
func (c *Controller) Previous() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step <= 1 {
		return false
	}
	c.step--
	c.errors = Errors{}
	return true
}

// Submit validates the whole draft and sends it in one request.
// On failure the draft and current step are left exactly as they were.
func (c *Controller) Submit(ctx context.Context) (json.RawMessage, error) {
	c.mu.Lock()
	switch {
	case c.submitter == nil:
		c.mu.Unlock()
		return nil, ErrNoSubmitter
	case c.submitted:
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case c.submitting:
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}

	errs := c.validateSteps(1, c.Last())
	c.errors = errs
	if len(errs) > 0 {
		c.mu.Unlock()
		return nil, errs
	}

	payload := c.draft
	method, target := c.def.Submit.For(c.editing)
	c.submitting = true
	c.mu.Unlock()

	p, err := resolvePath(target, payload)
	if err == nil {
		var resp json.RawMessage
		resp, err = c.submitter.SubmitPayload(ctx, method, p, map[string]any(payload))
		if err == nil {
			c.mu.Lock()
			c.submitting = false
			c.submitted = true
			c.mu.Unlock()
			c.logger.Info("Wizard submitted", zap.String("wizard", c.def.Name))
			return resp, nil
		}
	}

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()
	c.logger.Warn("Wizard submit failed", zap.String("wizard", c.def.Name), zap.Error(err))
	return nil, err
}

// Reset discards the draft and returns to the first step.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = c.initial
	c.step = 1
	c.errors = Errors{}
	c.submitted = false
}

func resolvePath(p string, d Draft) (string, error) {
	if !strings.Contains(p, "{id}") {
		return p, nil
	}
	id, ok := d.Get("id")
	if !ok || missing(id) {
		return "", fmt.Errorf("submit path %q needs an id in the draft", p)
	}
	return strings.ReplaceAll(p, "{id}", fmt.Sprint(id)), nil
}

// validateSteps must be called with mu held.
func (c *Controller) validateSteps(from, to int) Errors {
	errs := Errors{}
	for n := from; n <= to; n++ {
		if n < 1 || n > len(c.def.Steps) {
			continue
		}
		for _, f := range c.def.Steps[n-1].Fields {
			c.checkField(f, errs)
		}
	}
	return errs
}

// checkField expands [*] selectors over array items and records failures in errs.
func (c *Controller) checkField(f Field, errs Errors) {
	for _, p := range expand(c.draft, f.Path) {
		v, ok := c.draft.Get(p)
		if msg := checkValue(f, v, ok); msg != "" {
			errs[p] = msg
		}
	}
}

// expand resolves "items[*].name" into one concrete path per item.
func expand(d Draft, p string) []string {
	head, tail, found := strings.Cut(p, "[*]")
	if !found {
		return []string{p}
	}
	v, ok := d.Get(head)
	items, isArray := v.([]any)
	if !ok || !isArray {
		return nil
	}

	var out []string
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		concrete := fmt.Sprintf("%s[%v]%s", head, m["id"], tail)
		out = append(out, expand(d, concrete)...)
	}
	return out
}

func itemPrefix(p string) string {
	head, _, _ := strings.Cut(p, "[*]")
	return head + "["
}
