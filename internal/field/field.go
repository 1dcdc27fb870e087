// Package field locates and fills ambiguous, dynamically rendered form fields.
//
// A field is described by a name pattern rather than a fixed selector. The
// resolver tries ordered lookup strategies until one yields a visible element,
// replaces its value by typing, and commits the first entry of the suggestion
// popup the field controls, falling back to keyboard selection.
package field

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/kuitang/flightprobe/internal/errs"
	"github.com/kuitang/flightprobe/internal/obs"
	"github.com/kuitang/flightprobe/internal/uidriver"
	"github.com/kuitang/flightprobe/internal/wait"
)

const (
	DefaultResolveTimeout = 10 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultTypeDelay      = 40 * time.Millisecond
	DefaultActionTimeout  = 5 * time.Second
)

// DefaultRemoveValue matches the button that clears a pre-filled value chip.
var DefaultRemoveValue = regexp.MustCompile(`(?i)remove value`)

// Options controls the resolver's bounded waits and typing cadence.
// Zero durations take the package defaults, except TypeDelay where zero types without pauses.
type Options struct {
	// ResolveTimeout bounds the wait for the field and for its suggestion popup.
	ResolveTimeout time.Duration
	PollInterval   time.Duration
	// TypeDelay is the pause between typed characters.
	TypeDelay time.Duration
	// ActionTimeout bounds a single click before its fallback is used.
	ActionTimeout time.Duration
	RemoveValue   *regexp.Regexp
}

func (o Options) withDefaults() Options {
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = DefaultResolveTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.TypeDelay < 0 {
		o.TypeDelay = 0
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	if o.RemoveValue == nil {
		o.RemoveValue = DefaultRemoveValue
	}
	return o
}

// Strategy is one way of finding a field from its descriptor.
type Strategy struct {
	Name   string
	Locate func(p uidriver.Page, descriptor *regexp.Regexp) uidriver.Element
}

// DefaultStrategies are tried in order: combobox by name, textbox by name, input by placeholder.
var DefaultStrategies = []Strategy{
	{Name: "combobox", Locate: func(p uidriver.Page, d *regexp.Regexp) uidriver.Element {
		return p.ByRole(uidriver.RoleCombobox, d).First()
	}},
	{Name: "textbox", Locate: func(p uidriver.Page, d *regexp.Regexp) uidriver.Element {
		return p.ByRole(uidriver.RoleTextbox, d).First()
	}},
	{Name: "placeholder", Locate: func(p uidriver.Page, d *regexp.Regexp) uidriver.Element {
		return p.ByPlaceholder(d).First()
	}},
}

// Resolver fills fields on one page.
type Resolver struct {
	page       uidriver.Page
	opts       Options
	strategies []Strategy
}

// New returns a resolver for page using DefaultStrategies.
func New(page uidriver.Page, opts Options) *Resolver {
	return &Resolver{page: page, opts: opts.withDefaults(), strategies: DefaultStrategies}
}

// WithStrategies returns a copy of r that tries strategies instead of the defaults.
func (r *Resolver) WithStrategies(strategies ...Strategy) *Resolver {
	cp := *r
	cp.strategies = strategies
	return &cp
}

// Options returns the effective options.
func (r *Resolver) Options() Options { return r.opts }

// Field binds a descriptor to the resolver. Label names the field in logs.
func (r *Resolver) Field(label string, descriptor *regexp.Regexp) Field {
	return Field{Descriptor: descriptor, Label: label, resolver: r}
}

// Field is a named descriptor bound to a resolver.
type Field struct {
	Descriptor *regexp.Regexp
	Label      string

	resolver *Resolver
}

// Set fills the field with value and commits the top suggestion.
func (f Field) Set(ctx context.Context, value string) error {
	if f.resolver == nil {
		return errs.New(errs.InvalidArgument, "field "+f.Label+" is not bound to a resolver")
	}
	if f.Label != "" {
		ctx = obs.WithField(ctx, f.Label)
	}
	return f.resolver.Set(ctx, f.Descriptor, value)
}

// Resolve waits for the first strategy that yields a visible element and
// returns it with the strategy name.
func (r *Resolver) Resolve(ctx context.Context, descriptor *regexp.Regexp) (uidriver.Element, string, error) {
	if descriptor == nil {
		return nil, "", errs.New(errs.InvalidArgument, "field descriptor is required")
	}
	var (
		found    uidriver.Element
		strategy string
	)
	err := wait.Until(ctx, r.waitOpts(), fmt.Sprintf("field /%s/", descriptor), func(ctx context.Context) (bool, error) {
		for _, s := range r.strategies {
			el := s.Locate(r.page, descriptor)
			if uidriver.IsVisible(ctx, el) {
				found, strategy = el, s.Name
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, "", err
	}
	return found, strategy, nil
}

// Set locates the field matching descriptor, replaces its value with value and
// commits the first suggestion from the popup the field controls.
func (r *Resolver) Set(ctx context.Context, descriptor *regexp.Regexp, value string) error {
	if descriptor == nil {
		return errs.New(errs.InvalidArgument, "field descriptor is required")
	}
	if value == "" {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("value for field /%s/ is empty", descriptor))
	}
	if obs.CorrelationFromContext(ctx).Field == "" {
		ctx = obs.WithField(ctx, descriptor.String())
	}
	log := obs.From(ctx).With("pkg", "field")

	field, strategy, err := r.Resolve(ctx, descriptor)
	if err != nil {
		return err
	}
	log.Debug("field resolved", "strategy", strategy, "element", field.Describe())

	if err := field.ScrollIntoView(ctx); err != nil {
		log.Debug("scroll into view failed", "error", err)
	}
	r.clearChip(ctx, log, field)

	if err := r.replaceValue(ctx, log, field, value); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	popup, err := r.popup(ctx, log, field)
	if err != nil {
		return err
	}
	if err := r.commitFirstOption(ctx, log, field, popup); err != nil {
		return err
	}
	log.Info("field set", "strategy", strategy, "value", value)
	return nil
}

// clearChip clicks the "remove value" button when one is showing. The button
// is optional, so its absence or a failed click never fails the call.
//
// A chip inside the field's container is clicked whatever the input holds,
// since token pickers show the chosen value as a chip next to an empty input.
// A chip found elsewhere on the page is only clicked when the field itself has
// a value; otherwise it belongs to another field.
func (r *Resolver) clearChip(ctx context.Context, log *slog.Logger, field uidriver.Element) {
	chip := field.Parent().ByRole(uidriver.RoleButton, r.opts.RemoveValue).First()
	scope := "field"
	if !uidriver.IsVisible(ctx, chip) {
		if v, err := field.Value(ctx); err == nil && v == "" {
			log.Debug("optional affordance absent", "affordance", "remove value", "scope", "field")
			return
		}
		chip = r.page.ByRole(uidriver.RoleButton, r.opts.RemoveValue).First()
		scope = "page"
		if !uidriver.IsVisible(ctx, chip) {
			log.Debug("optional affordance absent", "affordance", "remove value")
			return
		}
	}
	if err := r.withActionTimeout(ctx, chip.Click); err != nil {
		log.Warn("remove value click failed", "scope", scope, "error", err)
	}
}

func (r *Resolver) replaceValue(ctx context.Context, log *slog.Logger, field uidriver.Element, value string) error {
	if err := r.withActionTimeout(ctx, field.Click); err != nil {
		return errs.Wrap(errs.ActionFailure, "focus field", err)
	}
	if err := field.Press(ctx, "Control+A"); err != nil {
		log.Debug("Control+A failed, trying Meta+A", "error", err)
		if err2 := field.Press(ctx, "Meta+A"); err2 != nil {
			return errs.Wrap(errs.ActionFailure, "select field contents", fmt.Errorf("%w; Meta+A: %w", err, err2))
		}
	}
	if err := field.Press(ctx, "Delete"); err != nil {
		log.Debug("delete failed", "error", err)
	}
	if err := field.TypeText(ctx, value, r.opts.TypeDelay); err != nil {
		return errs.Wrap(errs.ActionFailure, "type value", err)
	}
	return nil
}

// popup returns the suggestion container once it is visible. It follows the
// field's aria-controls reference when present, since portalled popups are not
// descendants of the field; otherwise it takes the first visible listbox.
func (r *Resolver) popup(ctx context.Context, log *slog.Logger, field uidriver.Element) (uidriver.Element, error) {
	controls, err := field.Attribute(ctx, "aria-controls")
	if err != nil {
		log.Warn("read aria-controls failed", "error", err)
	}
	var popup uidriver.Element
	if id := uidriver.FirstIDRef(controls); id != "" {
		popup = uidriver.ByID(r.page, id)
		log.Debug("suggestion container from aria-controls", "id", id)
	} else {
		popup = r.page.Locate(`[role="listbox"]:visible`).First()
		log.Debug("suggestion container from visible listbox")
	}
	if err := wait.Visible(ctx, r.waitOpts(), "suggestion list "+popup.Describe(), popup); err != nil {
		return nil, err
	}
	return popup, nil
}

func (r *Resolver) commitFirstOption(ctx context.Context, log *slog.Logger, field, popup uidriver.Element) error {
	option := popup.ByRole(uidriver.RoleOption, nil).First()
	clickErr := r.withActionTimeout(ctx, option.Click)
	if clickErr == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Info("option click failed, using keyboard", "error", clickErr)
	if err := field.Press(ctx, "ArrowDown"); err != nil {
		return errs.Wrap(errs.ActionFailure, "select suggestion", fmt.Errorf("%w; ArrowDown: %w", clickErr, err))
	}
	if err := field.Press(ctx, "Enter"); err != nil {
		return errs.Wrap(errs.ActionFailure, "select suggestion", fmt.Errorf("%w; Enter: %w", clickErr, err))
	}
	return nil
}

func (r *Resolver) withActionTimeout(ctx context.Context, action func(context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, r.opts.ActionTimeout)
	defer cancel()
	return action(actx)
}

func (r *Resolver) waitOpts() wait.Options {
	return wait.Options{Timeout: r.opts.ResolveTimeout, Interval: r.opts.PollInterval}
}
