// Package flightsearch drives the flight-search site: consent banner, trip
// type, origin and destination, departure date, search, the nonstop filter and
// the first result.
//
// Each interaction tries a primary lookup, then an alternate representation of
// the same control, and waits with an explicit bound for the resulting state.
package flightsearch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kuitang/flightprobe/internal/errs"
	"github.com/kuitang/flightprobe/internal/field"
	"github.com/kuitang/flightprobe/internal/obs"
	"github.com/kuitang/flightprobe/internal/uidriver"
	"github.com/kuitang/flightprobe/internal/wait"
)

var (
	originName      = regexp.MustCompile(`(?i)from|origin|departure`)
	destinationName = regexp.MustCompile(`(?i)to|destination|arrival`)

	consentText  = regexp.MustCompile(`(?i)cookie|consent`)
	acceptAll    = regexp.MustCompile(`(?i)accept all`)
	rejectAll    = regexp.MustCompile(`(?i)reject all`)
	tripTypeName = regexp.MustCompile(`(?i)trip type`)
	tripTypeText = regexp.MustCompile(`(?i)Return|One[-\s]?way|Multi[-\s]?city`)
	oneWay       = regexp.MustCompile(`(?i)one[-\s]?way`)
	oneWayExact  = regexp.MustCompile(`(?i)^One-way$`)
	tripOneWay   = regexp.MustCompile(`(?i)Trip type.*One[-\s]?way`)
	dateControl  = regexp.MustCompile(`(?i)depart|date|departure`)
	nextMonth    = regexp.MustCompile(`(?i)next month|next`)
	closePicker  = regexp.MustCompile(`(?i)done|apply|save|close`)
	searchName   = regexp.MustCompile(`(?i)search`)
	resultsReady = regexp.MustCompile(`(?i)filters|stops|airlines|price`)
	nonstop      = regexp.MustCompile(`(?i)non[-\s]?stop`)
	detailsName  = regexp.MustCompile(`(?i)details|more|itinerary|view`)
)

const (
	resultCardSelector = `[data-test-result], [data-result], [data-testid*="result"]`
	detailsSelector    = `[data-testid*="details"], [aria-expanded="false"]`
	dateButtonSelector = `[data-testid*="date"] button`
	nextMonthSelector  = `[aria-label*="Next"]`
	tripTypeSelector   = `[role="combobox"][aria-controls]`
)

// Options bounds the page-level waits.
type Options struct {
	BaseURL string
	Field   field.Options
	// ConsentTimeout is how long to wait for a cookie banner before assuming there is none.
	ConsentTimeout time.Duration
	// ResultsTimeout bounds waits on search results and the network settling.
	ResultsTimeout time.Duration
	// MonthTimeout bounds the wait for a calendar page to show the wanted day.
	MonthTimeout time.Duration
	// MaxMonths is how many times "next month" is pressed before giving up.
	MaxMonths int
}

func (o Options) withDefaults() Options {
	if o.ConsentTimeout <= 0 {
		o.ConsentTimeout = 8 * time.Second
	}
	if o.ResultsTimeout <= 0 {
		o.ResultsTimeout = 60 * time.Second
	}
	if o.MonthTimeout <= 0 {
		o.MonthTimeout = time.Second
	}
	if o.MaxMonths <= 0 {
		o.MaxMonths = 12
	}
	return o
}

// Page is the flight-search page object.
type Page struct {
	Origin      field.Field
	Destination field.Field

	page uidriver.Page
	opts Options
}

// New binds the page object to page.
func New(page uidriver.Page, opts Options) *Page {
	opts = opts.withDefaults()
	r := field.New(page, opts.Field)
	opts.Field = r.Options()
	return &Page{
		Origin:      r.Field("origin", originName),
		Destination: r.Field("destination", destinationName),
		page:        page,
		opts:        opts,
	}
}

func (s *Page) log(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "flightsearch")
}

func (s *Page) waitOpts(timeout time.Duration) wait.Options {
	return wait.Options{Timeout: timeout, Interval: s.opts.Field.PollInterval}
}

// Open navigates to the site's home page.
func (s *Page) Open(ctx context.Context) error {
	if s.opts.BaseURL == "" {
		return errs.New(errs.InvalidArgument, "base URL is required")
	}
	if err := s.page.Goto(ctx, s.opts.BaseURL); err != nil {
		return errs.Wrap(errs.ActionFailure, "open "+s.opts.BaseURL, err)
	}
	s.log(ctx).Info("opened", "url", s.page.URL())
	return nil
}

// HandleCookies dismisses the cookie consent dialog, preferring "Accept all".
// A dialog that never appears is not an error.
func (s *Page) HandleCookies(ctx context.Context) error {
	log := s.log(ctx)
	dlg := s.page.ByRole(uidriver.RoleDialog, nil).Filter(consentText).First()
	if err := wait.Visible(ctx, s.waitOpts(s.opts.ConsentTimeout), "consent dialog", dlg); err != nil {
		if errs.Is(err, errs.ResolutionTimeout) {
			log.Debug("optional affordance absent", "affordance", "consent dialog")
			return nil
		}
		return err
	}

	btn := dlg.ByRole(uidriver.RoleButton, acceptAll).First()
	choice := "accept all"
	if !uidriver.IsVisible(ctx, btn) {
		btn = dlg.ByRole(uidriver.RoleButton, rejectAll).First()
		choice = "reject all"
	}
	if err := s.click(ctx, btn, choice); err != nil {
		return err
	}
	if err := wait.Hidden(ctx, s.waitOpts(s.opts.Field.ResolveTimeout), "consent dialog", dlg); err != nil {
		return err
	}
	log.Info("consent dismissed", "choice", choice)
	return nil
}

// SetTripTypeOneWay switches the trip type to one-way. It handles both the
// compact radiogroup and the combobox with a popup.
func (s *Page) SetTripTypeOneWay(ctx context.Context) error {
	radios := s.page.ByRole(uidriver.RoleRadiogroup, tripTypeName).First()
	if uidriver.IsVisible(ctx, radios) {
		return s.tripTypeRadio(ctx, radios)
	}
	return s.tripTypeCombobox(ctx)
}

func (s *Page) tripTypeRadio(ctx context.Context, radios uidriver.Element) error {
	one := radios.ByRole(uidriver.RoleRadio, oneWay).First()
	checked, err := one.Attribute(ctx, "aria-checked")
	if err != nil {
		return errs.Wrap(errs.ActionFailure, "read one-way radio", err)
	}
	if checked == "true" {
		return nil
	}
	if err := s.click(ctx, one, "one-way radio"); err != nil {
		return err
	}
	if err := s.waitAttr(ctx, one, "aria-checked", regexp.MustCompile(`^true$`), "one-way radio checked"); err != nil {
		return err
	}
	s.log(ctx).Info("trip type set", "variant", "radiogroup")
	return nil
}

func (s *Page) tripTypeCombobox(ctx context.Context) error {
	log := s.log(ctx)
	trip := s.page.Locate(tripTypeSelector).Filter(tripTypeText).First()
	if err := wait.Visible(ctx, s.waitOpts(s.opts.Field.ResolveTimeout), "trip type control", trip); err != nil {
		return err
	}
	label, err := trip.Attribute(ctx, "aria-label")
	if err != nil {
		return errs.Wrap(errs.ActionFailure, "read trip type", err)
	}
	if oneWay.MatchString(label) {
		return nil
	}

	if err := trip.ScrollIntoView(ctx); err != nil {
		log.Debug("scroll into view failed", "error", err)
	}
	if err := s.click(ctx, trip, "trip type"); err != nil {
		return err
	}
	if err := s.waitAttr(ctx, trip, "aria-expanded", regexp.MustCompile(`^true$`), "trip type expanded"); err != nil {
		return err
	}

	controls, err := trip.Attribute(ctx, "aria-controls")
	if err != nil {
		log.Warn("read aria-controls failed", "error", err)
	}
	var popup uidriver.Element
	if id := uidriver.FirstIDRef(controls); id != "" {
		popup = uidriver.ByID(s.page, id)
	} else {
		popup = s.page.ByRole(uidriver.RoleListbox, tripTypeName).First()
	}
	if err := wait.Visible(ctx, s.waitOpts(s.opts.Field.ResolveTimeout), "trip type popup", popup); err != nil {
		return err
	}

	option := popup.ByRole(uidriver.RoleOption, oneWayExact)
	n, err := option.Count(ctx)
	if err != nil {
		return errs.Wrap(errs.ActionFailure, "count one-way options", err)
	}
	if n > 1 {
		log.Warn("several one-way options, using the first", "count", n)
	}
	target := option.First()
	if n == 0 {
		target = popup.ByRole(uidriver.RoleRadio, oneWayExact).First()
	}
	if err := s.click(ctx, target, "one-way option"); err != nil {
		return err
	}
	if err := s.waitAttr(ctx, trip, "aria-label", tripOneWay, "trip type one-way"); err != nil {
		return err
	}
	log.Info("trip type set", "variant", "combobox")
	return nil
}

// PickDepartureDate opens the date picker and selects iso (YYYY-MM-DD),
// paging forward through months until the day is shown.
func (s *Page) PickDepartureDate(ctx context.Context, iso string) error {
	label, err := DateLabel(iso)
	if err != nil {
		return err
	}
	log := s.log(ctx)

	opener, err := s.firstVisible(ctx, "date control", s.opts.Field.ResolveTimeout,
		s.page.ByRole(uidriver.RoleButton, dateControl).First(),
		s.page.Locate(dateButtonSelector).First(),
	)
	if err != nil {
		return err
	}
	if err := s.click(ctx, opener, "date control"); err != nil {
		return err
	}

	day := s.page.ByRole(uidriver.RoleButton, regexp.MustCompile(`(?i)^`+regexp.QuoteMeta(label)+`$`)).First()
	found := false
	for month := 0; month <= s.opts.MaxMonths; month++ {
		if month > 0 {
			next, err := s.firstVisible(ctx, "next month", s.opts.MonthTimeout,
				s.page.ByRole(uidriver.RoleButton, nextMonth).First(),
				s.page.Locate(nextMonthSelector).First(),
			)
			if err != nil {
				return err
			}
			if err := s.click(ctx, next, "next month"); err != nil {
				return err
			}
		}
		err := wait.Visible(ctx, s.waitOpts(s.opts.MonthTimeout), label, day)
		if err == nil {
			found = true
			break
		}
		if !errs.Is(err, errs.ResolutionTimeout) {
			return err
		}
		log.Debug("day not on calendar page", "day", label, "month", month)
	}
	if !found {
		return errs.New(errs.ResolutionTimeout, fmt.Sprintf("day %q not found within %d months", label, s.opts.MaxMonths))
	}
	if err := s.click(ctx, day, label); err != nil {
		return err
	}

	closeBtn := s.page.ByRole(uidriver.RoleButton, closePicker).First()
	if uidriver.IsVisible(ctx, closeBtn) {
		if err := s.click(ctx, closeBtn, "close date picker"); err != nil {
			log.Warn("close date picker failed", "error", err)
		}
	} else {
		log.Debug("optional affordance absent", "affordance", "date picker done button")
	}
	log.Info("departure date picked", "date", iso, "label", label)
	return nil
}

// Search submits the form and waits for the results page.
func (s *Page) Search(ctx context.Context) error {
	if err := s.click(ctx, s.page.ByRole(uidriver.RoleButton, searchName).First(), "search"); err != nil {
		return err
	}
	ready := s.page.ByText(resultsReady).First()
	if err := wait.Visible(ctx, s.waitOpts(s.opts.ResultsTimeout), "search results", ready); err != nil {
		return err
	}
	s.log(ctx).Info("results shown")
	return nil
}

// ApplyNonstopFilter restricts results to nonstop flights, via the checkbox or
// the quick-filter pill, then waits for the network to settle.
func (s *Page) ApplyNonstopFilter(ctx context.Context) error {
	log := s.log(ctx)
	cb := s.page.ByRole(uidriver.RoleCheckbox, nonstop).First()
	pill := s.page.ByRole(uidriver.RoleButton, nonstop).First()

	switch {
	case uidriver.IsVisible(ctx, cb):
		if err := s.withActionTimeout(ctx, cb.Check); err != nil {
			log.Info("check failed, clicking", "error", err)
			if err2 := s.withActionTimeout(ctx, cb.Click); err2 != nil {
				return errs.Wrap(errs.ActionFailure, "nonstop filter", fmt.Errorf("%w; click: %w", err, err2))
			}
		}
	case uidriver.IsVisible(ctx, pill):
		if err := s.click(ctx, pill, "nonstop pill"); err != nil {
			return err
		}
	default:
		log.Debug("optional affordance absent", "affordance", "nonstop filter")
	}

	if err := s.page.WaitForNetworkIdle(ctx, s.opts.ResultsTimeout); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errs.Wrap(errs.ResolutionTimeout, "network idle after nonstop filter", err)
	}
	log.Info("nonstop filter applied")
	return nil
}

// AssertFirstResult checks that the first result card shows a nonstop flight
// between origin and destination on iso.
func (s *Page) AssertFirstResult(ctx context.Context, origin, destination, iso string) error {
	label, err := DateLabel(iso)
	if err != nil {
		return err
	}
	log := s.log(ctx)

	card, err := s.firstVisible(ctx, "first result", s.opts.ResultsTimeout,
		s.page.Locate(resultCardSelector).First(),
		s.page.ByRole(uidriver.RoleArticle, nil).First(),
	)
	if err != nil {
		return err
	}

	details := card.ByRole(uidriver.RoleButton, detailsName).First()
	if !uidriver.IsVisible(ctx, details) {
		details = card.Locate(detailsSelector).First()
	}
	if uidriver.IsVisible(ctx, details) {
		if err := s.click(ctx, details, "result details"); err != nil {
			log.Warn("expand result details failed", "error", err)
		}
	}

	checks := []struct {
		what string
		re   *regexp.Regexp
	}{
		{"nonstop", nonstop},
		{"origin " + CityToken(origin), textPattern(CityToken(origin))},
		{"destination " + CityToken(destination), textPattern(CityToken(destination))},
		{"date " + label, textPattern(label)},
	}
	for _, c := range checks {
		el := card.ByText(c.re).First()
		if err := wait.Visible(ctx, s.waitOpts(s.opts.Field.ActionTimeout), c.what, el); err != nil {
			if !errs.Is(err, errs.ResolutionTimeout) {
				return err
			}
			return errs.Wrap(errs.AssertionFailed, "first result does not show "+c.what, err)
		}
	}
	log.Info("first result verified", "origin", origin, "destination", destination, "date", iso)
	return nil
}

// DateLabel formats an ISO date (YYYY-MM-DD) the way the calendar names its
// day buttons, e.g. "January 20, 2026".
func DateLabel(iso string) (string, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(iso))
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, fmt.Sprintf("date %q is not YYYY-MM-DD", iso), err)
	}
	return d.Format("January 2, 2006"), nil
}

// CityToken returns the part of a location before the first comma, trimmed.
// "Dublin, Ireland" becomes "Dublin".
func CityToken(location string) string {
	token, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(token)
}

func textPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s))
}

// firstVisible waits until one of the candidates is visible and returns the
// first such candidate in argument order.
func (s *Page) firstVisible(ctx context.Context, what string, timeout time.Duration, candidates ...uidriver.Element) (uidriver.Element, error) {
	var found uidriver.Element
	err := wait.Until(ctx, s.waitOpts(timeout), what, func(ctx context.Context) (bool, error) {
		for _, c := range candidates {
			if uidriver.IsVisible(ctx, c) {
				found = c
				return true, nil
			}
		}
		return false, nil
	})
	return found, err
}

func (s *Page) click(ctx context.Context, el uidriver.Element, what string) error {
	if err := s.withActionTimeout(ctx, el.Click); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errs.Wrap(errs.ActionFailure, "click "+what, err)
	}
	return nil
}

func (s *Page) withActionTimeout(ctx context.Context, action func(context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, s.opts.Field.ActionTimeout)
	defer cancel()
	return action(actx)
}

func (s *Page) waitAttr(ctx context.Context, el uidriver.Element, name string, want *regexp.Regexp, what string) error {
	return wait.Until(ctx, s.waitOpts(s.opts.Field.ResolveTimeout), what, func(ctx context.Context) (bool, error) {
		v, err := el.Attribute(ctx, name)
		if err != nil {
			return false, err
		}
		return want.MatchString(v), nil
	})
}
