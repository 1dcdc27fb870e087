package flightsearch

import (
	"strings"
	"time"

	"github.com/kuitang/flightprobe/internal/uidriver/memdom"
)

// site is an in-memory rendition of the flight-search home and results pages.
type site struct {
	page *memdom.Page

	consent     *memdom.Node
	trip        *memdom.Node
	tripPopup   *memdom.Node
	radios      *memdom.Node
	origin      *memdom.Node
	destination *memdom.Node
	calendar    *memdom.Node
	departLabel string
	results     *memdom.Node
	nonstopBox  *memdom.Node
	cards       []*memdom.Node
}

type siteOptions struct {
	consent      bool
	compactTrip  bool
	calendarFrom time.Time
}

var airports = []string{
	"Dublin, Ireland (DUB)",
	"London, United Kingdom (LHR)",
	"London Gatwick (LGW)",
	"Paris, France (CDG)",
}

func suggestAirports(q string) []string {
	var out []string
	for _, a := range airports {
		if strings.HasPrefix(strings.ToLower(a), strings.ToLower(q)) {
			out = append(out, a)
		}
	}
	return out
}

func newSite(opts siteOptions) *site {
	s := &site{page: memdom.NewPage()}
	body := s.page.Body()

	if opts.consent {
		s.consent = memdom.El("div", "role", "dialog", "aria-label", "Privacy").Append(
			memdom.El("p").WithText("We use cookies to improve your experience."),
		)
		accept := memdom.El("button").WithText("Accept all")
		accept.OnClick = func(*memdom.Node) { s.consent.Hide() }
		reject := memdom.El("button").WithText("Reject all")
		reject.OnClick = func(*memdom.Node) { s.consent.Hide() }
		s.consent.Append(accept, reject)
		body.Append(s.consent)
	}

	form := memdom.El("form")
	body.Append(form)

	if opts.compactTrip {
		s.radios = memdom.El("div", "role", "radiogroup", "aria-label", "Trip type")
		for _, name := range []string{"Round-trip", "One-way"} {
			r := memdom.El("span", "role", "radio", "aria-checked", "false").WithText(name)
			r.OnClick = func(n *memdom.Node) {
				for _, sib := range s.radios.Children {
					sib.SetAttr("aria-checked", "false")
				}
				n.SetAttr("aria-checked", "true")
			}
			s.radios.Append(r)
		}
		s.radios.Children[0].SetAttr("aria-checked", "true")
		form.Append(s.radios)
	} else {
		s.trip = memdom.El("div", "role", "combobox", "aria-controls", "trip-popup",
			"aria-expanded", "false", "aria-label", "Trip type Return").WithText("Return")
		s.tripPopup = memdom.El("ul", "role", "listbox", "id", "trip-popup")
		s.tripPopup.Hide()
		for _, name := range []string{"Return", "One-way", "Multi-city"} {
			label := name
			opt := memdom.El("li", "role", "option").WithText(label)
			opt.OnClick = func(*memdom.Node) {
				s.trip.Text = label
				s.trip.SetAttr("aria-label", "Trip type "+label)
				s.trip.SetAttr("aria-expanded", "false")
				s.tripPopup.Hide()
			}
			s.tripPopup.Append(opt)
		}
		s.trip.OnClick = func(*memdom.Node) {
			s.tripPopup.Show()
			s.trip.SetAttr("aria-expanded", "true")
		}
		form.Append(s.trip)
	}

	s.origin = memdom.El("input", "role", "combobox", "aria-label", "Flight origin input", "aria-controls", "origin-list")
	originList := memdom.El("ul", "id", "origin-list")
	memdom.NewAutocomplete(s.origin, originList, suggestAirports)
	originChip := memdom.El("button", "aria-label", "Remove value")
	form.Append(memdom.El("div").Append(s.origin, originChip))
	memdom.RemoveChip(originChip, s.origin)

	s.destination = memdom.El("input", "aria-label", "Flight destination input")
	destList := memdom.El("ul")
	memdom.NewAutocomplete(s.destination, destList, suggestAirports)
	form.Append(memdom.El("div").Append(s.destination))

	s.buildCalendar(form, opts.calendarFrom)

	search := memdom.El("button", "type", "submit").WithText("Search")
	search.OnClick = func(*memdom.Node) { s.results.Show() }
	form.Append(search)

	// Popups are portalled to the end of <body>.
	body.Append(originList, destList)
	if s.tripPopup != nil {
		body.Append(s.tripPopup)
	}

	s.buildResults(body)
	return s
}

func (s *site) buildCalendar(form *memdom.Node, from time.Time) {
	if from.IsZero() {
		from = time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	}
	month := from
	open := memdom.El("button", "aria-label", "Departure date").WithText("Depart")
	s.calendar = memdom.El("div", "role", "dialog", "aria-label", "Calendar")
	s.calendar.Hide()
	days := memdom.El("div")
	caption := memdom.El("h2")

	render := func() {
		days.Clear()
		caption.Text = month.Format("January 2006")
		for d := month; d.Month() == month.Month(); d = d.AddDate(0, 0, 1) {
			label := d.Format("January 2, 2006")
			btn := memdom.El("button", "aria-label", label).WithText(d.Format("2"))
			btn.OnClick = func(*memdom.Node) { s.departLabel = label }
			days.Append(btn)
		}
	}
	next := memdom.El("button", "aria-label", "Next month")
	next.OnClick = func(*memdom.Node) {
		month = month.AddDate(0, 1, 0)
		render()
	}
	done := memdom.El("button").WithText("Done")
	done.OnClick = func(*memdom.Node) { s.calendar.Hide() }
	open.OnClick = func(*memdom.Node) { s.calendar.Show() }

	render()
	s.calendar.Append(caption, next, days, done)
	form.Append(open, s.calendar)
}

func (s *site) buildResults(body *memdom.Node) {
	s.results = memdom.El("section", "aria-label", "Results")
	s.results.Hide()
	s.nonstopBox = memdom.El("input", "type", "checkbox", "aria-label", "Nonstop")
	filters := memdom.El("aside").Append(memdom.El("h3").WithText("Filters"), s.nonstopBox)
	s.results.Append(filters)

	type flight struct{ stops, from, to string }
	for _, f := range []flight{
		{"1 stop", "Dublin (DUB)", "London (LGW)"},
		{"Nonstop", "Dublin (DUB)", "London (LHR)"},
	} {
		details := memdom.El("div").Append(memdom.El("span").WithText("Tue, January 20, 2026"))
		details.Hide()
		more := memdom.El("button", "aria-expanded", "false").WithText("View details")
		more.OnClick = func(n *memdom.Node) {
			details.Show()
			n.SetAttr("aria-expanded", "true")
		}
		card := memdom.El("div", "data-testid", "result-card").Append(
			memdom.El("span").WithText(f.stops),
			memdom.El("span").WithText(f.from),
			memdom.El("span").WithText(f.to),
			more,
			details,
		)
		s.cards = append(s.cards, card)
		s.results.Append(card)
	}
	s.nonstopBox.OnClick = func(*memdom.Node) {
		for _, c := range s.cards {
			if !strings.Contains(c.TextContent(), "Nonstop") {
				c.Remove()
			}
		}
	}
	body.Append(s.results)
}
