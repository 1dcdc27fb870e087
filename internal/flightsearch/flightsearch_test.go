package flightsearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/flightprobe/internal/errs"
	"github.com/kuitang/flightprobe/internal/field"
	"github.com/kuitang/flightprobe/internal/uidriver/memdom"
)

func testOptions() Options {
	return Options{
		BaseURL: "https://flights.example.test",
		Field: field.Options{
			ResolveTimeout: 500 * time.Millisecond,
			PollInterval:   5 * time.Millisecond,
			ActionTimeout:  200 * time.Millisecond,
		},
		ConsentTimeout: 100 * time.Millisecond,
		ResultsTimeout: 500 * time.Millisecond,
		MonthTimeout:   20 * time.Millisecond,
	}
}

func TestDateLabel(t *testing.T) {
	t.Parallel()
	got, err := DateLabel("2026-01-20")
	require.NoError(t, err)
	require.Equal(t, "January 20, 2026", got)

	got, err = DateLabel(" 2026-07-04 ")
	require.NoError(t, err)
	require.Equal(t, "July 4, 2026", got)

	for _, bad := range []string{"", "20/01/2026", "2026-13-01", "2026-02-30"} {
		_, err := DateLabel(bad)
		require.Equal(t, errs.InvalidArgument, errs.CodeOf(err), "DateLabel(%q)", bad)
	}
}

func testDateLabel_RoundTrips(t *rapid.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rapid.IntRange(0, 5000).Draw(t, "offset"))
	label, err := DateLabel(day.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("DateLabel: %v", err)
	}
	back, err := time.Parse("January 2, 2006", label)
	if err != nil || !back.Equal(day) {
		t.Fatalf("label %q does not name %s", label, day.Format("2006-01-02"))
	}
}

func TestDateLabel_RoundTrips(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testDateLabel_RoundTrips)
}

func TestCityToken(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Dublin":                       "Dublin",
		"Dublin, Ireland":              "Dublin",
		"  New York , NY":              "New York",
		"London, United Kingdom (LHR)": "London",
		"":                             "",
	}
	for in, want := range cases {
		require.Equal(t, want, CityToken(in), "CityToken(%q)", in)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	require.NoError(t, New(s.page, testOptions()).Open(context.Background()))
	require.Equal(t, "https://flights.example.test", s.page.URL())

	err := New(s.page, Options{}).Open(context.Background())
	require.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestHandleCookies_AcceptsWhenShown(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{consent: true})
	require.NoError(t, New(s.page, testOptions()).HandleCookies(context.Background()))
	require.False(t, s.consent.Visible())
	require.Contains(t, s.page.Events(), `click button("Accept all")`)
}

func TestHandleCookies_RejectsWhenAcceptMissing(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{consent: true})
	s.consent.Children[1].Remove()

	require.NoError(t, New(s.page, testOptions()).HandleCookies(context.Background()))
	require.False(t, s.consent.Visible())
	require.Contains(t, s.page.Events(), `click button("Reject all")`)
}

func TestHandleCookies_AbsentDialogIsSkipped(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	require.NoError(t, New(s.page, testOptions()).HandleCookies(context.Background()))
}

func TestHandleCookies_DialogThatStaysIsResolutionTimeout(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{consent: true})
	for _, c := range s.consent.Children {
		c.OnClick = nil
	}
	err := New(s.page, testOptions()).HandleCookies(context.Background())
	require.Equal(t, errs.ResolutionTimeout, errs.CodeOf(err))
}

func TestSetTripTypeOneWay_Combobox(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	p := New(s.page, testOptions())
	ctx := context.Background()

	require.NoError(t, p.SetTripTypeOneWay(ctx))
	require.Equal(t, "Trip type One-way", s.trip.Attr("aria-label"))
	require.False(t, s.tripPopup.Visible())

	before := len(s.page.Events())
	require.NoError(t, p.SetTripTypeOneWay(ctx))
	require.Len(t, s.page.Events(), before, "already one-way: no interaction")
}

func TestSetTripTypeOneWay_RadioFallbackInPopup(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	for _, opt := range s.tripPopup.Children {
		opt.SetAttr("role", "radio")
	}
	require.NoError(t, New(s.page, testOptions()).SetTripTypeOneWay(context.Background()))
	require.Equal(t, "Trip type One-way", s.trip.Attr("aria-label"))
}

func TestSetTripTypeOneWay_CompactRadiogroup(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{compactTrip: true})
	require.NoError(t, New(s.page, testOptions()).SetTripTypeOneWay(context.Background()))
	require.Equal(t, "true", s.radios.Children[1].Attr("aria-checked"))
	require.Equal(t, "false", s.radios.Children[0].Attr("aria-checked"))
}

func TestSetTripTypeOneWay_OptionClickFailsIsActionFailure(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	s.tripPopup.Children[1].ClickErr = errors.New("intercepted")
	err := New(s.page, testOptions()).SetTripTypeOneWay(context.Background())
	require.Equal(t, errs.ActionFailure, errs.CodeOf(err))
}

func TestFields_OriginAndDestination(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	p := New(s.page, testOptions())
	ctx := context.Background()

	require.NoError(t, p.Origin.Set(ctx, "Dublin"))
	require.NoError(t, p.Destination.Set(ctx, "London"))
	require.Equal(t, "Dublin, Ireland (DUB)", s.origin.Value)
	require.Equal(t, "London, United Kingdom (LHR)", s.destination.Value)

	// Re-setting the origin goes through its chip and leaves the destination alone.
	require.NoError(t, p.Origin.Set(ctx, "Paris"))
	require.Equal(t, "Paris, France (CDG)", s.origin.Value)
	require.Equal(t, "London, United Kingdom (LHR)", s.destination.Value)
}

func TestPickDepartureDate_PagesForward(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	require.NoError(t, New(s.page, testOptions()).PickDepartureDate(context.Background(), "2026-01-20"))
	require.Equal(t, "January 20, 2026", s.departLabel)
	require.False(t, s.calendar.Visible(), "done button closes the picker")
}

func TestPickDepartureDate_GivesUpAfterMaxMonths(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	opts := testOptions()
	opts.MaxMonths = 2
	err := New(s.page, opts).PickDepartureDate(context.Background(), "2026-06-01")
	require.Equal(t, errs.ResolutionTimeout, errs.CodeOf(err))
	require.ErrorContains(t, err, "June 1, 2026")
}

func TestPickDepartureDate_RejectsBadDate(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	err := New(s.page, testOptions()).PickDepartureDate(context.Background(), "01/20/2026")
	require.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	require.Empty(t, s.page.Events(), "nothing is clicked for an invalid date")
}

func TestSearchFilterAndAssert(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	p := New(s.page, testOptions())
	ctx := context.Background()

	require.NoError(t, p.Search(ctx))
	require.True(t, s.results.Visible())

	require.NoError(t, p.ApplyNonstopFilter(ctx))
	require.True(t, s.nonstopBox.Checked)
	require.Contains(t, s.page.Events(), "networkidle")

	require.NoError(t, p.AssertFirstResult(ctx, "Dublin, Ireland", "London", "2026-01-20"))
}

func TestAssertFirstResult_WrongCityIsAssertionFailed(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	p := New(s.page, testOptions())
	ctx := context.Background()
	require.NoError(t, p.Search(ctx))
	require.NoError(t, p.ApplyNonstopFilter(ctx))

	err := p.AssertFirstResult(ctx, "Dublin", "Paris", "2026-01-20")
	require.Equal(t, errs.AssertionFailed, errs.CodeOf(err))
	require.ErrorContains(t, err, "destination Paris")
}

func TestAssertFirstResult_WithoutFilterSeesOneStop(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	p := New(s.page, testOptions())
	ctx := context.Background()
	require.NoError(t, p.Search(ctx))

	err := p.AssertFirstResult(ctx, "Dublin", "London", "2026-01-20")
	require.Equal(t, errs.AssertionFailed, errs.CodeOf(err))
	require.ErrorContains(t, err, "nonstop")
}

func TestApplyNonstopFilter_PillFallback(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	s.nonstopBox.Remove()
	pill := memdom.El("button").WithText("Nonstop only")
	var clicked bool
	pill.OnClick = func(*memdom.Node) { clicked = true }
	s.results.Append(pill)

	p := New(s.page, testOptions())
	ctx := context.Background()
	require.NoError(t, p.Search(ctx))
	require.NoError(t, p.ApplyNonstopFilter(ctx))
	require.True(t, clicked)
}

func TestApplyNonstopFilter_CheckFailsFallsBackToClick(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	p := New(s.page, testOptions())
	ctx := context.Background()
	require.NoError(t, p.Search(ctx))

	s.nonstopBox.ClickErr = errors.New("covered by tooltip")
	err := p.ApplyNonstopFilter(ctx)
	require.Equal(t, errs.ActionFailure, errs.CodeOf(err))
	require.ErrorContains(t, err, "covered by tooltip")
}

func TestSearch_NoResultsIsResolutionTimeout(t *testing.T) {
	t.Parallel()
	s := newSite(siteOptions{})
	s.results.Remove()
	err := New(s.page, testOptions()).Search(context.Background())
	require.Equal(t, errs.ResolutionTimeout, errs.CodeOf(err))
}
