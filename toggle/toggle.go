// ABOUTME: Timeline view toggle that switches the page between the recent and popular feeds.
// ABOUTME: Holds the active timeline as explicit state and renders it onto the container and both buttons in one step.
package toggle

import (
	"errors"
	"fmt"
)

// Element identifiers and the fetch attribute shared by the page template,
// the browser script, and this package.
const (
	ContainerID     = "timeline"
	PopularButtonID = "popular-timeline-button"
	RecentButtonID  = "recent-timeline-button"

	// FetchAttribute is read by htmx, which performs the request and swap.
	FetchAttribute = "hx-get"

	RecentPath  = "/timeline"
	PopularPath = "/timeline/popular"
)

// ErrMissingElement is returned by Initialize when one of the three elements
// could not be found by the host.
var ErrMissingElement = errors.New("toggle: missing element")

// ActiveTimeline is the feed currently requested by the timeline container.
type ActiveTimeline int

const (
	Recent ActiveTimeline = iota
	Popular
)

func (a ActiveTimeline) String() string {
	switch a {
	case Recent:
		return "recent"
	case Popular:
		return "popular"
	default:
		return fmt.Sprintf("ActiveTimeline(%d)", int(a))
	}
}

// Path returns the server endpoint serving this timeline.
func (a ActiveTimeline) Path() string {
	if a == Popular {
		return PopularPath
	}
	return RecentPath
}

// ParseActiveTimeline maps an endpoint path back to its timeline.
func ParseActiveTimeline(path string) (ActiveTimeline, bool) {
	switch path {
	case RecentPath:
		return Recent, true
	case PopularPath:
		return Popular, true
	default:
		return Recent, false
	}
}

// View is the rendered form of an ActiveTimeline. Exactly one of the two
// buttons is hidden: the one matching the active timeline.
type View struct {
	FetchPath     string
	PopularHidden bool
	RecentHidden  bool
}

// Render maps a timeline state to the attribute value and button visibility.
func Render(active ActiveTimeline) View {
	return View{
		FetchPath:     active.Path(),
		PopularHidden: active == Popular,
		RecentHidden:  active != Popular,
	}
}

// Element is the subset of a DOM element the toggle mutates. Hiding is an
// explicit "display: none" override and showing clears that override, so
// existing stylesheets keep control of the visible layout.
type Element interface {
	SetAttribute(name, value string)
	SetStyle(property, value string)
	RemoveStyle(property string)
	OnClick(handler func())
}

// Toggle wires the two buttons to the timeline container.
type Toggle struct {
	container Element
	popular   Element
	recent    Element
	active    ActiveTimeline
}

// Initialize attaches the click listeners. It must be called once, after the
// host has located all three elements. The page is expected to start in the
// recent state (popular button visible, recent button hidden).
func Initialize(container, popularButton, recentButton Element) (*Toggle, error) {
	switch {
	case container == nil:
		return nil, fmt.Errorf("%w: #%s", ErrMissingElement, ContainerID)
	case popularButton == nil:
		return nil, fmt.Errorf("%w: #%s", ErrMissingElement, PopularButtonID)
	case recentButton == nil:
		return nil, fmt.Errorf("%w: #%s", ErrMissingElement, RecentButtonID)
	}

	t := &Toggle{
		container: container,
		popular:   popularButton,
		recent:    recentButton,
		active:    Recent,
	}
	popularButton.OnClick(func() { t.Show(Popular) })
	recentButton.OnClick(func() { t.Show(Recent) })
	return t, nil
}

// Active reports the timeline the container currently requests.
func (t *Toggle) Active() ActiveTimeline {
	return t.active
}

// Show switches to the given timeline and renders the new state.
func (t *Toggle) Show(active ActiveTimeline) {
	t.active = active
	view := Render(active)

	t.container.SetAttribute(FetchAttribute, view.FetchPath)
	setHidden(t.popular, view.PopularHidden)
	setHidden(t.recent, view.RecentHidden)
}

func setHidden(el Element, hidden bool) {
	if hidden {
		el.SetStyle("display", "none")
		return
	}
	el.RemoveStyle("display")
}
