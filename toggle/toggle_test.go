// ABOUTME: Tests for the timeline toggle state, rendering, and click wiring.
// ABOUTME: Uses an in-memory element double standing in for the browser DOM.
package toggle

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	attrs   map[string]string
	style   map[string]string
	onClick func()
}

func newFakeElement() *fakeElement {
	return &fakeElement{attrs: map[string]string{}, style: map[string]string{}}
}

func (e *fakeElement) SetAttribute(name, value string) { e.attrs[name] = value }
func (e *fakeElement) SetStyle(property, value string) { e.style[property] = value }
func (e *fakeElement) RemoveStyle(property string)     { delete(e.style, property) }
func (e *fakeElement) OnClick(handler func())          { e.onClick = handler }

func (e *fakeElement) click() {
	if e.onClick != nil {
		e.onClick()
	}
}

func (e *fakeElement) visible() bool {
	return e.style["display"] != "none"
}

// page builds the initial DOM the server renders: popular visible, recent hidden.
func page(t *testing.T) (container, popular, recent *fakeElement) {
	t.Helper()
	container, popular, recent = newFakeElement(), newFakeElement(), newFakeElement()
	recent.SetStyle("display", "none")
	_, err := Initialize(container, popular, recent)
	require.NoError(t, err)
	return container, popular, recent
}

func TestRender(t *testing.T) {
	assert.Equal(t, View{FetchPath: "/timeline", PopularHidden: false, RecentHidden: true}, Render(Recent))
	assert.Equal(t, View{FetchPath: "/timeline/popular", PopularHidden: true, RecentHidden: false}, Render(Popular))
}

func TestRenderExactlyOneHidden(t *testing.T) {
	for _, active := range []ActiveTimeline{Recent, Popular} {
		v := Render(active)
		assert.NotEqual(t, v.PopularHidden, v.RecentHidden, "state %s", active)
	}
}

func TestParseActiveTimeline(t *testing.T) {
	got, ok := ParseActiveTimeline("/timeline/popular")
	assert.True(t, ok)
	assert.Equal(t, Popular, got)

	got, ok = ParseActiveTimeline("/timeline")
	assert.True(t, ok)
	assert.Equal(t, Recent, got)

	_, ok = ParseActiveTimeline("/timeline/other")
	assert.False(t, ok)
}

func TestActiveTimelineString(t *testing.T) {
	assert.Equal(t, "recent", Recent.String())
	assert.Equal(t, "popular", Popular.String())
	assert.Equal(t, "ActiveTimeline(7)", ActiveTimeline(7).String())
}

func TestClickPopular(t *testing.T) {
	container, popular, recent := page(t)

	popular.click()

	assert.Equal(t, "/timeline/popular", container.attrs[FetchAttribute])
	assert.False(t, popular.visible())
	assert.True(t, recent.visible())
	_, hasOverride := recent.style["display"]
	assert.False(t, hasOverride, "recent button should be shown by clearing the override")
}

func TestClickRecent(t *testing.T) {
	container, popular, recent := page(t)

	popular.click()
	recent.click()

	assert.Equal(t, "/timeline", container.attrs[FetchAttribute])
	assert.False(t, recent.visible())
	assert.True(t, popular.visible())
}

func TestEndToEndScenario(t *testing.T) {
	container, popular, recent := page(t)

	_, set := container.attrs[FetchAttribute]
	require.False(t, set)
	require.True(t, popular.visible())
	require.False(t, recent.visible())

	popular.click()
	assert.Equal(t, "/timeline/popular", container.attrs[FetchAttribute])
	assert.False(t, popular.visible())
	assert.True(t, recent.visible())

	recent.click()
	assert.Equal(t, "/timeline", container.attrs[FetchAttribute])
	assert.False(t, recent.visible())
	assert.True(t, popular.visible())
}

func TestClickTwiceIsIdempotent(t *testing.T) {
	container, popular, recent := page(t)

	popular.click()
	first := []string{container.attrs[FetchAttribute], popular.style["display"], recent.style["display"]}
	popular.click()
	second := []string{container.attrs[FetchAttribute], popular.style["display"], recent.style["display"]}

	assert.Equal(t, first, second)
}

func TestRandomClickSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for run := 0; run < 50; run++ {
		container, popular, recent := page(t)
		for i := 0; i < 20; i++ {
			if rng.IntN(2) == 0 {
				popular.click()
				require.False(t, popular.visible())
				require.True(t, recent.visible())
				require.Equal(t, PopularPath, container.attrs[FetchAttribute])
			} else {
				recent.click()
				require.False(t, recent.visible())
				require.True(t, popular.visible())
				require.Equal(t, RecentPath, container.attrs[FetchAttribute])
			}
		}
	}
}

func TestShowTracksActive(t *testing.T) {
	tg, err := Initialize(newFakeElement(), newFakeElement(), newFakeElement())
	require.NoError(t, err)
	assert.Equal(t, Recent, tg.Active())

	tg.Show(Popular)
	assert.Equal(t, Popular, tg.Active())
}

func TestInitializeMissingElement(t *testing.T) {
	el := newFakeElement()
	cases := []struct {
		name                       string
		container, popular, recent Element
	}{
		{"container", nil, el, el},
		{"popular", el, nil, el},
		{"recent", el, el, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tg, err := Initialize(tc.container, tc.popular, tc.recent)
			assert.Nil(t, tg)
			assert.True(t, errors.Is(err, ErrMissingElement))
		})
	}
}
