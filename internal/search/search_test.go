package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iter-viae/internal/models"
)

type countingSuggester struct {
	mu      sync.Mutex
	queries []string
	ctxs    []context.Context
	block   bool
	started chan string
}

func (c *countingSuggester) Suggest(ctx context.Context, text string, limit int) ([]models.Suggestion, error) {
	c.mu.Lock()
	c.queries = append(c.queries, text)
	c.ctxs = append(c.ctxs, ctx)
	block := c.block
	started := c.started
	c.mu.Unlock()

	if started != nil {
		started <- text
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []models.Suggestion{
		{Label: text + " 1", Coords: models.Coordinates{Lat: 40.758, Lng: -73.9855}},
		{Label: text + " 2", Coords: models.Coordinates{Lat: 40.7, Lng: -74}},
	}, nil
}

func (c *countingSuggester) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

var fastConfig = Config{Quiet: 30 * time.Millisecond}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  models.Coordinates
		ok    bool
	}{
		{"lat lng", "40.7128, -74.0060", models.Coordinates{Lat: 40.7128, Lng: -74.0060}, true},
		{"no space", "40.7128,-74.0060", models.Coordinates{Lat: 40.7128, Lng: -74.0060}, true},
		{"surrounding space", "  51.5, -0.12  ", models.Coordinates{Lat: 51.5, Lng: -0.12}, true},
		{"integers", "0, 0", models.Coordinates{}, true},
		{"lng first swapped", "-122.4194, 37.7749", models.Coordinates{Lat: 37.7749, Lng: -122.4194}, true},
		{"plus sign", "+10.5, +20.25", models.Coordinates{Lat: 10.5, Lng: 20.25}, true},
		{"address", "Times Square", models.Coordinates{}, false},
		{"trailing text", "40.7, -74.0 NYC", models.Coordinates{}, false},
		{"three numbers", "1, 2, 3", models.Coordinates{}, false},
		{"both out of range", "100, 200", models.Coordinates{}, false},
		{"lng out of range", "10, 200", models.Coordinates{}, false},
		{"empty", "", models.Coordinates{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCoordinate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
				assert.InDelta(t, tt.want.Lng, got.Lng, 1e-9)
			}
		})
	}
}

func TestLiteralCoordinateResolvesWithoutRequest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sugg := &countingSuggester{}
	d := NewDebouncer(sugg, fastConfig, logger, nil)
	defer d.Close()

	out := d.Input("40.7128, -74.0060")

	require.NotNil(t, out.Literal)
	assert.Equal(t, models.Coordinates{Lat: 40.7128, Lng: -74.0060}, *out.Literal)
	assert.False(t, out.Pending)
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, sugg.snapshot())
}

func TestKeystrokeBurstIssuesOneRequest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sugg := &countingSuggester{}
	delivered := make(chan Outcome, 4)
	d := NewDebouncer(sugg, fastConfig, logger, func(o Outcome) { delivered <- o })
	defer d.Close()

	for _, text := range []string{"Time", "Times", "Times S", "Times Sq", "Times Square"} {
		d.Input(text)
	}

	select {
	case out := <-delivered:
		assert.Equal(t, "Times Square", out.Query)
		require.Len(t, out.Suggestions, 2)
		assert.Equal(t, "Times Square 1", out.Suggestions[0].Label)
	case <-time.After(time.Second):
		t.Fatal("no suggestions delivered")
	}
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []string{"Times Square"}, sugg.snapshot())
}

func TestShortInputIsNotQueried(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sugg := &countingSuggester{}
	d := NewDebouncer(sugg, fastConfig, logger, nil)
	defer d.Close()

	out := d.Input("Tim")

	assert.False(t, out.Pending)
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, sugg.snapshot())
}

func TestNewerKeystrokeCancelsInFlightRequest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sugg := &countingSuggester{block: true, started: make(chan string, 2)}
	d := NewDebouncer(sugg, fastConfig, logger, nil)
	defer d.Close()

	d.Input("Times Square")
	require.Equal(t, "Times Square", <-sugg.started)

	d.Input("Times Square NYC")

	sugg.mu.Lock()
	first := sugg.ctxs[0]
	sugg.mu.Unlock()
	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded request was not canceled")
	}
}

func TestSessionAcceptsTopSuggestion(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sugg := &countingSuggester{}
	views := make(chan View, 8)
	s := NewSession(sugg, fastConfig, logger, func(v View) { views <- v })
	defer s.Close()

	v := s.Type("Times Square")
	assert.Equal(t, StateTyping, v.State)

	_, ok := s.Accept()
	assert.False(t, ok, "nothing to accept before suggestions arrive")

	require.Eventually(t, func() bool { return s.View().State == StateSuggestionsShown }, time.Second, 5*time.Millisecond)

	r, ok := s.Accept()
	require.True(t, ok)
	assert.Equal(t, "Times Square 1", r.Name)
	assert.Equal(t, StateResolved, s.View().State)

	// terminal
	assert.Equal(t, StateResolved, s.Type("elsewhere").State)
	assert.False(t, s.Cancel())
}

func TestSessionLiteralAccept(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sugg := &countingSuggester{}
	s := NewSession(sugg, fastConfig, logger, nil)
	defer s.Close()

	s.Type("40.7128, -74.0060")
	r, ok := s.Accept()

	require.True(t, ok)
	assert.Equal(t, models.Coordinates{Lat: 40.7128, Lng: -74.0060}, r.Coord)
	assert.Equal(t, "40.71280000, -74.00600000", r.Name)
	assert.Empty(t, sugg.snapshot())
}

func TestSessionSelectAndCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSession(&countingSuggester{}, fastConfig, logger, nil)
	defer s.Close()

	s.Type("Times Square")
	require.Eventually(t, func() bool { return s.View().State == StateSuggestionsShown }, time.Second, 5*time.Millisecond)

	_, ok := s.Select(5)
	assert.False(t, ok)
	r, ok := s.Select(1)
	require.True(t, ok)
	assert.Equal(t, "Times Square 2", r.Name)

	other := NewSession(&countingSuggester{}, fastConfig, logger, nil)
	other.Type("Tim")
	assert.True(t, other.Cancel())
	assert.Equal(t, StateRemoved, other.View().State)
	assert.Equal(t, StateEmpty, NewSession(nil, fastConfig, logger, nil).Type("   ").State)
}

func TestSessionPeekLeavesSearchOpen(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSession(&countingSuggester{}, fastConfig, logger, nil)
	defer s.Close()

	_, ok := s.Top()
	assert.False(t, ok)

	s.Type("Times Square")
	require.Eventually(t, func() bool { return s.View().State == StateSuggestionsShown }, time.Second, 5*time.Millisecond)

	top, ok := s.Top()
	require.True(t, ok)
	assert.Equal(t, "Times Square 1", top.Name)
	second, ok := s.At(1)
	require.True(t, ok)
	assert.Equal(t, "Times Square 2", second.Name)
	assert.Equal(t, StateSuggestionsShown, s.View().State)

	require.True(t, s.Resolve(second))
	v := s.View()
	assert.Equal(t, StateResolved, v.State)
	require.NotNil(t, v.Resolution)
	assert.Equal(t, "Times Square 2", v.Resolution.Name)

	assert.False(t, s.Resolve(top), "a resolved session stays resolved")
	_, ok = s.At(0)
	assert.False(t, ok)
}

func TestSessionIgnoresSupersededSuggestions(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sugg := &countingSuggester{}
	s := NewSession(sugg, fastConfig, logger, nil)
	defer s.Close()

	s.Type("Times Square")
	s.Type("40.7, -74.0")

	time.Sleep(80 * time.Millisecond)
	v := s.View()
	assert.Equal(t, StateTyping, v.State)
	assert.Empty(t, v.Suggestions)
	require.NotNil(t, v.Literal)
}
