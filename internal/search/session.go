package search

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
)

// State of one waypoint's search box
type State int

const (
	StateEmpty State = iota
	StateTyping
	StateSuggestionsShown
	StateResolved
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateTyping:
		return "typing"
	case StateSuggestionsShown:
		return "suggestions"
	case StateResolved:
		return "resolved"
	case StateRemoved:
		return "removed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Resolution is the place a search settled on
type Resolution struct {
	Name  string             `json:"name"`
	Coord models.Coordinates `json:"coord"`
}

// View is a read-only copy of a session
type View struct {
	State       State               `json:"-"`
	StateName   string              `json:"state"`
	Text        string              `json:"text"`
	Literal     *models.Coordinates `json:"literal,omitempty"`
	Suggestions []models.Suggestion `json:"suggestions"`
	Resolution  *Resolution         `json:"resolution,omitempty"`
}

// Session drives the search box of a single editing waypoint. Resolved and
// Removed are terminal.
type Session struct {
	mu          sync.Mutex
	state       State
	text        string
	seq         uint64
	literal     *models.Coordinates
	suggestions []models.Suggestion
	resolution  *Resolution

	debouncer *Debouncer
	onChange  func(View)
}

// NewSession starts an empty session. onChange, if set, runs after every
// state change outside the session lock.
func NewSession(suggester Suggester, cfg Config, logger *logrus.Logger, onChange func(View)) *Session {
	s := &Session{onChange: onChange}
	s.debouncer = NewDebouncer(suggester, cfg, logger, s.receive)
	return s
}

func (s *Session) terminal() bool {
	return s.state == StateResolved || s.state == StateRemoved
}

// Type replaces the search text
func (s *Session) Type(text string) View {
	s.mu.Lock()
	if s.terminal() {
		v := s.viewLocked()
		s.mu.Unlock()
		return v
	}
	out := s.debouncer.Input(text)
	s.text = text
	s.seq = out.Seq
	s.literal = out.Literal
	s.suggestions = nil
	if out.Query == "" {
		s.state = StateEmpty
	} else {
		s.state = StateTyping
	}
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
	return v
}

func (s *Session) receive(out Outcome) {
	s.mu.Lock()
	if s.terminal() || out.Seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.suggestions = out.Suggestions
	if len(out.Suggestions) > 0 {
		s.state = StateSuggestionsShown
	} else {
		s.state = StateTyping
	}
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
}

// Top returns what Accept would resolve to without changing state: the literal
// coordinate, else the top suggestion
func (s *Session) Top() (Resolution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topLocked()
}

func (s *Session) topLocked() (Resolution, bool) {
	switch {
	case s.terminal():
		return Resolution{}, false
	case s.literal != nil:
		return Resolution{Name: s.literal.String(), Coord: *s.literal}, true
	case len(s.suggestions) > 0:
		return Resolution{Name: s.suggestions[0].Label, Coord: s.suggestions[0].Coords}, true
	}
	return Resolution{}, false
}

// At returns the i-th suggestion without changing state
func (s *Session) At(i int) (Resolution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atLocked(i)
}

func (s *Session) atLocked(i int) (Resolution, bool) {
	if s.terminal() || i < 0 || i >= len(s.suggestions) {
		return Resolution{}, false
	}
	return Resolution{Name: s.suggestions[i].Label, Coord: s.suggestions[i].Coords}, true
}

// Resolve settles the session on r. It reports false when the session has
// already ended.
func (s *Session) Resolve(r Resolution) bool {
	s.mu.Lock()
	if s.terminal() {
		s.mu.Unlock()
		return false
	}
	v := s.resolveLocked(r)
	s.mu.Unlock()

	s.notify(v)
	return true
}

// Accept resolves to the literal coordinate or the top suggestion. It reports
// false when there is nothing to accept yet.
func (s *Session) Accept() (Resolution, bool) {
	s.mu.Lock()
	r, ok := s.topLocked()
	if !ok {
		s.mu.Unlock()
		return Resolution{}, false
	}
	v := s.resolveLocked(r)
	s.mu.Unlock()

	s.notify(v)
	return r, true
}

// Select resolves to the i-th suggestion
func (s *Session) Select(i int) (Resolution, bool) {
	s.mu.Lock()
	r, ok := s.atLocked(i)
	if !ok {
		s.mu.Unlock()
		return Resolution{}, false
	}
	v := s.resolveLocked(r)
	s.mu.Unlock()

	s.notify(v)
	return r, true
}

// Cancel abandons the search; the owning waypoint is expected to be removed
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if s.terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = StateRemoved
	s.suggestions = nil
	s.debouncer.Close()
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
	return true
}

// Close releases pending work without changing state
func (s *Session) Close() {
	s.debouncer.Close()
}

// View returns the current state
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) resolveLocked(r Resolution) View {
	s.state = StateResolved
	s.resolution = &r
	s.suggestions = nil
	s.debouncer.Close()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		State:       s.state,
		StateName:   s.state.String(),
		Text:        s.text,
		Suggestions: append([]models.Suggestion(nil), s.suggestions...),
	}
	if s.literal != nil {
		c := *s.literal
		v.Literal = &c
	}
	if s.resolution != nil {
		r := *s.resolution
		v.Resolution = &r
	}
	return v
}

func (s *Session) notify(v View) {
	if s.onChange != nil {
		s.onChange(v)
	}
}
