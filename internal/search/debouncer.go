package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
)

// Defaults for the address search box
const (
	DefaultQuiet     = 400 * time.Millisecond
	DefaultMinLength = 4
	DefaultLimit     = 5
)

// Suggester returns ranked place suggestions for free text
type Suggester interface {
	Suggest(ctx context.Context, text string, limit int) ([]models.Suggestion, error)
}

// Config tunes the debouncer
type Config struct {
	Quiet     time.Duration
	MinLength int
	Limit     int
}

// Outcome is the classification of one input. Literal is set when the text
// is a coordinate pair; Pending when a geocoding request has been scheduled.
type Outcome struct {
	Seq         uint64
	Query       string
	Literal     *models.Coordinates
	Suggestions []models.Suggestion
	Pending     bool
}

// Debouncer classifies search text and queries the suggester after a quiet
// period. Each input gets a sequence number; only the newest may deliver results,
// and a superseded request's context is canceled.
type Debouncer struct {
	suggester Suggester
	cfg       Config
	log       *logrus.Entry
	deliver   func(Outcome)

	debounced func(func())

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	closed bool
}

// NewDebouncer creates a debouncer that hands asynchronous results to deliver
func NewDebouncer(suggester Suggester, cfg Config, logger *logrus.Logger, deliver func(Outcome)) *Debouncer {
	if cfg.Quiet <= 0 {
		cfg.Quiet = DefaultQuiet
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Debouncer{
		suggester: suggester,
		cfg:       cfg,
		log:       logger.WithField("component", "search"),
		deliver:   deliver,
		debounced: debounce.New(cfg.Quiet),
	}
}

// Input handles one keystroke's worth of text. Literal coordinates and short
// text are answered synchronously; anything else is looked up after the quiet period.
func (d *Debouncer) Input(text string) Outcome {
	query := strings.TrimSpace(text)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Outcome{Query: query}
	}
	d.seq++
	seq := d.seq
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	if coord, ok := ParseCoordinate(query); ok {
		d.mu.Unlock()
		d.debounced(func() {})
		return Outcome{Seq: seq, Query: query, Literal: &coord}
	}

	if len([]rune(query)) < d.cfg.MinLength || d.suggester == nil {
		d.mu.Unlock()
		d.debounced(func() {})
		return Outcome{Seq: seq, Query: query}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	d.debounced(func() {
		d.fetch(ctx, seq, query)
	})
	return Outcome{Seq: seq, Query: query, Pending: true}
}

func (d *Debouncer) fetch(ctx context.Context, seq uint64, query string) {
	if ctx.Err() != nil {
		return
	}

	entry := d.log.WithFields(logrus.Fields{"seq": seq, "query": query})
	entry.Debug("[SEARCH] Querying suggestions")

	results, err := d.suggester.Suggest(ctx, query, d.cfg.Limit)
	if err != nil {
		if ctx.Err() == nil {
			entry.WithError(err).Warn("[SEARCH] Suggestion lookup failed")
		}
		results = nil
	}
	if len(results) > d.cfg.Limit {
		results = results[:d.cfg.Limit]
	}

	d.mu.Lock()
	current := seq == d.seq && !d.closed
	d.mu.Unlock()
	if !current {
		entry.Debug("[SEARCH] Dropping superseded suggestions")
		return
	}

	if d.deliver != nil {
		d.deliver(Outcome{Seq: seq, Query: query, Suggestions: results})
	}
}

// Close cancels anything pending; later input is ignored
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	d.debounced(func() {})
}
