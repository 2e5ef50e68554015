package event

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/veto.report/internal/monitoring"
)

var logf = monitoring.Component("event")

// Source produces raw events for named channels. Implementations do not need
// to sort or validate; the Store does both.
type Source interface {
	Channels(ctx context.Context) ([]string, error)
	Read(ctx context.Context, channel string) ([]Event, error)
}

// StoreOption configures load-time conditioning.
type StoreOption func(*storeOptions)

type storeOptions struct {
	exclude       map[string]bool
	thresholds    map[string]float64
	bandLow       float64
	bandHigh      float64
	clusterWindow float64
	span          *[2]float64
}

// WithExclude removes channels from the auxiliary set (unsafe channels, or
// channels known to be witnesses of the primary itself).
func WithExclude(channels ...string) StoreOption {
	return func(o *storeOptions) {
		for _, c := range channels {
			o.exclude[c] = true
		}
	}
}

// WithChannelThreshold drops events below threshold on one channel at load
// time. Used for the primary channel's significance cut.
func WithChannelThreshold(channel string, threshold float64) StoreOption {
	return func(o *storeOptions) { o.thresholds[channel] = threshold }
}

// WithBand restricts every channel to the [low, high] frequency band.
func WithBand(low, high float64) StoreOption {
	return func(o *storeOptions) { o.bandLow, o.bandHigh = low, high }
}

// WithClusterWindow clusters every channel's events with the given window.
func WithClusterWindow(window float64) StoreOption {
	return func(o *storeOptions) { o.clusterWindow = window }
}

// WithSpan restricts every channel to events inside [start, end).
func WithSpan(start, end float64) StoreOption {
	return func(o *storeOptions) { o.span = &[2]float64{start, end} }
}

// Store loads and caches channel populations. Populations are immutable once
// returned.
type Store struct {
	src  Source
	opts storeOptions

	mu    sync.Mutex
	cache map[string]*Population
}

// NewStore creates a Store reading from src.
func NewStore(src Source, opts ...StoreOption) *Store {
	o := storeOptions{
		exclude:    make(map[string]bool),
		thresholds: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{src: src, opts: o, cache: make(map[string]*Population)}
}

// Load returns the conditioned population for channel. Malformed events
// yield a *DataIntegrityError.
func (s *Store) Load(ctx context.Context, channel string) (*Population, error) {
	s.mu.Lock()
	if p, ok := s.cache[channel]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	raw, err := s.src.Read(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("read channel %q: %w", channel, err)
	}
	p, err := NewPopulation(channel, raw)
	if err != nil {
		return nil, err
	}
	p, err = s.condition(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[channel]; ok {
		return cached, nil
	}
	s.cache[channel] = p
	return p, nil
}

func (s *Store) condition(p *Population) (*Population, error) {
	before := p.Len()
	if s.opts.span != nil {
		p = InSpan(p, s.opts.span[0], s.opts.span[1])
	}
	if s.opts.bandLow > 0 || s.opts.bandHigh > 0 {
		p = InBand(p, s.opts.bandLow, s.opts.bandHigh)
	}
	if th, ok := s.opts.thresholds[p.channel]; ok {
		p = p.AboveThreshold(th)
	}
	p = Cluster(p, s.opts.clusterWindow)
	if p.Len() != before {
		logf("channel %s: %d of %d events kept after conditioning", p.channel, p.Len(), before)
	}
	// Renumber so IDs index the population handed to the engine.
	return NewPopulation(p.channel, p.events)
}

// LoadAuxiliarySet loads every channel the source knows about except the
// primary and any excluded channel. A channel with malformed triggers is
// returned as an Invalid population instead of failing the whole set.
func (s *Store) LoadAuxiliarySet(ctx context.Context, primary string) (map[string]*Population, error) {
	channels, err := s.src.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	sort.Strings(channels)

	out := make(map[string]*Population, len(channels))
	for _, ch := range channels {
		if ch == primary || s.opts.exclude[ch] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.Load(ctx, ch)
		var integrity *DataIntegrityError
		switch {
		case errors.As(err, &integrity):
			logf("channel %s: %v", ch, err)
			out[ch] = Invalid(ch, err)
			continue
		case err != nil:
			return nil, err
		}
		out[ch] = p
	}
	return out, nil
}

// MemorySource serves events from a map. It is used by tests and by callers
// that already hold parsed trigger lists.
type MemorySource map[string][]Event

// Channels returns the channel names in sorted order.
func (m MemorySource) Channels(context.Context) ([]string, error) {
	out := make([]string, 0, len(m))
	for ch := range m {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out, nil
}

// Read returns the events stored for channel.
func (m MemorySource) Read(_ context.Context, channel string) ([]Event, error) {
	evs, ok := m[channel]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
	return evs, nil
}
