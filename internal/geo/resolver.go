package geo

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMinQueryLength is the shortest query forwarded to the provider.
	DefaultMinQueryLength = 3
	// DefaultDebounce is how long a query must stay unchanged before it is
	// forwarded to the provider.
	DefaultDebounce = 300 * time.Millisecond

	metersPerMile = 1609.344
)

// ErrSuperseded is returned when a newer query or endpoint pair arrived
// while this one was pending; its result must be discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Suggester serializes address autocomplete lookups for one input stream.
// Queries below the minimum length never reach the provider, rapid edits are
// debounced, and a late response for an older query never overwrites the
// results of a newer one.
type Suggester struct {
	client   Client
	minLen   int
	debounce time.Duration

	mu      sync.Mutex
	seq     uint64
	results []Location
}

// NewSuggester creates a Suggester. Non-positive minLen or debounce fall
// back to the defaults.
func NewSuggester(client Client, minLen int, debounce time.Duration) *Suggester {
	if minLen <= 0 {
		minLen = DefaultMinQueryLength
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Suggester{client: client, minLen: minLen, debounce: debounce}
}

// Suggest processes one query edit. Short queries clear the current results
// and return nil without touching the provider. A call superseded by a newer
// edit returns ErrSuperseded.
func (s *Suggester) Suggest(ctx context.Context, text string) ([]Location, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	if len(text) < s.minLen {
		s.results = nil
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.debounce):
	}
	if !s.isCurrent(seq) {
		return nil, ErrSuperseded
	}

	results, err := s.client.Autocomplete(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return nil, ErrSuperseded
	}
	s.results = results
	return results, nil
}

// Select commits a chosen candidate, invalidating any in-flight lookup so a
// late response cannot replace the selection.
func (s *Suggester) Select(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.results = []Location{loc}
}

// Results returns the current candidate list.
func (s *Suggester) Results() []Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Location, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Suggester) isCurrent(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.seq
}

// DistanceStatus is the resolution state of a trip distance.
type DistanceStatus string

const (
	DistanceIdle        DistanceStatus = "idle"
	DistanceCalculating DistanceStatus = "calculating"
	DistanceUnavailable DistanceStatus = "unavailable"
	DistanceResolved    DistanceStatus = "resolved"
)

// Distance is the resolver's view of the current endpoint pair.
type Distance struct {
	Status DistanceStatus `json:"status"`
	Miles  float64        `json:"miles,omitempty"`
}

// DistanceResolver turns an endpoint pair into a driving distance in miles.
// Each pair change bumps a generation counter; a route response for an older
// pair is discarded so the published distance always matches the latest pair.
type DistanceResolver struct {
	client Client

	mu      sync.Mutex
	gen     uint64
	current Distance
}

// NewDistanceResolver creates a resolver in the idle state.
func NewDistanceResolver(client Client) *DistanceResolver {
	return &DistanceResolver{client: client, current: Distance{Status: DistanceIdle}}
}

// Resolve computes the distance for a new endpoint pair. It returns
// ErrSuperseded when a newer pair arrived while the route was in flight.
// Provider failures leave the resolver in the unavailable state.
func (r *DistanceResolver) Resolve(ctx context.Context, pickup, destination Location) (Distance, error) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.current = Distance{Status: DistanceCalculating}
	r.mu.Unlock()

	meters, err := r.client.RouteDistance(ctx, pickup, destination)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return r.current, ErrSuperseded
	}
	if err != nil {
		r.current = Distance{Status: DistanceUnavailable}
		return r.current, err
	}
	r.current = Distance{Status: DistanceResolved, Miles: MetersToMiles(meters)}
	return r.current, nil
}

// Invalidate clears the resolver when either endpoint is removed.
func (r *DistanceResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.current = Distance{Status: DistanceIdle}
}

// Current returns the resolver's present view.
func (r *DistanceResolver) Current() Distance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// MetersToMiles converts a provider distance to miles, rounded to 2 decimal
// places.
func MetersToMiles(meters float64) float64 {
	return math.Round(meters/metersPerMile*100) / 100
}
