package application

import (
	"context"
	"sync"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	"github.com/Swiftline-Couriers/service-quotes/internal/geo"
	"go.uber.org/zap"
)

// streamTTL is how long an idle autocomplete/distance stream is kept before
// its state is dropped.
const streamTTL = 10 * time.Minute

// QuoteService orchestrates the quote page: tier catalog, address
// autocomplete, route distance and pricing. Autocomplete and distance state
// is tracked per client stream so rapid edits debounce and late provider
// responses are discarded.
type QuoteService struct {
	client     geo.Client
	calculator *quote.Calculator
	debounce   time.Duration
	logger     *zap.Logger

	mu         sync.Mutex
	suggesters map[string]*suggesterEntry
	resolvers  map[string]*resolverEntry
}

type suggesterEntry struct {
	suggester *geo.Suggester
	lastSeen  time.Time
}

type resolverEntry struct {
	resolver *geo.DistanceResolver
	lastSeen time.Time
}

// NewQuoteService creates a QuoteService.
func NewQuoteService(client geo.Client, calculator *quote.Calculator, debounce time.Duration, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		client:     client,
		calculator: calculator,
		debounce:   debounce,
		logger:     logger,
		suggesters: make(map[string]*suggesterEntry),
		resolvers:  make(map[string]*resolverEntry),
	}
}

// Tiers returns the vehicle tier catalog.
func (s *QuoteService) Tiers() []quote.Tier {
	return quote.Catalog()
}

// Suggest runs an autocomplete lookup for one input stream. Late results for
// superseded queries return nil with no error so callers simply keep their
// current list.
func (s *QuoteService) Suggest(ctx context.Context, stream, text string) ([]geo.Location, error) {
	results, err := s.suggesterFor(stream).Suggest(ctx, text)
	if err != nil {
		if err == geo.ErrSuperseded {
			return nil, nil
		}
		return nil, err
	}
	return results, nil
}

// SelectLocation commits a chosen candidate for one input stream.
func (s *QuoteService) SelectLocation(stream string, loc geo.Location) {
	s.suggesterFor(stream).Select(loc)
}

// ResolveDistance computes the driving distance in miles for an endpoint
// pair. A result superseded by a newer pair on the same stream returns the
// newer pair's view.
func (s *QuoteService) ResolveDistance(ctx context.Context, stream string, pickup, destination geo.Location) (geo.Distance, error) {
	resolver := s.resolverFor(stream)
	d, err := resolver.Resolve(ctx, pickup, destination)
	if err != nil {
		if err == geo.ErrSuperseded {
			return resolver.Current(), nil
		}
		s.logger.Warn("route distance unavailable",
			zap.String("pickup", pickup.Formatted),
			zap.String("destination", destination.Formatted),
			zap.Error(err),
		)
		return d, err
	}
	return d, nil
}

// InvalidateDistance clears the distance for a stream when an endpoint is
// removed.
func (s *QuoteService) InvalidateDistance(stream string) {
	s.resolverFor(stream).Invalidate()
}

// QuoteAll prices every tier for the given trip.
func (s *QuoteService) QuoteAll(distanceMiles float64, pickup, destination string) ([]quote.Breakdown, error) {
	return s.calculator.QuoteAll(distanceMiles, pickup, destination)
}

// QuoteTier prices a single tier by name.
func (s *QuoteService) QuoteTier(tierName string, distanceMiles float64, pickup, destination string) (quote.Breakdown, error) {
	tier, ok := quote.TierByName(tierName)
	if !ok {
		return quote.Breakdown{}, apperr.NewNotFoundError("vehicle tier", tierName)
	}
	return s.calculator.Quote(distanceMiles, tier, pickup, destination)
}

func (s *QuoteService) suggesterFor(stream string) *geo.Suggester {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictStaleLocked()

	entry, ok := s.suggesters[stream]
	if !ok {
		entry = &suggesterEntry{suggester: geo.NewSuggester(s.client, geo.DefaultMinQueryLength, s.debounce)}
		s.suggesters[stream] = entry
	}
	entry.lastSeen = time.Now()
	return entry.suggester
}

func (s *QuoteService) resolverFor(stream string) *geo.DistanceResolver {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictStaleLocked()

	entry, ok := s.resolvers[stream]
	if !ok {
		entry = &resolverEntry{resolver: geo.NewDistanceResolver(s.client)}
		s.resolvers[stream] = entry
	}
	entry.lastSeen = time.Now()
	return entry.resolver
}

func (s *QuoteService) evictStaleLocked() {
	cutoff := time.Now().Add(-streamTTL)
	for key, entry := range s.suggesters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.suggesters, key)
		}
	}
	for key, entry := range s.resolvers {
		if entry.lastSeen.Before(cutoff) {
			delete(s.resolvers, key)
		}
	}
}
