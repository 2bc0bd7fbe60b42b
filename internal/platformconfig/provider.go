package platformconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/commonstack/trusthub/internal/store"
)

// Provider is the read surface components depend on. It is an interface so
// tests can substitute synthetic configs without a store.
type Provider interface {
	Formula(ctx context.Context) (TrustFormula, error)
	ActivityWeights(ctx context.Context) (ActivityWeights, error)
	Levels(ctx context.Context) ([]LevelBand, error)
	Decay(ctx context.Context) (DecayPolicy, error)
	AccountabilityRates(ctx context.Context) (AccountabilityRates, error)
	Features(ctx context.Context) (FeatureTable, error)
	UsageLimits(ctx context.Context) (UsageLimits, error)
	TierPricing(ctx context.Context) (TierPricing, error)
	VouchEligibility(ctx context.Context) (VouchEligibility, error)
}

// ConfigStore is the slice of the durable store the service needs.
type ConfigStore interface {
	GetConfig(ctx context.Context, category, key string) (*store.ConfigRecord, error)
	ListConfig(ctx context.Context, category string) ([]store.ConfigRecord, error)
	UpdateConfig(ctx context.Context, category, key string, newValue json.RawMessage, changedBy, reason string) (*store.ConfigRecord, error)
}

// ValidationError carries the full error list back to the admin caller when
// a configuration write is rejected.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	return "config validation failed: " + strings.Join(e.Result.Errors, "; ")
}

const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	value   json.RawMessage
	expires time.Time
}

// Service serves (category,key)-addressed configuration documents from a
// TTL cache over the store, degrading to hardcoded defaults on read
// failures. Writes are validated, versioned, and appended to history.
type Service struct {
	store  ConfigStore
	logger *slog.Logger
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewService(st ConfigStore, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger,
		ttl:    cacheTTL,
		cache:  make(map[string]cacheEntry),
	}
}

// Get serves from cache, then the store, then the hardcoded default. Store
// errors are logged and degrade to the default; only when neither the store
// nor a default can produce the document does Get fail.
func (s *Service) Get(ctx context.Context, category, key string) (json.RawMessage, error) {
	cacheKey := join(category, key)

	s.mu.RLock()
	entry, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.value, nil
	}

	rec, err := s.store.GetConfig(ctx, category, key)
	if err == nil {
		s.put(cacheKey, rec.Value)
		return rec.Value, nil
	}
	if !errors.Is(err, store.ErrConfigNotFound) {
		s.logger.Warn("config read failed, falling back to default",
			"category", category, "key", key, "error", err)
	}

	if def, ok := defaultFor(category, key); ok {
		return def, nil
	}
	return nil, fmt.Errorf("%s/%s: %w", category, key, store.ErrConfigNotFound)
}

// GetAll bulk-loads a category and warms the cache. On store failure it
// degrades to the category's defaults.
func (s *Service) GetAll(ctx context.Context, category string) (map[string]json.RawMessage, error) {
	records, err := s.store.ListConfig(ctx, category)
	if err != nil {
		s.logger.Warn("config bulk read failed, falling back to defaults",
			"category", category, "error", err)
		docs := defaultsForCategory(category)
		if len(docs) == 0 {
			return nil, fmt.Errorf("%s: %w", category, store.ErrConfigNotFound)
		}
		return docs, nil
	}

	docs := defaultsForCategory(category)
	for _, rec := range records {
		docs[rec.Key] = rec.Value
		s.put(join(category, rec.Key), rec.Value)
	}
	return docs, nil
}

// Update validates the new document, persists it against the existing row,
// and invalidates the cache entry. Validation errors block persistence and
// are returned as a *ValidationError; warnings ride along in the Result.
func (s *Service) Update(ctx context.Context, category, key string, value json.RawMessage, changedBy, reason string) (*store.ConfigRecord, Result, error) {
	result := Validate(category, key, value)
	if !result.Valid {
		return nil, result, &ValidationError{Result: result}
	}

	rec, err := s.store.UpdateConfig(ctx, category, key, value, changedBy, reason)
	if err != nil {
		return nil, result, err
	}

	s.mu.Lock()
	delete(s.cache, join(category, key))
	s.mu.Unlock()

	s.logger.Info("config updated",
		"category", category, "key", key,
		"version", rec.Version, "changed_by", changedBy, "warnings", len(result.Warnings))
	return rec, result, nil
}

func (s *Service) put(cacheKey string, value json.RawMessage) {
	s.mu.Lock()
	s.cache[cacheKey] = cacheEntry{value: value, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

func getTyped[T any](ctx context.Context, s *Service, category, key string) (T, error) {
	var doc T
	raw, err := s.Get(ctx, category, key)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode %s/%s: %w", category, key, err)
	}
	return doc, nil
}

func (s *Service) Formula(ctx context.Context) (TrustFormula, error) {
	return getTyped[TrustFormula](ctx, s, CategoryTrust, KeyFormula)
}

func (s *Service) ActivityWeights(ctx context.Context) (ActivityWeights, error) {
	return getTyped[ActivityWeights](ctx, s, CategoryTrust, KeyActivityWeights)
}

func (s *Service) Levels(ctx context.Context) ([]LevelBand, error) {
	return getTyped[[]LevelBand](ctx, s, CategoryTrust, KeyLevels)
}

func (s *Service) Decay(ctx context.Context) (DecayPolicy, error) {
	return getTyped[DecayPolicy](ctx, s, CategoryTrust, KeyDecay)
}

func (s *Service) AccountabilityRates(ctx context.Context) (AccountabilityRates, error) {
	return getTyped[AccountabilityRates](ctx, s, CategoryTrust, KeyAccountabilityRates)
}

func (s *Service) Features(ctx context.Context) (FeatureTable, error) {
	return getTyped[FeatureTable](ctx, s, CategoryAccess, KeyFeatures)
}

func (s *Service) UsageLimits(ctx context.Context) (UsageLimits, error) {
	return getTyped[UsageLimits](ctx, s, CategoryAccess, KeyUsageLimits)
}

func (s *Service) TierPricing(ctx context.Context) (TierPricing, error) {
	return getTyped[TierPricing](ctx, s, CategorySubscription, KeyTierPricing)
}

func (s *Service) VouchEligibility(ctx context.Context) (VouchEligibility, error) {
	return getTyped[VouchEligibility](ctx, s, CategoryVouch, KeyEligibility)
}
