package trust

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
)

// fakeProvider serves fixed configuration documents.
type fakeProvider struct {
	formula platformconfig.TrustFormula
	weights platformconfig.ActivityWeights
	bands   []platformconfig.LevelBand
}

func (p *fakeProvider) Formula(context.Context) (platformconfig.TrustFormula, error) {
	return p.formula, nil
}
func (p *fakeProvider) ActivityWeights(context.Context) (platformconfig.ActivityWeights, error) {
	return p.weights, nil
}
func (p *fakeProvider) Levels(context.Context) ([]platformconfig.LevelBand, error) {
	return p.bands, nil
}
func (p *fakeProvider) Decay(context.Context) (platformconfig.DecayPolicy, error) {
	return platformconfig.DecayPolicy{}, nil
}
func (p *fakeProvider) AccountabilityRates(context.Context) (platformconfig.AccountabilityRates, error) {
	return platformconfig.AccountabilityRates{}, nil
}
func (p *fakeProvider) Features(context.Context) (platformconfig.FeatureTable, error) {
	return nil, nil
}
func (p *fakeProvider) UsageLimits(context.Context) (platformconfig.UsageLimits, error) {
	return nil, nil
}
func (p *fakeProvider) TierPricing(context.Context) (platformconfig.TierPricing, error) {
	return nil, nil
}
func (p *fakeProvider) VouchEligibility(context.Context) (platformconfig.VouchEligibility, error) {
	return platformconfig.VouchEligibility{}, nil
}

func defaultTestProvider() *fakeProvider {
	return &fakeProvider{
		formula: testFormula,
		weights: platformconfig.ActivityWeights{
			EventsAttended:    2,
			EventsHosted:      5,
			CommunitiesJoined: 3,
			ServicesProvided:  4,
			MaxScore:          100,
		},
	}
}

// fakeCalcStore is an in-memory stand-in for the calculator's store slice.
type fakeCalcStore struct {
	users     map[uuid.UUID]*store.User
	extraIDs  []uuid.UUID // listed but with no user row
	vouches   map[uuid.UUID]map[store.VouchType]int
	moments   map[uuid.UUID]store.MomentStats
	momentErr error

	written []writtenScore
}

type writtenScore struct {
	userID uuid.UUID
	score  float64
	level  string
	entry  *store.HistoryEntry
}

func (f *fakeCalcStore) GetUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeCalcStore) ListUserIDs(context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range f.users {
		ids = append(ids, id)
	}
	return append(ids, f.extraIDs...), nil
}

func (f *fakeCalcStore) CountActiveVouchesByType(_ context.Context, voucheeID uuid.UUID) (map[store.VouchType]int, error) {
	return f.vouches[voucheeID], nil
}

func (f *fakeCalcStore) PublicMomentStats(_ context.Context, receiverID uuid.UUID) (store.MomentStats, error) {
	if f.momentErr != nil {
		return store.MomentStats{}, f.momentErr
	}
	return f.moments[receiverID], nil
}

func (f *fakeCalcStore) SetTrustScore(_ context.Context, userID uuid.UUID, score float64, level string, entry *store.HistoryEntry) error {
	f.written = append(f.written, writtenScore{userID, score, level, entry})
	if u, ok := f.users[userID]; ok {
		u.TrustScore = score
		u.TrustLevel = level
	}
	return nil
}

func TestCalculate_FullPipeline(t *testing.T) {
	userID := uuid.New()
	st := &fakeCalcStore{
		users: map[uuid.UUID]*store.User{
			userID: {ID: userID, TrustScore: 10, EventsAttended: 10, EventsHosted: 5, CommunitiesJoined: 2, ServicesProvided: 3},
		},
		vouches: map[uuid.UUID]map[store.VouchType]int{
			userID: {store.VouchPrimary: 1, store.VouchSecondary: 3, store.VouchCommunity: 2},
		},
		moments: map[uuid.UUID]store.MomentStats{
			userID: {Count: 10, AvgRating: 4},
		},
	}
	calc := NewCalculator(st, defaultTestProvider(), slog.Default())

	res, err := calc.Calculate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	// vouch 100, activity 63, moments 83 under the test formula
	if math.Abs(res.Score-82.8) > 0.001 {
		t.Errorf("expected composite 82.8, got %f", res.Score)
	}
	if res.Level != "pillar" {
		t.Errorf("expected level pillar, got %q", res.Level)
	}
	if math.Abs(res.VouchScore-40) > 0.001 {
		t.Errorf("expected weighted vouch score 40, got %f", res.VouchScore)
	}
	if math.Abs(res.ActivityScore-22.05) > 0.001 {
		t.Errorf("expected weighted activity score 22.05, got %f", res.ActivityScore)
	}
	if math.Abs(res.MomentScore-20.75) > 0.001 {
		t.Errorf("expected weighted moment score 20.75, got %f", res.MomentScore)
	}

	if len(st.written) != 1 {
		t.Fatalf("expected one persisted score, got %d", len(st.written))
	}
	w := st.written[0]
	if w.entry == nil {
		t.Fatal("expected a history entry for a large score change")
	}
	if w.entry.Category != store.HistoryRecalculation {
		t.Errorf("expected recalculation category, got %q", w.entry.Category)
	}
	if w.entry.PreviousScore != 10 {
		t.Errorf("expected previous score 10, got %f", w.entry.PreviousScore)
	}
}

func TestCalculate_NoHistoryForTinyDelta(t *testing.T) {
	userID := uuid.New()
	st := &fakeCalcStore{
		users: map[uuid.UUID]*store.User{
			userID: {ID: userID, TrustScore: 0},
		},
	}
	calc := NewCalculator(st, defaultTestProvider(), slog.Default())

	if _, err := calc.Calculate(context.Background(), userID); err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(st.written) != 1 {
		t.Fatalf("expected one persisted score, got %d", len(st.written))
	}
	if st.written[0].entry != nil {
		t.Error("expected no history entry when the score does not move")
	}
}

func TestCalculate_SubScoreFailureTreatedAsZero(t *testing.T) {
	userID := uuid.New()
	st := &fakeCalcStore{
		users: map[uuid.UUID]*store.User{
			userID: {ID: userID, TrustScore: 0},
		},
		vouches: map[uuid.UUID]map[store.VouchType]int{
			userID: {store.VouchPrimary: 1},
		},
		momentErr: errors.New("aggregate unavailable"),
	}
	calc := NewCalculator(st, defaultTestProvider(), slog.Default())

	res, err := calc.Calculate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	// vouch 50, activity 0, moments treated as 0 -> 0.4*50 = 20
	if math.Abs(res.Score-20) > 0.001 {
		t.Errorf("expected composite 20 with failed moment aggregate, got %f", res.Score)
	}
}

func TestCalculate_UnknownUser(t *testing.T) {
	st := &fakeCalcStore{users: map[uuid.UUID]*store.User{}}
	calc := NewCalculator(st, defaultTestProvider(), slog.Default())

	if _, err := calc.Calculate(context.Background(), uuid.New()); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRecalculateAll_FailureIsolation(t *testing.T) {
	good := uuid.New()
	st := &fakeCalcStore{
		users: map[uuid.UUID]*store.User{
			good: {ID: good},
		},
		extraIDs: []uuid.UUID{uuid.New()}, // listed user with no row, fails lookup
	}
	calc := NewCalculator(st, defaultTestProvider(), slog.Default())

	res, err := calc.RecalculateAll(context.Background())
	if err != nil {
		t.Fatalf("RecalculateAll failed: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("expected 1 succeeded / 1 failed, got %d / %d", res.Succeeded, res.Failed)
	}
}
