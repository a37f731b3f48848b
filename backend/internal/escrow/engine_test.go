package escrow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/models"
)

// memStore is an in-memory Store with the same semantics the Postgres
// store provides: conditional updates decide claims atomically and the
// participant set is unique per (trade, user).
type memStore struct {
	mu           sync.Mutex
	trades       map[uuid.UUID]*models.Trade
	participants map[uuid.UUID][]*models.Participant
	payments     map[uuid.UUID][]*models.Payment
}

func newMemStore() *memStore {
	return &memStore{
		trades:       make(map[uuid.UUID]*models.Trade),
		participants: make(map[uuid.UUID][]*models.Participant),
		payments:     make(map[uuid.UUID][]*models.Payment),
	}
}

func (s *memStore) InsertTrade(ctx context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade.ID = uuid.New()
	trade.CreatedAt = time.Now()
	trade.UpdatedAt = trade.CreatedAt
	copied := *trade
	s.trades[trade.ID] = &copied
	return nil
}

func (s *memStore) GetTrade(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok {
		return nil, nil
	}
	copied := *trade
	return &copied, nil
}

func (s *memStore) AssignMiddleman(ctx context.Context, tradeID, middlemanID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok || trade.Status != models.TradeStatusActive || trade.MiddlemanID != nil || s.eligibleCount(tradeID) == 0 {
		return false, nil
	}
	id := middlemanID
	trade.MiddlemanID = &id
	trade.Status = models.TradeStatusUnderReview
	trade.UpdatedAt = time.Now()
	return true, nil
}

func (s *memStore) ResolveTrade(ctx context.Context, tradeID, middlemanID uuid.UUID, outcome models.TradeStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok || trade.Status != models.TradeStatusUnderReview ||
		trade.MiddlemanID == nil || *trade.MiddlemanID != middlemanID {
		return false, nil
	}
	trade.Status = outcome
	trade.UpdatedAt = time.Now()
	return true, nil
}

func (s *memStore) CancelTrade(ctx context.Context, tradeID, creatorID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok || trade.Status != models.TradeStatusActive ||
		trade.CreatorID != creatorID || trade.MiddlemanID != nil {
		return false, nil
	}
	trade.Status = models.TradeStatusCancelled
	trade.UpdatedAt = time.Now()
	return true, nil
}

func (s *memStore) CountEligiblePayments(ctx context.Context, tradeID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibleCount(tradeID), nil
}

// eligibleCount must be called with the lock held.
func (s *memStore) eligibleCount(tradeID uuid.UUID) int {
	count := 0
	for _, p := range s.payments[tradeID] {
		if p.Status.IsEligible() {
			count++
		}
	}
	return count
}

func (s *memStore) AddParticipant(ctx context.Context, participant *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants[participant.TradeID] {
		if existing.UserID == participant.UserID {
			return ErrAlreadyJoined
		}
	}
	participant.ID = uuid.New()
	participant.JoinedAt = time.Now()
	copied := *participant
	s.participants[participant.TradeID] = append(s.participants[participant.TradeID], &copied)
	return nil
}

func (s *memStore) ListPending(ctx context.Context, status models.TradeStatus, limit, offset int) ([]models.QueuedTrade, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matching := make([]models.QueuedTrade, 0)
	for _, trade := range s.trades {
		if trade.Status != status || s.eligibleCount(trade.ID) == 0 {
			continue
		}
		matching = append(matching, models.QueuedTrade{
			Trade:        *trade,
			PaymentCount: len(s.payments[trade.ID]),
		})
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].PaymentCount != matching[j].PaymentCount {
			return matching[i].PaymentCount > matching[j].PaymentCount
		}
		return matching[i].Trade.CreatedAt.Before(matching[j].Trade.CreatedAt)
	})

	total := len(matching)
	if offset >= total {
		return []models.QueuedTrade{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matching[offset:end], total, nil
}

// addPayment seeds a payment directly, the way gateway callbacks do in
// production.
func (s *memStore) addPayment(tradeID uuid.UUID, status models.PaymentStatus, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[tradeID] = append(s.payments[tradeID], &models.Payment{
		ID:        uuid.New(),
		TradeID:   tradeID,
		PayerID:   uuid.New(),
		Status:    status,
		CreatedAt: createdAt,
	})
}

// setCreatedAt rewrites a trade's creation time for ordering tests.
func (s *memStore) setCreatedAt(tradeID uuid.UUID, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[tradeID].CreatedAt = createdAt
}

// recordingNotifier collects emitted event kinds.
type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *recordingNotifier) Notify(kind string, tradeID uuid.UUID, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *recordingNotifier) kindsSeen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.kinds...)
}

func newTestEngine() (*Engine, *memStore, *recordingNotifier) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	return NewEngine(store, notifier), store, notifier
}

func mustCreateTrade(t *testing.T, engine *Engine, creatorID uuid.UUID) *models.Trade {
	t.Helper()
	trade, err := engine.CreateTrade(context.Background(), creatorID, CreateTradeInput{
		ItemName: "Vintage camera",
		Price:    25,
	})
	if err != nil {
		t.Fatalf("CreateTrade failed: %v", err)
	}
	return trade
}

func TestCreateTradeValidation(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.CreateTrade(context.Background(), uuid.New(), CreateTradeInput{ItemName: "   "})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank item name, got %v", err)
	}

	_, err = engine.CreateTrade(context.Background(), uuid.New(), CreateTradeInput{ItemName: "camera", Price: -1})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative price, got %v", err)
	}
}

func TestJoinRules(t *testing.T) {
	engine, _, _ := newTestEngine()
	creator := uuid.New()
	trade := mustCreateTrade(t, engine, creator)

	if _, err := engine.Join(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing trade, got %v", err)
	}

	if _, err := engine.Join(context.Background(), trade.ID, creator); !errors.Is(err, ErrSelfJoinForbidden) {
		t.Fatalf("expected ErrSelfJoinForbidden, got %v", err)
	}

	userU := uuid.New()
	if _, err := engine.Join(context.Background(), trade.ID, userU); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if _, err := engine.Join(context.Background(), trade.ID, userU); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined on duplicate join, got %v", err)
	}

	// A different user can still join
	if _, err := engine.Join(context.Background(), trade.ID, uuid.New()); err != nil {
		t.Fatalf("second user join failed: %v", err)
	}
}

func TestJoinRejectedOnInactiveTrade(t *testing.T) {
	engine, _, _ := newTestEngine()
	creator := uuid.New()
	trade := mustCreateTrade(t, engine, creator)

	if _, err := engine.Cancel(context.Background(), trade.ID, creator); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if _, err := engine.Join(context.Background(), trade.ID, uuid.New()); !errors.Is(err, ErrNotJoinable) {
		t.Fatalf("expected ErrNotJoinable on cancelled trade, got %v", err)
	}
}

func TestClaimRequiresPayment(t *testing.T) {
	engine, store, notifier := newTestEngine()
	trade := mustCreateTrade(t, engine, uuid.New())

	_, err := engine.Claim(context.Background(), trade.ID, uuid.New())
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}

	// No mutation on the rejected claim
	after, _ := store.GetTrade(context.Background(), trade.ID)
	if after.Status != models.TradeStatusActive || after.MiddlemanID != nil {
		t.Fatalf("trade mutated by rejected claim: status=%s middleman=%v", after.Status, after.MiddlemanID)
	}
	for _, kind := range notifier.kindsSeen() {
		if kind == EventTradeClaimed {
			t.Fatal("claimed event emitted for rejected claim")
		}
	}
}

func TestClaimNotFound(t *testing.T) {
	engine, _, _ := newTestEngine()
	if _, err := engine.Claim(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimSuccessThenConflict(t *testing.T) {
	engine, store, notifier := newTestEngine()
	trade := mustCreateTrade(t, engine, uuid.New())
	store.addPayment(trade.ID, models.PaymentStatusCompleted, time.Now())

	m1, m2 := uuid.New(), uuid.New()

	claimed, err := engine.Claim(context.Background(), trade.ID, m1)
	if err != nil {
		t.Fatalf("claim by m1 failed: %v", err)
	}
	if claimed.Status != models.TradeStatusUnderReview {
		t.Fatalf("expected under_review after claim, got %s", claimed.Status)
	}
	if claimed.MiddlemanID == nil || *claimed.MiddlemanID != m1 {
		t.Fatalf("expected middleman %s, got %v", m1, claimed.MiddlemanID)
	}

	// Second middleman observes the conflict; nothing changes
	if _, err := engine.Claim(context.Background(), trade.ID, m2); !errors.Is(err, ErrAlreadyAssignedToOther) {
		t.Fatalf("expected ErrAlreadyAssignedToOther, got %v", err)
	}
	after, _ := store.GetTrade(context.Background(), trade.ID)
	if after.MiddlemanID == nil || *after.MiddlemanID != m1 || after.Status != models.TradeStatusUnderReview {
		t.Fatalf("trade mutated by losing claim: status=%s middleman=%v", after.Status, after.MiddlemanID)
	}

	// Duplicate claims by the owner are rejected both times, no mutation
	for i := 0; i < 2; i++ {
		if _, err := engine.Claim(context.Background(), trade.ID, m1); !errors.Is(err, ErrAlreadyAssignedToSelf) {
			t.Fatalf("expected ErrAlreadyAssignedToSelf on duplicate claim %d, got %v", i+1, err)
		}
	}

	claimedEvents := 0
	for _, kind := range notifier.kindsSeen() {
		if kind == EventTradeClaimed {
			claimedEvents++
		}
	}
	if claimedEvents != 1 {
		t.Fatalf("expected exactly 1 claimed event, got %d", claimedEvents)
	}
}

func TestClaimOnTerminalTrade(t *testing.T) {
	engine, store, _ := newTestEngine()
	creator := uuid.New()
	trade := mustCreateTrade(t, engine, creator)
	store.addPayment(trade.ID, models.PaymentStatusCompleted, time.Now())

	if _, err := engine.Cancel(context.Background(), trade.ID, creator); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if _, err := engine.Claim(context.Background(), trade.ID, uuid.New()); !errors.Is(err, ErrNotClaimable) {
		t.Fatalf("expected ErrNotClaimable on terminal trade, got %v", err)
	}
}

func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	engine, _, _ := newTestEngine()
	trade := mustCreateTrade(t, engine, uuid.New())
	engine.store.(*memStore).addPayment(trade.ID, models.PaymentStatusProcessing, time.Now())

	const contenders = 8
	var wg sync.WaitGroup
	results := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = engine.Claim(context.Background(), trade.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyAssignedToOther):
			conflicts++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
	if conflicts != contenders-1 {
		t.Fatalf("expected %d conflicts, got %d", contenders-1, conflicts)
	}
}

func TestResolveLifecycle(t *testing.T) {
	engine, store, _ := newTestEngine()
	trade := mustCreateTrade(t, engine, uuid.New())
	store.addPayment(trade.ID, models.PaymentStatusCompleted, time.Now())

	m1 := uuid.New()
	if _, err := engine.Claim(context.Background(), trade.ID, m1); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Non-terminal outcome is rejected up front
	if _, err := engine.Resolve(context.Background(), trade.ID, m1, models.TradeStatusActive); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition for non-terminal outcome, got %v", err)
	}

	// Only the assigned middleman may resolve
	if _, err := engine.Resolve(context.Background(), trade.ID, uuid.New(), models.TradeStatusCompleted); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign middleman, got %v", err)
	}

	resolved, err := engine.Resolve(context.Background(), trade.ID, m1, models.TradeStatusCompleted)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != models.TradeStatusCompleted {
		t.Fatalf("expected completed, got %s", resolved.Status)
	}

	// Terminal states accept no further transition
	if _, err := engine.Resolve(context.Background(), trade.ID, m1, models.TradeStatusCancelled); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition from terminal state, got %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	engine, store, _ := newTestEngine()
	creator := uuid.New()
	trade := mustCreateTrade(t, engine, creator)

	if _, err := engine.Cancel(context.Background(), trade.ID, uuid.New()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-creator cancel, got %v", err)
	}

	store.addPayment(trade.ID, models.PaymentStatusCompleted, time.Now())
	if _, err := engine.Claim(context.Background(), trade.ID, uuid.New()); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Once claimed, only Resolve can close the trade
	if _, err := engine.Cancel(context.Background(), trade.ID, creator); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition after claim, got %v", err)
	}
}

func TestListPendingOrderingAndExclusion(t *testing.T) {
	engine, store, _ := newTestEngine()
	now := time.Now()
	engine.WithClock(func() time.Time { return now })

	// A: 3 payments, newer. B: 1 payment, a day older. C: unpaid, excluded.
	tradeA := mustCreateTrade(t, engine, uuid.New())
	tradeB := mustCreateTrade(t, engine, uuid.New())
	mustCreateTrade(t, engine, uuid.New())

	store.setCreatedAt(tradeA.ID, now.Add(-time.Hour))
	store.setCreatedAt(tradeB.ID, now.Add(-25*time.Hour))
	for i := 0; i < 3; i++ {
		store.addPayment(tradeA.ID, models.PaymentStatusCompleted, now)
	}
	store.addPayment(tradeB.ID, models.PaymentStatusCompleted, now)

	page, err := engine.ListPending(context.Background(), "", 0, 0)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("expected total 2, got %d", page.TotalCount)
	}
	if len(page.Trades) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Trades))
	}
	if page.Trades[0].Trade.ID != tradeA.ID {
		t.Fatalf("expected trade with more payments first, got %s", page.Trades[0].Trade.ID)
	}
	if page.Trades[1].Trade.ID != tradeB.ID {
		t.Fatalf("expected older single-payment trade second, got %s", page.Trades[1].Trade.ID)
	}
	if page.HasMore {
		t.Fatal("expected HasMore=false for a complete page")
	}

	if got := page.Trades[0].TimeInQueueSeconds; got != 3600 {
		t.Fatalf("expected 3600s in queue, got %d", got)
	}
}

func TestListPendingFairnessTieBreak(t *testing.T) {
	engine, store, _ := newTestEngine()
	now := time.Now()

	newer := mustCreateTrade(t, engine, uuid.New())
	older := mustCreateTrade(t, engine, uuid.New())
	store.setCreatedAt(newer.ID, now.Add(-time.Minute))
	store.setCreatedAt(older.ID, now.Add(-time.Hour))
	store.addPayment(newer.ID, models.PaymentStatusProcessing, now)
	store.addPayment(older.ID, models.PaymentStatusProcessing, now)

	page, err := engine.ListPending(context.Background(), "", 0, 0)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if page.Trades[0].Trade.ID != older.ID {
		t.Fatal("expected the oldest eligible trade to win the tie-break")
	}
}

func TestListPendingPaging(t *testing.T) {
	engine, store, _ := newTestEngine()
	now := time.Now()

	for i := 0; i < 5; i++ {
		trade := mustCreateTrade(t, engine, uuid.New())
		store.setCreatedAt(trade.ID, now.Add(-time.Duration(i)*time.Minute))
		store.addPayment(trade.ID, models.PaymentStatusCompleted, now)
	}

	page, err := engine.ListPending(context.Background(), "", 2, 0)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if page.TotalCount != 5 || len(page.Trades) != 2 || !page.HasMore {
		t.Fatalf("unexpected first page: total=%d items=%d hasMore=%v",
			page.TotalCount, len(page.Trades), page.HasMore)
	}

	last, err := engine.ListPending(context.Background(), "", 2, 4)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(last.Trades) != 1 || last.HasMore {
		t.Fatalf("unexpected last page: items=%d hasMore=%v", len(last.Trades), last.HasMore)
	}
}

func TestListPendingDefaultLimit(t *testing.T) {
	engine, store, _ := newTestEngine()
	now := time.Now()

	for i := 0; i < DefaultQueueLimit+5; i++ {
		trade := mustCreateTrade(t, engine, uuid.New())
		store.addPayment(trade.ID, models.PaymentStatusCompleted, now)
	}

	page, err := engine.ListPending(context.Background(), "", 0, -3)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(page.Trades) != DefaultQueueLimit {
		t.Fatalf("expected default page size %d, got %d", DefaultQueueLimit, len(page.Trades))
	}
	if !page.HasMore {
		t.Fatal("expected HasMore=true past the default page")
	}
}
