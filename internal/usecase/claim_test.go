package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/client"
	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/reputation"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	wei0005    = int64(5_000_000_000_000_000)
	wei0010    = int64(10_000_000_000_000_000)
	wei0015    = int64(15_000_000_000_000_000)
)

type mockIdentityRepo struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
}

func newMockIdentityRepo() *mockIdentityRepo {
	return &mockIdentityRepo{identities: map[string]domain.Identity{}}
}

func (m *mockIdentityRepo) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.identities[identity.Subject]; ok {
		return existing, nil
	}
	identity.TokenGeneration = 1
	identity.CreatedAt = time.Now()
	m.identities[identity.Subject] = identity
	return identity, nil
}

func (m *mockIdentityRepo) Get(ctx context.Context, subject string) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[subject]
	if !ok {
		return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
	}
	return identity, nil
}

func (m *mockIdentityRepo) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Username == username {
			return identity, nil
		}
	}
	return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
}

func (m *mockIdentityRepo) RotateToken(ctx context.Context, subject string, tok string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[subject]
	if !ok {
		return 0, domain.NotFoundError{Resource: "identity"}
	}
	identity.TokenGeneration++
	identity.Token = tok
	m.identities[subject] = identity
	return identity.TokenGeneration, nil
}

func (m *mockIdentityRepo) SetToken(ctx context.Context, subject string, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity := m.identities[subject]
	identity.Token = tok
	m.identities[subject] = identity
	return nil
}

func (m *mockIdentityRepo) SetAgentTokenID(ctx context.Context, subject string, agentTokenID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity := m.identities[subject]
	identity.AgentTokenID = &agentTokenID
	m.identities[subject] = identity
	return nil
}

func (m *mockIdentityRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.identities)), nil
}

// mockLedger mirrors the database ledger's semantics: the reserve check and
// increment happen under one lock, standing in for the conditional UPDATE.
type mockLedger struct {
	mu           sync.Mutex
	usage        map[string]int64
	reservations map[int64]domain.Reservation
	committed    []domain.Claim
	nextID       int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		usage:        map[string]int64{},
		reservations: map[int64]domain.Reservation{},
	}
}

func (m *mockLedger) key(subject, day string) string { return subject + "/" + day }

func (m *mockLedger) Reserve(ctx context.Context, subject, day string, amountWei, quotaWei int64) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claimed := m.usage[m.key(subject, day)]
	if claimed+amountWei > quotaWei {
		remaining := quotaWei - claimed
		if remaining < 0 {
			remaining = 0
		}
		return domain.Reservation{}, domain.RateLimitError{
			QuotaWei:     quotaWei,
			ClaimedWei:   claimed,
			RemainingWei: remaining,
		}
	}

	m.usage[m.key(subject, day)] = claimed + amountWei
	m.nextID++
	reservation := domain.Reservation{
		ID:        m.nextID,
		Subject:   subject,
		Day:       day,
		AmountWei: amountWei,
		CreatedAt: time.Now(),
	}
	m.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (m *mockLedger) Commit(ctx context.Context, reservation domain.Reservation, claim domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, reservation.ID)
	m.committed = append(m.committed, claim)
	return nil
}

func (m *mockLedger) Release(ctx context.Context, reservation domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[reservation.ID]; !ok {
		return nil
	}
	delete(m.reservations, reservation.ID)
	m.usage[m.key(reservation.Subject, reservation.Day)] -= reservation.AmountWei
	return nil
}

func (m *mockLedger) Discard(ctx context.Context, reservation domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, reservation.ID)
	return nil
}

func (m *mockLedger) ClaimedOn(ctx context.Context, subject, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[m.key(subject, day)], nil
}

func (m *mockLedger) StaleReservations(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []domain.Reservation
	for _, reservation := range m.reservations {
		if reservation.CreatedAt.Before(cutoff) {
			stale = append(stale, reservation)
		}
	}
	return stale, nil
}

type mockClaimRepo struct {
	mu         sync.Mutex
	idempotent map[string]string
	perSubject map[string]int64
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{
		idempotent: map[string]string{},
		perSubject: map[string]int64{},
	}
}

func (m *mockClaimRepo) CountBySubject(ctx context.Context, subject string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perSubject[subject], nil
}

func (m *mockClaimRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockClaimRepo) TotalDistributed(ctx context.Context) (string, error) { return "0", nil }

func (m *mockClaimRepo) CountFundedWallets(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockClaimRepo) GetIdempotent(ctx context.Context, subject, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.idempotent[subject+"/"+key]
	return stored, ok, nil
}

func (m *mockClaimRepo) StoreIdempotent(ctx context.Context, subject, key, response string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.idempotent[subject+"/"+key]; !ok {
		m.idempotent[subject+"/"+key] = response
	}
	return nil
}

func (m *mockClaimRepo) HasClaimForReservation(ctx context.Context, reservationID int64) (bool, error) {
	return false, nil
}

type mockChain struct {
	mu          sync.Mutex
	transfers   int
	transferErr error
	balance     *big.Int
	agentID     int64
	registered  int
}

func (m *mockChain) Transfer(ctx context.Context, to string, amountWei *big.Int, agentTokenID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transferErr != nil {
		return "", m.transferErr
	}
	m.transfers++
	return fmt.Sprintf("0x%064x", m.transfers), nil
}

func (m *mockChain) PoolBalance(ctx context.Context) (*big.Int, error) {
	if m.balance == nil {
		return big.NewInt(0), nil
	}
	return m.balance, nil
}

func (m *mockChain) RegisterAgent(ctx context.Context, agentURI string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered++
	return m.agentID, nil
}

func (m *mockChain) VerifyDeposit(ctx context.Context, txHash string) (string, *big.Int, error) {
	return testWallet, big.NewInt(wei0010), nil
}

func (m *mockChain) VerifyReturn(ctx context.Context, txHash string) (string, *big.Int, error) {
	return testWallet, big.NewInt(wei0005), nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []faucet.DispensationEvent
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, event faucet.DispensationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type mockReputation struct {
	signals reputation.Signals
	profile client.Profile
	err     error
}

func (m *mockReputation) Signals(ctx context.Context, accessToken string) (reputation.Signals, client.Profile, error) {
	return m.signals, m.profile, m.err
}

func testConfig() domain.Config {
	return domain.Config{
		Issuer:          "agentfaucet",
		TokenSecret:     "test-secret",
		Provider:        "github",
		DefaultClaimWei: wei0005,
		AgentURIBase:    "https://agents.example.com",
		ChainName:       "bsc-testnet",
		TransferTimeout: time.Second,
		ReserveTimeout:  15 * time.Minute,
		IdempotencyTTL:  24 * time.Hour,
		StatsCacheTTL:   30 * time.Second,
	}
}

func seedIdentity(repo *mockIdentityRepo, subject string, score int) domain.Identity {
	tier, quota := reputation.Resolve(score)
	identity, _ := repo.Create(context.Background(), domain.Identity{
		Subject:       subject,
		Username:      "dev-" + subject,
		Score:         score,
		Tier:          tier,
		DailyLimitWei: quota,
	})
	return identity
}

func newClaimFixture() (*ClaimUsecase, *mockIdentityRepo, *mockLedger, *mockClaimRepo, *mockChain, *mockPublisher) {
	identities := newMockIdentityRepo()
	ledger := newMockLedger()
	claims := newMockClaimRepo()
	chain := &mockChain{}
	publisher := &mockPublisher{}
	uc := NewClaimUsecase(testConfig(), identities, ledger, claims, chain, publisher)
	return uc, identities, ledger, claims, chain, publisher
}

func TestClaimTierScenario(t *testing.T) {
	uc, identities, _, _, _, publisher := newClaimFixture()

	// score 65 lands in tier 3 with a 0.015 daily quota
	identity := seedIdentity(identities, "gh:65", 65)
	if identity.Tier != 3 || identity.DailyLimitWei != wei0015 {
		t.Fatalf("unexpected tier/quota: %d/%d", identity.Tier, identity.DailyLimitWei)
	}

	resp, err := uc.Claim(context.Background(), "gh:65", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
	})
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if !resp.Success || resp.TxHash == "" {
		t.Fatalf("expected successful claim, got %+v", resp)
	}
	if resp.Amount != "0.005" {
		t.Fatalf("expected default amount 0.005, got %s", resp.Amount)
	}
	if resp.Remaining != "0.01" {
		t.Fatalf("expected remaining 0.01, got %s", resp.Remaining)
	}

	// 0.011 would push the day's total to 0.016, past the 0.015 quota
	_, err = uc.Claim(context.Background(), "gh:65", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
		Amount:        "0.011",
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	var rle domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rle.RemainingWei != wei0010 {
		t.Fatalf("expected remaining %d wei, got %d", wei0010, rle.RemainingWei)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected one dispensation event, got %d", len(publisher.events))
	}
	if publisher.events[0].Amount != "0.005" {
		t.Fatalf("unexpected event amount %s", publisher.events[0].Amount)
	}
}

func TestClaimExactRemaining(t *testing.T) {
	uc, identities, ledger, _, _, _ := newClaimFixture()
	seedIdentity(identities, "gh:exact", 30) // tier 2, quota 0.01

	// consume half the quota up front
	day := time.Now().UTC().Format(domain.DayFormat)
	if _, err := ledger.Reserve(context.Background(), "gh:exact", day, wei0005, wei0010); err != nil {
		t.Fatalf("seed reserve failed: %v", err)
	}

	resp, err := uc.Claim(context.Background(), "gh:exact", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
		Amount:        "0.005",
	})
	if err != nil {
		t.Fatalf("claim of exact remaining failed: %v", err)
	}
	if resp.Remaining != "0" {
		t.Fatalf("expected remaining 0, got %s", resp.Remaining)
	}

	// the committed claim references the reservation it settled, so the
	// reconciler can tell it apart from orphans
	if n := len(ledger.committed); n != 1 {
		t.Fatalf("expected 1 committed claim, got %d", n)
	}
	if ledger.committed[0].ReservationID == 0 {
		t.Fatal("committed claim lost its reservation id")
	}

	// quota is now fully consumed; the smallest claim must fail and leave
	// the counter untouched
	_, err = uc.Claim(context.Background(), "gh:exact", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
		Amount:        "0.000000000000000001",
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	claimed, _ := ledger.ClaimedOn(context.Background(), "gh:exact", day)
	if claimed != wei0010 {
		t.Fatalf("counter moved on failed claim: %d", claimed)
	}
}

func TestClaimTransferFailureRestoresAllowance(t *testing.T) {
	uc, identities, ledger, _, chain, publisher := newClaimFixture()
	seedIdentity(identities, "gh:fail", 30)

	chain.transferErr = errors.New("rpc timeout")

	_, err := uc.Claim(context.Background(), "gh:fail", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
	})
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}

	day := time.Now().UTC().Format(domain.DayFormat)
	claimed, _ := ledger.ClaimedOn(context.Background(), "gh:fail", day)
	if claimed != 0 {
		t.Fatalf("allowance not restored after failed transfer: %d", claimed)
	}
	if len(ledger.committed) != 0 {
		t.Fatalf("claim recorded despite failed transfer")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("event published despite failed transfer")
	}

	// the full quota is available again
	chain.transferErr = nil
	resp, err := uc.Claim(context.Background(), "gh:fail", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
		Amount:        "0.01",
	})
	if err != nil {
		t.Fatalf("retry after failure did not succeed: %v", err)
	}
	if resp.Remaining != "0" {
		t.Fatalf("expected remaining 0, got %s", resp.Remaining)
	}
}

func TestClaimConcurrent(t *testing.T) {
	uc, identities, ledger, _, _, _ := newClaimFixture()
	seedIdentity(identities, "gh:conc", 65) // quota 0.015, fits three 0.005 claims

	const workers = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, limited int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Claim(context.Background(), "gh:conc", 1, faucet.ClaimRequest{
				WalletAddress: testWallet,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrRateLimited):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded+limited != workers {
		t.Fatalf("lost outcomes: %d + %d != %d", succeeded, limited, workers)
	}
	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful claims, got %d", succeeded)
	}

	day := time.Now().UTC().Format(domain.DayFormat)
	claimed, _ := ledger.ClaimedOn(context.Background(), "gh:conc", day)
	if claimed > wei0015 {
		t.Fatalf("committed usage exceeds quota: %d", claimed)
	}
	if len(ledger.committed) != 3 {
		t.Fatalf("expected 3 claim records, got %d", len(ledger.committed))
	}
}

func TestClaimStaleGeneration(t *testing.T) {
	uc, identities, _, _, _, _ := newClaimFixture()
	seedIdentity(identities, "gh:gen", 30)

	if _, err := identities.RotateToken(context.Background(), "gh:gen", "fresh"); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	_, err := uc.Claim(context.Background(), "gh:gen", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for superseded generation, got %v", err)
	}

	if _, err := uc.Claim(context.Background(), "gh:gen", 2, faucet.ClaimRequest{
		WalletAddress: testWallet,
	}); err != nil {
		t.Fatalf("current generation rejected: %v", err)
	}
}

func TestClaimValidation(t *testing.T) {
	uc, identities, _, _, _, _ := newClaimFixture()
	seedIdentity(identities, "gh:val", 30)

	cases := []faucet.ClaimRequest{
		{WalletAddress: "not-an-address"},
		{WalletAddress: ""},
		{WalletAddress: testWallet, Amount: "abc"},
		{WalletAddress: testWallet, Amount: "-1"},
		{WalletAddress: testWallet, Amount: "0"},
	}
	for _, req := range cases {
		_, err := uc.Claim(context.Background(), "gh:val", 1, req)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("expected invalid request for %+v, got %v", req, err)
		}
	}

	_, err := uc.Claim(context.Background(), "gh:missing", 1, faucet.ClaimRequest{WalletAddress: testWallet})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown subject, got %v", err)
	}
}

func TestClaimIdempotentReplay(t *testing.T) {
	uc, identities, ledger, _, chain, _ := newClaimFixture()
	seedIdentity(identities, "gh:idem", 30)

	req := faucet.ClaimRequest{
		WalletAddress:  testWallet,
		IdempotencyKey: "retry-abc",
	}

	first, err := uc.Claim(context.Background(), "gh:idem", 1, req)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	second, err := uc.Claim(context.Background(), "gh:idem", 1, req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if second.TxHash != first.TxHash {
		t.Fatalf("replay produced a different tx: %s vs %s", second.TxHash, first.TxHash)
	}
	if chain.transfers != 1 {
		t.Fatalf("replay hit the chain: %d transfers", chain.transfers)
	}

	day := time.Now().UTC().Format(domain.DayFormat)
	claimed, _ := ledger.ClaimedOn(context.Background(), "gh:idem", day)
	if claimed != wei0005 {
		t.Fatalf("replay consumed additional allowance: %d", claimed)
	}
}

func TestStatus(t *testing.T) {
	uc, identities, _, _, _, _ := newClaimFixture()
	seedIdentity(identities, "gh:status", 90) // tier 4, quota 0.02

	if _, err := uc.Claim(context.Background(), "gh:status", 1, faucet.ClaimRequest{
		WalletAddress: testWallet,
	}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	status, err := uc.Status(context.Background(), "gh:status", 1)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	if status.Tier != 4 || status.DailyLimit != "0.02" {
		t.Fatalf("unexpected tier/limit: %d/%s", status.Tier, status.DailyLimit)
	}
	if status.ClaimedToday != "0.005" || status.Remaining != "0.015" {
		t.Fatalf("unexpected usage: claimed %s remaining %s", status.ClaimedToday, status.Remaining)
	}

	if _, err := uc.Status(context.Background(), "gh:status", 99); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for stale generation, got %v", err)
	}
}
