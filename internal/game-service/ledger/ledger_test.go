package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/game-service/engine"
	"github.com/radieske/crash-game-platform/internal/game-service/money"
	"github.com/radieske/crash-game-platform/internal/game-service/repo"
)

// memStore implementa Store em memória com a mesma semântica do Postgres:
// débito+criação da aposta atômicos, cashout só sobre aposta 'placed'.
type memStore struct {
	accounts map[string]repo.Account
	bets     []repo.Bet

	lastLimit int
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]repo.Account)}
}

func (m *memStore) GetAccount(_ context.Context, username string) (repo.Account, error) {
	a, ok := m.accounts[username]
	if !ok {
		return repo.Account{}, repo.ErrNotFound
	}
	return a, nil
}

func (m *memStore) CreateAccount(_ context.Context, username string, initialCents int64, sessionEndAt time.Time) (repo.Account, error) {
	a := repo.Account{
		Username:     username,
		BalanceCents: initialCents,
		SessionEndAt: sessionEndAt,
		CreatedAt:    time.Now(),
	}
	m.accounts[username] = a
	return a, nil
}

func (m *memStore) RenewSession(_ context.Context, username string, sessionEndAt time.Time, creditCents int64) (repo.Account, error) {
	a, ok := m.accounts[username]
	if !ok {
		return repo.Account{}, repo.ErrNotFound
	}
	a.SessionEndAt = sessionEndAt
	a.BalanceCents += creditCents
	m.accounts[username] = a
	return a, nil
}

func (m *memStore) Credit(_ context.Context, username string, amountCents int64) (repo.Account, error) {
	a, ok := m.accounts[username]
	if !ok {
		return repo.Account{}, repo.ErrNotFound
	}
	a.BalanceCents += amountCents
	m.accounts[username] = a
	return a, nil
}

func (m *memStore) PlaceBet(_ context.Context, b repo.Bet) (repo.Account, error) {
	a, ok := m.accounts[b.Username]
	if !ok {
		return repo.Account{}, repo.ErrNotFound
	}
	if a.BalanceCents < b.AmountCents {
		return repo.Account{}, repo.ErrInsufficientFunds
	}
	a.BalanceCents -= b.AmountCents
	m.accounts[b.Username] = a
	m.bets = append(m.bets, b)
	return a, nil
}

func (m *memStore) CashBet(_ context.Context, username, roundCode string, multH int64) (repo.Bet, repo.Account, error) {
	for i, b := range m.bets {
		if b.Username != username || b.RoundCode != roundCode || b.Status != repo.BetPlaced {
			continue
		}
		payout := money.Payout(b.AmountCents, multH)
		b.Status = repo.BetCashed
		b.CashoutMultiplierH = &multH
		b.PayoutCents = &payout
		m.bets[i] = b

		a := m.accounts[username]
		a.BalanceCents += payout
		m.accounts[username] = a
		return b, a, nil
	}
	return repo.Bet{}, repo.Account{}, repo.ErrNoPlacedBet
}

func (m *memStore) RecentBets(_ context.Context, limit int) ([]repo.Bet, error) {
	m.lastLimit = limit
	if limit > len(m.bets) {
		limit = len(m.bets)
	}
	return m.bets[:limit], nil
}

// fakeRounds simula o motor: um snapshot fixo e a mesma regra de seção
// crítica do cashout.
type fakeRounds struct {
	snap engine.Snapshot
	ok   bool
}

func (f *fakeRounds) Current() (engine.Snapshot, bool) { return f.snap, f.ok }

func (f *fakeRounds) WithFlying(fn func(engine.Snapshot) error) error {
	if !f.ok || f.snap.Phase != engine.PhaseFlying {
		return engine.ErrNotFlying
	}
	return fn(f.snap)
}

type fakePub struct {
	betNew    []repo.Bet
	betCashed []repo.Bet
	userUpd   []repo.Account
}

func (f *fakePub) BetNew(_ context.Context, b repo.Bet) error {
	f.betNew = append(f.betNew, b)
	return nil
}

func (f *fakePub) BetCashed(_ context.Context, b repo.Bet) error {
	f.betCashed = append(f.betCashed, b)
	return nil
}

func (f *fakePub) UserUpdate(_ context.Context, a repo.Account) error {
	f.userUpd = append(f.userUpd, a)
	return nil
}

func newService(store Store, rounds RoundSource) (*Service, *fakePub) {
	pub := &fakePub{}
	return New(zap.NewNop(), store, rounds, pub), pub
}

func seedAccount(store *memStore, username string, cents int64) {
	store.accounts[username] = repo.Account{
		Username:     username,
		BalanceCents: cents,
		SessionEndAt: time.Now().Add(30 * time.Minute),
		CreatedAt:    time.Now(),
	}
}

func bettingRound(code string) *fakeRounds {
	return &fakeRounds{
		snap: engine.Snapshot{Code: code, Phase: engine.PhaseBetting, MultiplierH: 100},
		ok:   true,
	}
}

func TestEnsureSessionCreatesAccount(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(store, &fakeRounds{})

	acct, err := svc.EnsureSession(context.Background(), "alice", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), acct.BalanceCents)

	// janela de sessão entre 30 e 60 minutos
	remaining := time.Until(acct.SessionEndAt)
	assert.Greater(t, remaining, 29*time.Minute)
	assert.Less(t, remaining, 61*time.Minute)
}

func TestEnsureSessionValidDoesNotCredit(t *testing.T) {
	store := newMemStore()
	seedAccount(store, "alice", 1200)
	svc, _ := newService(store, &fakeRounds{})

	acct, err := svc.EnsureSession(context.Background(), "alice", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), acct.BalanceCents)
}

func TestEnsureSessionRenewsExpired(t *testing.T) {
	store := newMemStore()
	store.accounts["alice"] = repo.Account{
		Username:     "alice",
		BalanceCents: 300,
		SessionEndAt: time.Now().Add(-time.Minute),
	}
	svc, _ := newService(store, &fakeRounds{})

	acct, err := svc.EnsureSession(context.Background(), "alice", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5300), acct.BalanceCents)
	assert.False(t, acct.SessionExpired(time.Now()))
}

func TestDeposit(t *testing.T) {
	store := newMemStore()
	seedAccount(store, "alice", 1000)
	svc, pub := newService(store, &fakeRounds{})
	ctx := context.Background()

	t.Run("valor inválido", func(t *testing.T) {
		_, err := svc.Deposit(ctx, "alice", 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("usuário desconhecido", func(t *testing.T) {
		_, err := svc.Deposit(ctx, "ghost", 100)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("sessão expirada", func(t *testing.T) {
		store.accounts["bob"] = repo.Account{Username: "bob", SessionEndAt: time.Now().Add(-time.Second)}
		_, err := svc.Deposit(ctx, "bob", 100)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("crédito", func(t *testing.T) {
		acct, err := svc.Deposit(ctx, "alice", 2500)
		require.NoError(t, err)
		assert.Equal(t, int64(3500), acct.BalanceCents)
		require.Len(t, pub.userUpd, 1)
		assert.Equal(t, int64(3500), pub.userUpd[0].BalanceCents)
	})
}

func TestPlaceBet(t *testing.T) {
	ctx := context.Background()

	t.Run("debita a stake", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		svc, pub := newService(store, bettingRound("R1"))

		bet, err := svc.PlaceBet(ctx, "alice", 1000)
		require.NoError(t, err)
		assert.Equal(t, "R1", bet.RoundCode)
		assert.Equal(t, repo.BetPlaced, bet.Status)
		assert.NotEmpty(t, bet.ID)
		assert.Equal(t, int64(4000), store.accounts["alice"].BalanceCents)
		assert.Len(t, pub.betNew, 1)
	})

	t.Run("stake igual ao saldo zera a conta", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 1000)
		svc, _ := newService(store, bettingRound("R1"))

		_, err := svc.PlaceBet(ctx, "alice", 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(0), store.accounts["alice"].BalanceCents)
	})

	t.Run("saldo insuficiente", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 999)
		svc, _ := newService(store, bettingRound("R1"))

		_, err := svc.PlaceBet(ctx, "alice", 1000)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, int64(999), store.accounts["alice"].BalanceCents)
	})

	t.Run("sessão expirada", func(t *testing.T) {
		store := newMemStore()
		store.accounts["alice"] = repo.Account{Username: "alice", BalanceCents: 5000, SessionEndAt: time.Now().Add(-time.Second)}
		svc, _ := newService(store, bettingRound("R1"))

		_, err := svc.PlaceBet(ctx, "alice", 100)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("sem rodada aberta", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		svc, _ := newService(store, &fakeRounds{})

		_, err := svc.PlaceBet(ctx, "alice", 100)
		require.ErrorIs(t, err, ErrBettingClosed)
	})

	t.Run("rodada em voo", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		rounds := &fakeRounds{snap: engine.Snapshot{Code: "R1", Phase: engine.PhaseFlying}, ok: true}
		svc, _ := newService(store, rounds)

		_, err := svc.PlaceBet(ctx, "alice", 100)
		require.ErrorIs(t, err, ErrBettingClosed)
	})

	t.Run("valor inválido", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		svc, _ := newService(store, bettingRound("R1"))

		_, err := svc.PlaceBet(ctx, "alice", 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestCashOut(t *testing.T) {
	ctx := context.Background()

	t.Run("liquida no multiplicador corrente", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		rounds := bettingRound("R1")
		svc, pub := newService(store, rounds)

		_, err := svc.PlaceBet(ctx, "alice", 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(4000), store.accounts["alice"].BalanceCents)

		rounds.snap.Phase = engine.PhaseFlying
		rounds.snap.MultiplierH = 180

		bet, err := svc.CashOut(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, repo.BetCashed, bet.Status)
		require.NotNil(t, bet.PayoutCents)
		assert.Equal(t, int64(1800), *bet.PayoutCents)
		assert.Equal(t, int64(5800), store.accounts["alice"].BalanceCents)
		assert.Len(t, pub.betCashed, 1)
		assert.Len(t, pub.userUpd, 1)
	})

	t.Run("prêmio trunca em favor da casa", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 333)
		rounds := bettingRound("R1")
		svc, _ := newService(store, rounds)

		_, err := svc.PlaceBet(ctx, "alice", 333)
		require.NoError(t, err)

		rounds.snap.Phase = engine.PhaseFlying
		rounds.snap.MultiplierH = 133

		bet, err := svc.CashOut(ctx, "alice")
		require.NoError(t, err)
		// 3.33 * 1.33 = 4.4289 -> 4.42
		assert.Equal(t, int64(442), *bet.PayoutCents)
	})

	t.Run("rodada já crashou", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		rounds := bettingRound("R1")
		svc, _ := newService(store, rounds)

		_, err := svc.PlaceBet(ctx, "alice", 1000)
		require.NoError(t, err)

		rounds.snap.Phase = engine.PhaseCrashed

		_, err = svc.CashOut(ctx, "alice")
		require.ErrorIs(t, err, ErrRoundNotFlying)
		assert.Equal(t, int64(4000), store.accounts["alice"].BalanceCents)
	})

	t.Run("sem aposta ativa", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		rounds := &fakeRounds{snap: engine.Snapshot{Code: "R1", Phase: engine.PhaseFlying, MultiplierH: 150}, ok: true}
		svc, _ := newService(store, rounds)

		_, err := svc.CashOut(ctx, "alice")
		require.ErrorIs(t, err, ErrNoActiveBet)
	})

	t.Run("segundo cashout é rejeitado", func(t *testing.T) {
		store := newMemStore()
		seedAccount(store, "alice", 5000)
		rounds := bettingRound("R1")
		svc, _ := newService(store, rounds)

		_, err := svc.PlaceBet(ctx, "alice", 1000)
		require.NoError(t, err)

		rounds.snap.Phase = engine.PhaseFlying
		rounds.snap.MultiplierH = 150

		_, err = svc.CashOut(ctx, "alice")
		require.NoError(t, err)

		_, err = svc.CashOut(ctx, "alice")
		require.ErrorIs(t, err, ErrNoActiveBet)
	})
}

func TestRecentBetsClampsLimit(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(store, &fakeRounds{})
	ctx := context.Background()

	_, err := svc.RecentBets(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, store.lastLimit)

	_, err = svc.RecentBets(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, 200, store.lastLimit)

	_, err = svc.RecentBets(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, store.lastLimit)
}
