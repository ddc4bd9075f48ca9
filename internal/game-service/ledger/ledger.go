package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/game-service/engine"
	"github.com/radieske/crash-game-platform/internal/game-service/repo"
)

// Store é o colaborador de persistência do ledger. Implementado por
// repo.Postgres; os testes usam uma implementação em memória.
type Store interface {
	GetAccount(ctx context.Context, username string) (repo.Account, error)
	CreateAccount(ctx context.Context, username string, initialCents int64, sessionEndAt time.Time) (repo.Account, error)
	RenewSession(ctx context.Context, username string, sessionEndAt time.Time, creditCents int64) (repo.Account, error)
	Credit(ctx context.Context, username string, amountCents int64) (repo.Account, error)
	PlaceBet(ctx context.Context, b repo.Bet) (repo.Account, error)
	CashBet(ctx context.Context, username, roundCode string, multH int64) (repo.Bet, repo.Account, error)
	RecentBets(ctx context.Context, limit int) ([]repo.Bet, error)
}

// RoundSource dá a visão do motor de rodadas: snapshot corrente e a seção
// crítica de liquidação para o cashout.
type RoundSource interface {
	Current() (engine.Snapshot, bool)
	WithFlying(fn func(engine.Snapshot) error) error
}

// Publisher replica eventos de aposta/conta para os observadores. Falha de
// publicação nunca derruba a operação que já commitou.
type Publisher interface {
	BetNew(ctx context.Context, b repo.Bet) error
	BetCashed(ctx context.Context, b repo.Bet) error
	UserUpdate(ctx context.Context, a repo.Account) error
}

// Service concentra as regras de negócio de conta e aposta. O gateway HTTP
// não reimplementa nada daqui.
type Service struct {
	log    *zap.Logger
	store  Store
	rounds RoundSource
	fan    Publisher

	// Callbacks de métricas, ligados a counters no main.
	OnBetPlaced func()
	OnCashout   func()
}

func New(log *zap.Logger, store Store, rounds RoundSource, fan Publisher) *Service {
	return &Service{log: log, store: store, rounds: rounds, fan: fan}
}

// sessionDuration sorteia a janela de sessão: 30 a 60 minutos.
func sessionDuration() time.Duration {
	return time.Duration(30+rand.Intn(31)) * time.Minute
}

// EnsureSession busca (ou cria) a conta e rearma a sessão se já expirou.
// O depósito inicial só é creditado quando a sessão é criada ou renovada.
func (s *Service) EnsureSession(ctx context.Context, username string, initialCents int64) (repo.Account, error) {
	now := time.Now()
	acct, err := s.store.GetAccount(ctx, username)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		acct, err = s.store.CreateAccount(ctx, username, initialCents, now.Add(sessionDuration()))
		if err != nil {
			return repo.Account{}, fmt.Errorf("create account: %w", err)
		}
	case err != nil:
		return repo.Account{}, fmt.Errorf("get account: %w", err)
	case acct.SessionExpired(now):
		acct, err = s.store.RenewSession(ctx, username, now.Add(sessionDuration()), initialCents)
		if err != nil {
			return repo.Account{}, fmt.Errorf("renew session: %w", err)
		}
	}
	return acct, nil
}

// Deposit credita saldo numa sessão válida.
func (s *Service) Deposit(ctx context.Context, username string, amountCents int64) (repo.Account, error) {
	if amountCents <= 0 {
		return repo.Account{}, ErrInvalidAmount
	}
	acct, err := s.store.GetAccount(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Account{}, ErrUserNotFound
	}
	if err != nil {
		return repo.Account{}, fmt.Errorf("get account: %w", err)
	}
	if acct.SessionExpired(time.Now()) {
		return repo.Account{}, ErrSessionExpired
	}

	acct, err = s.store.Credit(ctx, username, amountCents)
	if err != nil {
		return repo.Account{}, fmt.Errorf("credit: %w", err)
	}

	if err := s.fan.UserUpdate(ctx, acct); err != nil {
		s.log.Warn("user update broadcast failed", zap.String("user", username), zap.Error(err))
	}
	return acct, nil
}

// PlaceBet valida sessão e fase, e então debita a stake criando a aposta como
// uma unidade atômica contra a rodada corrente.
func (s *Service) PlaceBet(ctx context.Context, username string, amountCents int64) (repo.Bet, error) {
	acct, err := s.store.GetAccount(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Bet{}, ErrUserNotFound
	}
	if err != nil {
		return repo.Bet{}, fmt.Errorf("get account: %w", err)
	}
	if acct.SessionExpired(time.Now()) {
		return repo.Bet{}, ErrSessionExpired
	}

	snap, ok := s.rounds.Current()
	if !ok || snap.Phase != engine.PhaseBetting {
		return repo.Bet{}, ErrBettingClosed
	}
	if amountCents <= 0 {
		return repo.Bet{}, ErrInvalidAmount
	}

	bet := repo.Bet{
		ID:          uuid.NewString(),
		Username:    username,
		RoundCode:   snap.Code,
		AmountCents: amountCents,
		Status:      repo.BetPlaced,
		CreatedAt:   time.Now(),
	}
	if _, err := s.store.PlaceBet(ctx, bet); err != nil {
		switch {
		case errors.Is(err, repo.ErrInsufficientFunds):
			return repo.Bet{}, ErrInsufficientFunds
		case errors.Is(err, repo.ErrNotFound):
			return repo.Bet{}, ErrUserNotFound
		default:
			return repo.Bet{}, fmt.Errorf("place bet: %w", err)
		}
	}

	if s.OnBetPlaced != nil {
		s.OnBetPlaced()
	}
	if err := s.fan.BetNew(ctx, bet); err != nil {
		s.log.Warn("bet broadcast failed", zap.String("bet", bet.ID), zap.Error(err))
	}
	return bet, nil
}

// CashOut liquida a aposta ativa do usuário na rodada corrente, usando o
// multiplicador do motor no instante do processamento. Roda dentro da seção
// de liquidação da rodada: valendo a fase observada na entrada.
func (s *Service) CashOut(ctx context.Context, username string) (repo.Bet, error) {
	var (
		bet  repo.Bet
		acct repo.Account
	)
	err := s.rounds.WithFlying(func(snap engine.Snapshot) error {
		b, a, err := s.store.CashBet(ctx, username, snap.Code, snap.MultiplierH)
		if err != nil {
			return err
		}
		bet, acct = b, a
		return nil
	})
	switch {
	case errors.Is(err, engine.ErrNotFlying):
		return repo.Bet{}, ErrRoundNotFlying
	case errors.Is(err, repo.ErrNoPlacedBet):
		return repo.Bet{}, ErrNoActiveBet
	case err != nil:
		return repo.Bet{}, fmt.Errorf("cash bet: %w", err)
	}

	if s.OnCashout != nil {
		s.OnCashout()
	}
	if err := s.fan.BetCashed(ctx, bet); err != nil {
		s.log.Warn("cashout broadcast failed", zap.String("bet", bet.ID), zap.Error(err))
	}
	if err := s.fan.UserUpdate(ctx, acct); err != nil {
		s.log.Warn("user update broadcast failed", zap.String("user", username), zap.Error(err))
	}
	return bet, nil
}

// RecentBets lista as apostas mais recentes, limite default 50, teto 200.
func (s *Service) RecentBets(ctx context.Context, limit int) ([]repo.Bet, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.store.RecentBets(ctx, limit)
}
