package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/game-service/engine"
	"github.com/radieske/crash-game-platform/internal/game-service/ledger"
	"github.com/radieske/crash-game-platform/internal/game-service/repo"
	"github.com/radieske/crash-game-platform/internal/game-service/roundcache"
	"github.com/radieske/crash-game-platform/internal/game-service/ws"
)

// Ledger é o contrato de regras de negócio consumido pelo gateway. O gateway
// só valida formato de entrada e traduz erro em status; regra fica no ledger.
type Ledger interface {
	EnsureSession(ctx context.Context, username string, initialCents int64) (repo.Account, error)
	Deposit(ctx context.Context, username string, amountCents int64) (repo.Account, error)
	PlaceBet(ctx context.Context, username string, amountCents int64) (repo.Bet, error)
	CashOut(ctx context.Context, username string) (repo.Bet, error)
	RecentBets(ctx context.Context, limit int) ([]repo.Bet, error)
}

// Rounds dá o snapshot da rodada corrente quando o motor roda neste processo.
type Rounds interface {
	Current() (engine.Snapshot, bool)
}

type Server struct {
	log    *zap.Logger
	svc    Ledger
	rounds Rounds
	cache  *roundcache.Cache
	hub    *ws.Hub
}

func NewServer(log *zap.Logger, svc Ledger, rounds Rounds, cache *roundcache.Cache, hub *ws.Hub) *Server {
	return &Server{log: log, svc: svc, rounds: rounds, cache: cache, hub: hub}
}

// Router retorna o roteador HTTP com a API pública e o endpoint WebSocket
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Post("/api/users/login", s.login)       // ensure-session
	r.Post("/api/users/deposit", s.deposit)   // depósito
	r.Get("/api/rounds/current", s.current)   // snapshot da rodada
	r.Get("/api/bets", s.listBets)            // apostas recentes
	r.Post("/api/bets", s.placeBet)           // criar aposta
	r.Post("/api/bets/cashout", s.cashout)    // liquidar aposta ativa
	r.Get("/ws", s.hub.HandleWS)              // observadores
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError traduz a taxonomia do ledger para os códigos estáveis da API.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrSessionExpired):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrUserNotFound), errors.Is(err, ledger.ErrNoActiveBet):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrBettingClosed), errors.Is(err, ledger.ErrRoundNotFlying):
		status = http.StatusConflict
	default:
		// falha de colaborador (banco/bus), nunca de regra de negócio
		s.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
