package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/radieske/crash-game-platform/internal/game-service/dto"
	"github.com/radieske/crash-game-platform/internal/game-service/money"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// login garante conta e sessão válidas para o username (3 a 32 caracteres).
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 32 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username must have 3-32 chars"})
		return
	}
	cents, err := money.ToCents(req.InitialDeposit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid initial deposit"})
		return
	}

	acct, err := s.svc.EnsureSession(r.Context(), req.Username, cents)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SessionFromAccount(acct, time.Now()))
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username required"})
		return
	}
	cents, err := money.ToCents(req.Amount)
	if err != nil || cents <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	acct, err := s.svc.Deposit(r.Context(), req.Username, cents)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SessionFromAccount(acct, time.Now()))
}

// current responde o snapshot da rodada. Sem motor local (réplica), cai para
// o snapshot compartilhado no Redis; sem rodada nenhuma, responde null.
func (s *Server) current(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if snap, ok := s.rounds.Current(); ok {
		writeJSON(w, http.StatusOK, dto.RoundResponse{
			Code:          snap.Code,
			Phase:         string(snap.Phase),
			Multiplier:    money.MultUnits(snap.MultiplierH),
			OpenedAt:      snap.OpenedAt,
			BettingEndsAt: snap.BettingEndsAt,
			Now:           now,
		})
		return
	}

	var tick events.RoundTick
	if ok, err := s.cache.GetCurrent(r.Context(), &tick); err == nil && ok {
		writeJSON(w, http.StatusOK, dto.RoundResponse{
			Code:          tick.Code,
			Phase:         tick.Phase,
			Multiplier:    tick.Multiplier,
			OpenedAt:      tick.OpenedAt,
			BettingEndsAt: tick.BettingEndsAt,
			Now:           now,
		})
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	bets, err := s.svc.RecentBets(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.BetResponse, 0, len(bets))
	for _, b := range bets {
		out = append(out, dto.BetFromRepo(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username required"})
		return
	}
	cents, err := money.ToCents(req.Amount)
	if err != nil || cents <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	bet, err := s.svc.PlaceBet(r.Context(), req.Username, cents)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.BetFromRepo(bet))
}

func (s *Server) cashout(w http.ResponseWriter, r *http.Request) {
	var req dto.CashoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username required"})
		return
	}

	bet, err := s.svc.CashOut(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetFromRepo(bet))
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
