package dto

import (
	"time"

	"github.com/radieske/crash-game-platform/internal/game-service/money"
	"github.com/radieske/crash-game-platform/internal/game-service/repo"
)

type SessionResponse struct {
	Username     string    `json:"username"`
	Balance      float64   `json:"balance"`
	SessionEndAt time.Time `json:"sessionEndAt"`
	RemainingMs  int64     `json:"remainingMs"`
	Now          time.Time `json:"now"`
}

type RoundResponse struct {
	Code          string    `json:"code"`
	Phase         string    `json:"phase"`
	Multiplier    float64   `json:"multiplier"`
	OpenedAt      time.Time `json:"openedAt"`
	BettingEndsAt time.Time `json:"bettingEndsAt"`
	Now           time.Time `json:"now"`
}

type BetResponse struct {
	ID                string    `json:"id"`
	User              string    `json:"user"`
	RoundCode         string    `json:"roundCode"`
	Amount            float64   `json:"amount"`
	Status            string    `json:"status"`
	CashoutMultiplier *float64  `json:"cashoutMultiplier,omitempty"`
	Payout            *float64  `json:"payout,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// SessionFromAccount monta a resposta de sessão com o relógio do servidor.
func SessionFromAccount(a repo.Account, now time.Time) SessionResponse {
	remaining := a.SessionEndAt.Sub(now).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return SessionResponse{
		Username:     a.Username,
		Balance:      money.Units(a.BalanceCents),
		SessionEndAt: a.SessionEndAt,
		RemainingMs:  remaining,
		Now:          now,
	}
}

// BetFromRepo converte a aposta persistida para o formato de resposta.
func BetFromRepo(b repo.Bet) BetResponse {
	out := BetResponse{
		ID:        b.ID,
		User:      b.Username,
		RoundCode: b.RoundCode,
		Amount:    money.Units(b.AmountCents),
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	}
	if b.CashoutMultiplierH != nil {
		m := money.MultUnits(*b.CashoutMultiplierH)
		out.CashoutMultiplier = &m
	}
	if b.PayoutCents != nil {
		p := money.Units(*b.PayoutCents)
		out.Payout = &p
	}
	return out
}
