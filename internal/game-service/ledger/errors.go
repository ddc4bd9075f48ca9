package ledger

import "errors"

// Taxonomia de erros de negócio. O gateway HTTP traduz cada um num status
// estável; nenhum é retentado automaticamente.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrSessionExpired    = errors.New("session expired")
	ErrUserNotFound      = errors.New("unknown user")
	ErrBettingClosed     = errors.New("betting window closed")
	ErrRoundNotFlying    = errors.New("round not flying")
	ErrNoActiveBet       = errors.New("no active bet")
)
