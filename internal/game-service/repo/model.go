package repo

import "time"

// Status de aposta. Transição única: placed -> cashed ou placed -> lost.
const (
	BetPlaced = "placed"
	BetCashed = "cashed"
	BetLost   = "lost"
)

// Account é a conta persistida no Postgres. Saldo em centavos, nunca negativo.
type Account struct {
	Username     string
	BalanceCents int64
	SessionEndAt time.Time
	CreatedAt    time.Time
}

// SessionExpired diz se a janela de sessão já passou em relação a now.
func (a Account) SessionExpired(now time.Time) bool {
	return a.SessionEndAt.IsZero() || a.SessionEndAt.Before(now)
}

// Bet é a aposta persistida. CashoutMultiplierH e PayoutCents só existem
// quando status = cashed.
type Bet struct {
	ID                 string
	Username           string
	RoundCode          string
	AmountCents        int64
	Status             string
	CashoutMultiplierH *int64
	PayoutCents        *int64
	CreatedAt          time.Time
}
