package events

import "time"

type BetNew struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	RoundCode string    `json:"roundCode"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type BetCashed struct {
	ID                string  `json:"id"`
	User              string  `json:"user"`
	RoundCode         string  `json:"roundCode"`
	CashoutMultiplier float64 `json:"cashoutMultiplier"`
	Payout            float64 `json:"payout"`
}

type UserUpdate struct {
	Username     string    `json:"username"`
	Balance      float64   `json:"balance"`
	SessionEndAt time.Time `json:"sessionEndAt"`
	RemainingMs  int64     `json:"remainingMs"`
}
