package dto

type LoginRequest struct {
	Username       string  `json:"username"`
	InitialDeposit float64 `json:"initialDeposit"`
}

type DepositRequest struct {
	Username string  `json:"username"`
	Amount   float64 `json:"amount"`
}

type PlaceBetRequest struct {
	Username string  `json:"username"`
	Amount   float64 `json:"amount"`
}

type CashoutRequest struct {
	Username string `json:"username"`
}
