package events

// Registro publicado no tópico "bet_settlements" para auditoria downstream.
// Kind: bet_placed | bet_cashed | round_crashed
type BetSettlement struct {
	Kind        string `json:"kind"`
	BetID       string `json:"bet_id,omitempty"`
	Username    string `json:"username,omitempty"`
	RoundCode   string `json:"round_code"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	MultiplierH int64  `json:"multiplier_h,omitempty"` // multiplicador em centésimos (x100)
	PayoutCents int64  `json:"payout_cents,omitempty"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

const (
	SettlementBetPlaced    = "bet_placed"
	SettlementBetCashed    = "bet_cashed"
	SettlementRoundCrashed = "round_crashed"
)
