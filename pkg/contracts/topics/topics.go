package topics

const (
	// Liquidação de apostas (auditoria downstream)
	BetSettlements = "bet_settlements"

	// DLQs
	BetSettlementsDLQ = "bet_settlements_dlq"
)
