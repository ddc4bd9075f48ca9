package money

import (
	"errors"
	"math"
)

// Dinheiro trafega internamente como int64 em centavos; o multiplicador como
// int64 em centésimos (180 = 1.80x). Nada de float em aritmética de saldo.

var ErrInvalidAmount = errors.New("invalid amount")

// ToCents converte um valor em unidades de moeda (vindo do JSON) para centavos.
// Rejeita NaN, infinito e negativos.
func ToCents(units float64) (int64, error) {
	if math.IsNaN(units) || math.IsInf(units, 0) || units < 0 {
		return 0, ErrInvalidAmount
	}
	return int64(math.Round(units * 100)), nil
}

// Units converte centavos de volta para unidades, só para serialização.
func Units(cents int64) float64 {
	return float64(cents) / 100
}

// MultUnits converte um multiplicador em centésimos para a forma decimal.
func MultUnits(multH int64) float64 {
	return float64(multH) / 100
}

// Payout calcula o prêmio de um cashout: stake × multiplicador, truncado
// em direção a zero. A divisão inteira garante o arredondamento a favor da
// casa, igual em qualquer processo.
func Payout(stakeCents, multH int64) int64 {
	return stakeCents * multH / 100
}
