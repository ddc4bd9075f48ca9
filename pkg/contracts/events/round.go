package events

import "time"

// Eventos de ciclo de vida da rodada, publicados no canal Redis de broadcast.
// O campo Now carrega o relógio do servidor para os countdowns do cliente.

type RoundOpen struct {
	Code          string    `json:"code"`
	Phase         string    `json:"phase"`
	OpenedAt      time.Time `json:"openedAt"`
	BettingEndsAt time.Time `json:"bettingEndsAt"`
	Multiplier    float64   `json:"multiplier"`
	Now           time.Time `json:"now"`
}

type RoundTick struct {
	Code          string    `json:"code"`
	Phase         string    `json:"phase"`
	Multiplier    float64   `json:"multiplier"`
	OpenedAt      time.Time `json:"openedAt"`
	BettingEndsAt time.Time `json:"bettingEndsAt"`
	Now           time.Time `json:"now"`
}

type RoundCrash struct {
	Code            string    `json:"code"`
	CrashMultiplier float64   `json:"crashMultiplier"`
	CrashedAt       time.Time `json:"crashedAt"`
}

type RoundClosed struct {
	Code       string    `json:"code"`
	NextOpenAt time.Time `json:"nextOpenAt"`
	Now        time.Time `json:"now"`
}
