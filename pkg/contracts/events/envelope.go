package events

import "encoding/json"

// Envelope embala qualquer evento para o canal de broadcast.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RawEnvelope é a visão de leitura do envelope, sem decodificar o payload.
type RawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	TypeRoundOpen   = "round:open"
	TypeRoundTick   = "round:tick"
	TypeRoundCrash  = "round:crash"
	TypeRoundClosed = "round:closed"
	TypeBetNew      = "bet:new"
	TypeBetCashed   = "bet:cashed"
	TypeUserUpdate  = "user:update"
)
