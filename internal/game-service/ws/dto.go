package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket.
// Só "ping" tem efeito; o resto é ignorado.
type ClientMsg struct {
	Type string `json:"type"`
}
