package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub gerencia as conexões WebSocket dos observadores do jogo. Todo evento do
// canal de broadcast vai para todas as conexões; não há assinatura por tipo —
// o observador vê o jogo inteiro.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão: registra, responde a
// pings e descarta no primeiro erro de leitura. Quem entra atrasado converge
// pelo round:tick e pelo fetch de snapshot na API.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			h.mu.Lock()
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
			h.mu.Unlock()
		}
	}

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// Broadcast envia o payload bruto para todas as conexões. Entrega é
// at-most-once por processo: conexão lenta que falhar perde o evento e se
// recupera no próximo tick.
func (h *Hub) Broadcast(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

// Count devolve o número de conexões ativas (métrica).
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
