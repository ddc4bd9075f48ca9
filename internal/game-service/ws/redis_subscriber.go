package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// e repassa cada envelope recebido para os clientes WebSocket deste processo.
// É assim que um evento do motor no processo A chega a um observador
// conectado só no processo B.
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				// valida o envelope antes de repassar; payload segue bruto
				var env events.RawEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Type == "" {
					log.Warn("invalid broadcast envelope", zap.Error(err))
					continue
				}
				hub.Broadcast([]byte(msg.Payload))
			}
		}
	}()
}
