package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// Auditor é a escrita na trilha de auditoria. Implementado por
// repository.AuditRepo.
type Auditor interface {
	InsertPlaced(ctx context.Context, e events.BetSettlement) error
	MarkCashed(ctx context.Context, e events.BetSettlement) error
	MarkRoundLost(ctx context.Context, roundCode string, multH int64) (int64, error)
}

// Consumer consome registros de liquidação do Kafka e mantém a auditoria no
// banco. Mensagem indecifrável vai pra DLQ; erro de banco só loga e faz uma
// pausa antes da próxima — a trilha é best-effort, at-most-once por registro.
type Consumer struct {
	Log    *zap.Logger
	Reader *kafka.Reader
	Repo   Auditor
	DLQ    *kafka.Writer // opcional

	OnConsumed func()       // métricas (counter++)
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			if c.OnError != nil {
				c.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		var rec events.BetSettlement
		if err := json.Unmarshal(m.Value, &rec); err != nil || rec.Kind == "" {
			c.Log.Warn("invalid settlement record", zap.Error(err))
			if c.OnError != nil {
				c.OnError("decode")
			}
			c.toDLQ(ctx, m)
			continue
		}

		if err := c.Handle(ctx, rec); err != nil {
			c.Log.Warn("settlement apply failed",
				zap.String("kind", rec.Kind),
				zap.String("betId", rec.BetID),
				zap.Error(err),
			)
			if c.OnError != nil {
				c.OnError("apply")
			}
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// Handle aplica um registro de liquidação na auditoria.
func (c *Consumer) Handle(ctx context.Context, rec events.BetSettlement) error {
	switch rec.Kind {
	case events.SettlementBetPlaced:
		return c.Repo.InsertPlaced(ctx, rec)
	case events.SettlementBetCashed:
		return c.Repo.MarkCashed(ctx, rec)
	case events.SettlementRoundCrashed:
		n, err := c.Repo.MarkRoundLost(ctx, rec.RoundCode, rec.MultiplierH)
		if err != nil {
			return err
		}
		if n > 0 {
			c.Log.Debug("audit bets lost", zap.String("round", rec.RoundCode), zap.Int64("count", n))
		}
		return nil
	default:
		return fmt.Errorf("unknown settlement kind %q", rec.Kind)
	}
}

func (c *Consumer) toDLQ(ctx context.Context, m kafka.Message) {
	if c.DLQ == nil {
		return
	}
	if err := skafka.WriteJSON(ctx, c.DLQ, string(m.Key), m.Value); err != nil {
		c.Log.Warn("dlq publish failed", zap.Error(err))
	}
}
