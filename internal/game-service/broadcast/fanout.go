package broadcast

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/game-service/money"
	"github.com/radieske/crash-game-platform/internal/game-service/repo"
	"github.com/radieske/crash-game-platform/internal/game-service/roundcache"
	skafka "github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// TTL do snapshot de rodada no Redis; renovado a cada tick.
const snapshotTTL = 30 * time.Second

// Fanout publica os eventos tipados do jogo no canal Redis compartilhado.
// Todo processo (dono do motor ou não) assina o mesmo canal e repassa ao seu
// hub WebSocket local, então um evento emitido aqui chega a observadores de
// qualquer processo. O Kafka é um canal lateral de liquidação/auditoria,
// best-effort, nunca bloqueia o jogo.
type Fanout struct {
	log     *zap.Logger
	rdb     *redis.Client
	channel string
	cache   *roundcache.Cache
	settle  *skafka.Writer // opcional

	OnPublishError func() // métrica
}

func New(log *zap.Logger, rdb *redis.Client, channel string, cache *roundcache.Cache, settle *skafka.Writer) *Fanout {
	return &Fanout{log: log, rdb: rdb, channel: channel, cache: cache, settle: settle}
}

func (f *Fanout) publish(ctx context.Context, typ string, payload any) error {
	b, err := json.Marshal(events.Envelope{Type: typ, Payload: payload})
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, f.channel, b).Err(); err != nil {
		if f.OnPublishError != nil {
			f.OnPublishError()
		}
		return err
	}
	return nil
}

// settleRecord envia um registro ao tópico de liquidação. Falha só gera log.
func (f *Fanout) settleRecord(ctx context.Context, key string, rec events.BetSettlement) {
	if f.settle == nil {
		return
	}
	rec.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(rec)
	if err := skafka.WriteJSON(ctx, f.settle, key, b); err != nil {
		f.log.Warn("settlement publish failed", zap.String("kind", rec.Kind), zap.Error(err))
	}
}

func (f *Fanout) RoundOpen(ctx context.Context, e events.RoundOpen) error {
	f.cacheSnapshot(ctx, events.RoundTick{
		Code:          e.Code,
		Phase:         e.Phase,
		Multiplier:    e.Multiplier,
		OpenedAt:      e.OpenedAt,
		BettingEndsAt: e.BettingEndsAt,
		Now:           e.Now,
	})
	return f.publish(ctx, events.TypeRoundOpen, e)
}

func (f *Fanout) RoundTick(ctx context.Context, e events.RoundTick) error {
	f.cacheSnapshot(ctx, e)
	return f.publish(ctx, events.TypeRoundTick, e)
}

func (f *Fanout) RoundCrash(ctx context.Context, e events.RoundCrash) error {
	f.settleRecord(ctx, e.Code, events.BetSettlement{
		Kind:        events.SettlementRoundCrashed,
		RoundCode:   e.Code,
		MultiplierH: int64(math.Round(e.CrashMultiplier * 100)),
	})
	return f.publish(ctx, events.TypeRoundCrash, e)
}

func (f *Fanout) RoundClosed(ctx context.Context, e events.RoundClosed) error {
	// atualiza a fase no snapshot cacheado; o resto fica como o último tick
	var snap events.RoundTick
	if ok, err := f.cache.GetCurrent(ctx, &snap); err == nil && ok && snap.Code == e.Code {
		snap.Phase = "closed"
		snap.Now = e.Now
		f.cacheSnapshot(ctx, snap)
	}
	return f.publish(ctx, events.TypeRoundClosed, e)
}

func (f *Fanout) BetNew(ctx context.Context, b repo.Bet) error {
	f.settleRecord(ctx, b.ID, events.BetSettlement{
		Kind:        events.SettlementBetPlaced,
		BetID:       b.ID,
		Username:    b.Username,
		RoundCode:   b.RoundCode,
		AmountCents: b.AmountCents,
	})
	return f.publish(ctx, events.TypeBetNew, events.BetNew{
		ID:        b.ID,
		User:      b.Username,
		RoundCode: b.RoundCode,
		Amount:    money.Units(b.AmountCents),
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	})
}

func (f *Fanout) BetCashed(ctx context.Context, b repo.Bet) error {
	var multH, payout int64
	if b.CashoutMultiplierH != nil {
		multH = *b.CashoutMultiplierH
	}
	if b.PayoutCents != nil {
		payout = *b.PayoutCents
	}
	f.settleRecord(ctx, b.ID, events.BetSettlement{
		Kind:        events.SettlementBetCashed,
		BetID:       b.ID,
		Username:    b.Username,
		RoundCode:   b.RoundCode,
		AmountCents: b.AmountCents,
		MultiplierH: multH,
		PayoutCents: payout,
	})
	return f.publish(ctx, events.TypeBetCashed, events.BetCashed{
		ID:                b.ID,
		User:              b.Username,
		RoundCode:         b.RoundCode,
		CashoutMultiplier: money.MultUnits(multH),
		Payout:            money.Units(payout),
	})
}

func (f *Fanout) UserUpdate(ctx context.Context, a repo.Account) error {
	remaining := time.Until(a.SessionEndAt).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return f.publish(ctx, events.TypeUserUpdate, events.UserUpdate{
		Username:     a.Username,
		Balance:      money.Units(a.BalanceCents),
		SessionEndAt: a.SessionEndAt,
		RemainingMs:  remaining,
	})
}

func (f *Fanout) cacheSnapshot(ctx context.Context, snap events.RoundTick) {
	if err := f.cache.SetCurrent(ctx, snap, snapshotTTL); err != nil {
		f.log.Warn("round snapshot cache failed", zap.Error(err))
	}
}
