package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/game-service/money"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// Fase da rodada. As transições são sempre betting -> flying -> crashed -> closed,
// dirigidas por timer, nunca por requisição externa.
type Phase string

const (
	PhaseBetting Phase = "betting"
	PhaseFlying  Phase = "flying"
	PhaseCrashed Phase = "crashed"
	PhaseClosed  Phase = "closed"
)

// ErrNotFlying indica que a rodada corrente não estava em voo no início do
// processamento de um cashout.
var ErrNotFlying = errors.New("round not flying")

// Snapshot é a visão imutável da rodada corrente entregue a quem consulta o
// motor. Nunca exponha o estado interno por ponteiro.
type Snapshot struct {
	Code          string
	Phase         Phase
	MultiplierH   int64 // multiplicador corrente em centésimos
	OpenedAt      time.Time
	BettingEndsAt time.Time
}

// Store é o colaborador de persistência do motor. Falhas aqui são logadas e
// nunca param o ciclo de rodadas.
type Store interface {
	InsertRound(ctx context.Context, code string, openedAt, bettingEndsAt time.Time) error
	SetRoundPhase(ctx context.Context, code, phase string) error
	SetRoundCrashed(ctx context.Context, code string, crashMultiplierH int64, crashedAt time.Time) error
	SetRoundClosed(ctx context.Context, code string, closedAt time.Time) error
	MarkPlacedBetsLost(ctx context.Context, code string) (int64, error)
}

// Fanout replica os eventos de rodada para os observadores (via bus).
type Fanout interface {
	RoundOpen(ctx context.Context, e events.RoundOpen) error
	RoundTick(ctx context.Context, e events.RoundTick) error
	RoundCrash(ctx context.Context, e events.RoundCrash) error
	RoundClosed(ctx context.Context, e events.RoundClosed) error
}

type Config struct {
	BettingWindow time.Duration // janela de apostas (default 5s)
	EngineStep    time.Duration // passo de recálculo do multiplicador (default 80ms)
	TickInterval  time.Duration // cadência do round:tick (default 200ms)
	SettlePause   time.Duration // pausa entre crash e closed (default 600ms)
	Cooldown      time.Duration // espera entre rodadas (default 20s)
}

func (c Config) withDefaults() Config {
	if c.BettingWindow <= 0 {
		c.BettingWindow = 5 * time.Second
	}
	if c.EngineStep <= 0 {
		c.EngineStep = 80 * time.Millisecond
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 200 * time.Millisecond
	}
	if c.SettlePause <= 0 {
		c.SettlePause = 600 * time.Millisecond
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 20 * time.Second
	}
	return c
}

type roundState struct {
	code          string
	phase         Phase
	multH         int64
	crashTargetH  int64 // escondido até o crash
	openedAt      time.Time
	bettingEndsAt time.Time
	flightStart   time.Time
	stopTick      chan struct{}
	stopFlight    chan struct{}
}

// Engine é o dono único da rodada corrente: fases, multiplicador e timers.
// Todos os timers são amarrados ao code da rodada para a qual foram armados;
// um timer de rodada superada vira no-op.
type Engine struct {
	log   *zap.Logger
	cfg   Config
	store Store
	fan   Fanout

	// SampleCrashH amostra o alvo de crash em centésimos. Substituível em teste.
	SampleCrashH func() int64

	// Callbacks de métricas, ligados a counters no main.
	OnRoundOpened  func()
	OnRoundCrashed func()

	ctx context.Context

	// settleMu serializa cashout contra a transição de crash (e o bulk de
	// apostas perdidas). mu protege só o estado da rodada; nunca segure mu
	// durante I/O.
	settleMu sync.Mutex
	mu       sync.Mutex
	cur      *roundState

	flyTimer   *time.Timer
	closeTimer *time.Timer
	nextTimer  *time.Timer
}

func New(log *zap.Logger, cfg Config, store Store, fan Fanout) *Engine {
	return &Engine{
		log:          log,
		cfg:          cfg.withDefaults(),
		store:        store,
		fan:          fan,
		SampleCrashH: sampleCrashH,
		ctx:          context.Background(),
	}
}

// sampleCrashH amostra o alvo numa distribuição de cauda pesada, viciada em
// multiplicadores baixos e limitada a [1.00, 10.00]: min(10, 1 + 1/(4u)).
func sampleCrashH() int64 {
	u := math.Max(0.01, rand.Float64())
	m := math.Min(10, 1+1/(u*4))
	return int64(math.Round(m * 100))
}

// MultiplierAt devolve o multiplicador de voo após elapsed segundos,
// 1.018^(10t), já quantizado em centésimos.
func MultiplierAt(elapsed float64) int64 {
	g := math.Pow(1.018, elapsed*10)
	m := int64(math.Round(g * 100))
	if m < 100 {
		m = 100
	}
	return m
}

// Start inicia o ciclo de rodadas. Deve haver exatamente uma instância com o
// motor ativo por jogo lógico.
func (e *Engine) Start(ctx context.Context) {
	e.ctx = ctx
	e.startRound()
}

// Stop cancela timers e descarta a rodada corrente.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimersLocked()
	e.cur = nil
}

// Current devolve uma cópia do estado da rodada corrente.
func (e *Engine) Current() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.cur
	if r == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		Code:          r.code,
		Phase:         r.phase,
		MultiplierH:   r.multH,
		OpenedAt:      r.openedAt,
		BettingEndsAt: r.bettingEndsAt,
	}, true
}

// WithFlying executa fn dentro da seção crítica de liquidação da rodada.
// Quem decide a disputa cashout × crash é a fase observada aqui: se a rodada
// estava em voo no início do processamento, fn roda antes de qualquer bulk de
// apostas perdidas.
func (e *Engine) WithFlying(fn func(Snapshot) error) error {
	e.settleMu.Lock()
	defer e.settleMu.Unlock()
	snap, ok := e.Current()
	if !ok || snap.Phase != PhaseFlying {
		return ErrNotFlying
	}
	return fn(snap)
}

func (e *Engine) startRound() {
	if e.ctx.Err() != nil {
		return
	}
	now := time.Now()
	r := &roundState{
		code:          fmt.Sprintf("R%d", now.UnixMilli()),
		phase:         PhaseBetting,
		multH:         100,
		openedAt:      now,
		bettingEndsAt: now.Add(e.cfg.BettingWindow),
		stopTick:      make(chan struct{}),
	}

	e.mu.Lock()
	e.stopTimersLocked()
	e.cur = r
	code := r.code
	e.flyTimer = time.AfterFunc(e.cfg.BettingWindow, func() { e.startFlying(code) })
	e.mu.Unlock()

	if err := e.store.InsertRound(e.ctx, r.code, r.openedAt, r.bettingEndsAt); err != nil {
		e.log.Warn("round insert failed", zap.String("round", r.code), zap.Error(err))
	}
	if err := e.fan.RoundOpen(e.ctx, events.RoundOpen{
		Code:          r.code,
		Phase:         string(PhaseBetting),
		OpenedAt:      r.openedAt,
		BettingEndsAt: r.bettingEndsAt,
		Multiplier:    1.0,
		Now:           time.Now(),
	}); err != nil {
		e.log.Warn("round open broadcast failed", zap.String("round", r.code), zap.Error(err))
	}
	if e.OnRoundOpened != nil {
		e.OnRoundOpened()
	}

	go e.tickLoop(code, r.stopTick)

	e.log.Info("round opened",
		zap.String("round", r.code),
		zap.Time("bettingEndsAt", r.bettingEndsAt),
	)
}

func (e *Engine) startFlying(code string) {
	if e.ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	r := e.cur
	if r == nil || r.code != code || r.phase != PhaseBetting {
		e.mu.Unlock()
		return
	}
	r.phase = PhaseFlying
	r.flightStart = time.Now()
	r.crashTargetH = e.SampleCrashH()
	r.stopFlight = make(chan struct{})
	stop := r.stopFlight
	e.mu.Unlock()

	if err := e.store.SetRoundPhase(e.ctx, code, string(PhaseFlying)); err != nil {
		e.log.Warn("round phase update failed", zap.String("round", code), zap.Error(err))
	}

	go e.flightLoop(code, stop)

	e.log.Info("round flying", zap.String("round", code))
}

func (e *Engine) flightLoop(code string, stop <-chan struct{}) {
	t := time.NewTicker(e.cfg.EngineStep)
	defer t.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-stop:
			return
		case <-t.C:
		}

		e.mu.Lock()
		r := e.cur
		if r == nil || r.code != code || r.phase != PhaseFlying {
			e.mu.Unlock()
			return
		}
		multH := MultiplierAt(time.Since(r.flightStart).Seconds())
		crashed := multH >= r.crashTargetH
		if crashed {
			multH = r.crashTargetH
		}
		r.multH = multH
		e.mu.Unlock()

		if crashed {
			e.crash(code)
			return
		}
	}
}

// crash fecha o voo: marca a fase, derruba as apostas ainda abertas e só
// então emite o evento. Tudo sob a seção de liquidação, para que nenhum
// cashout observe "flying" e dispute a mesma aposta com o bulk de perdas.
func (e *Engine) crash(code string) {
	e.settleMu.Lock()

	e.mu.Lock()
	r := e.cur
	if r == nil || r.code != code || r.phase != PhaseFlying {
		e.mu.Unlock()
		e.settleMu.Unlock()
		return
	}
	r.phase = PhaseCrashed
	r.multH = r.crashTargetH
	crashH := r.crashTargetH
	crashedAt := time.Now()
	e.mu.Unlock()

	if err := e.store.SetRoundCrashed(e.ctx, code, crashH, crashedAt); err != nil {
		e.log.Warn("round crash update failed", zap.String("round", code), zap.Error(err))
	}
	if n, err := e.store.MarkPlacedBetsLost(e.ctx, code); err != nil {
		e.log.Warn("mark lost failed", zap.String("round", code), zap.Error(err))
	} else if n > 0 {
		e.log.Debug("bets lost", zap.String("round", code), zap.Int64("count", n))
	}
	e.settleMu.Unlock()

	if err := e.fan.RoundCrash(e.ctx, events.RoundCrash{
		Code:            code,
		CrashMultiplier: money.MultUnits(crashH),
		CrashedAt:       crashedAt,
	}); err != nil {
		e.log.Warn("round crash broadcast failed", zap.String("round", code), zap.Error(err))
	}
	if e.OnRoundCrashed != nil {
		e.OnRoundCrashed()
	}

	e.mu.Lock()
	if e.cur != nil && e.cur.code == code {
		e.closeTimer = time.AfterFunc(e.cfg.SettlePause, func() { e.closeRound(code) })
	}
	e.mu.Unlock()

	e.log.Info("round crashed",
		zap.String("round", code),
		zap.Float64("multiplier", money.MultUnits(crashH)),
	)
}

func (e *Engine) closeRound(code string) {
	if e.ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	r := e.cur
	if r == nil || r.code != code || r.phase != PhaseCrashed {
		e.mu.Unlock()
		return
	}
	r.phase = PhaseClosed
	if r.stopTick != nil {
		close(r.stopTick)
		r.stopTick = nil
	}
	closedAt := time.Now()
	nextOpenAt := closedAt.Add(e.cfg.Cooldown)
	e.nextTimer = time.AfterFunc(e.cfg.Cooldown, e.startRound)
	e.mu.Unlock()

	if err := e.store.SetRoundClosed(e.ctx, code, closedAt); err != nil {
		e.log.Warn("round close update failed", zap.String("round", code), zap.Error(err))
	}
	if err := e.fan.RoundClosed(e.ctx, events.RoundClosed{
		Code:       code,
		NextOpenAt: nextOpenAt,
		Now:        time.Now(),
	}); err != nil {
		e.log.Warn("round closed broadcast failed", zap.String("round", code), zap.Error(err))
	}

	e.log.Info("round closed", zap.String("round", code), zap.Time("nextOpenAt", nextOpenAt))
}

// tickLoop reemite fase/multiplicador numa cadência fixa até a rodada fechar,
// pra observador atrasado convergir em no máximo um intervalo.
func (e *Engine) tickLoop(code string, stop <-chan struct{}) {
	t := time.NewTicker(e.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-stop:
			return
		case <-t.C:
		}

		snap, ok := e.Current()
		if !ok || snap.Code != code {
			return
		}
		if err := e.fan.RoundTick(e.ctx, events.RoundTick{
			Code:          snap.Code,
			Phase:         string(snap.Phase),
			Multiplier:    money.MultUnits(snap.MultiplierH),
			OpenedAt:      snap.OpenedAt,
			BettingEndsAt: snap.BettingEndsAt,
			Now:           time.Now(),
		}); err != nil {
			e.log.Warn("round tick broadcast failed", zap.String("round", code), zap.Error(err))
		}
	}
}

// stopTimersLocked precisa ser chamado com mu em mãos. Para os timers da
// rodada anterior antes de armar os da nova.
func (e *Engine) stopTimersLocked() {
	if e.flyTimer != nil {
		e.flyTimer.Stop()
		e.flyTimer = nil
	}
	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}
	if e.nextTimer != nil {
		e.nextTimer.Stop()
		e.nextTimer = nil
	}
	if e.cur != nil {
		if e.cur.stopTick != nil {
			close(e.cur.stopTick)
			e.cur.stopTick = nil
		}
		if e.cur.stopFlight != nil {
			close(e.cur.stopFlight)
			e.cur.stopFlight = nil
		}
	}
}
