package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/game-service/broadcast"
	"github.com/radieske/crash-game-platform/internal/game-service/engine"
	httpapi "github.com/radieske/crash-game-platform/internal/game-service/http"
	"github.com/radieske/crash-game-platform/internal/game-service/ledger"
	"github.com/radieske/crash-game-platform/internal/game-service/repo"
	"github.com/radieske/crash-game-platform/internal/game-service/roundcache"
	"github.com/radieske/crash-game-platform/internal/game-service/ws"
	"github.com/radieske/crash-game-platform/internal/shared/cache"
	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/db"
	"github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("game-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.Bool("engine", cfg.EngineEnabled))

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (bus de broadcast + cache de snapshot)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (stream de liquidação)
	settleWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettlements)
	defer settleWriter.Close()

	// deps
	store := repo.NewPostgres(pg)
	rcache := roundcache.New(rdb)
	fan := broadcast.New(log, rdb, cfg.RedisPubSubChannel, rcache, settleWriter)

	// métricas do jogo
	roundsOpened := promauto.NewCounter(prometheus.CounterOpts{
		Name: "crash_rounds_opened_total",
		Help: "Rodadas abertas por esta instância.",
	})
	roundsCrashed := promauto.NewCounter(prometheus.CounterOpts{
		Name: "crash_rounds_crashed_total",
		Help: "Rodadas encerradas em crash por esta instância.",
	})
	betsPlaced := promauto.NewCounter(prometheus.CounterOpts{
		Name: "crash_bets_placed_total",
		Help: "Apostas aceitas.",
	})
	cashouts := promauto.NewCounter(prometheus.CounterOpts{
		Name: "crash_cashouts_total",
		Help: "Cashouts liquidados.",
	})
	publishErrors := promauto.NewCounter(prometheus.CounterOpts{
		Name: "crash_broadcast_errors_total",
		Help: "Falhas de publicação no bus de broadcast.",
	})
	fan.OnPublishError = publishErrors.Inc

	eng := engine.New(log, engine.Config{
		BettingWindow: cfg.BettingWindow,
		EngineStep:    cfg.EngineStep,
		TickInterval:  cfg.TickInterval,
		SettlePause:   cfg.SettlePause,
		Cooldown:      cfg.Cooldown,
	}, store, fan)
	eng.OnRoundOpened = roundsOpened.Inc
	eng.OnRoundCrashed = roundsCrashed.Inc

	svc := ledger.New(log, store, eng, fan)
	svc.OnBetPlaced = betsPlaced.Inc
	svc.OnCashout = cashouts.Inc

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// hub WS alimentado pelo canal Redis: eventos de qualquer processo chegam aqui
	hub := ws.NewHub(func(*http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "crash_ws_connections",
		Help: "Conexões WebSocket ativas nesta instância.",
	}, func() float64 { return float64(hub.Count()) })

	// HTTP público
	api := httpapi.NewServer(log, svc, eng, rcache, hub)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// metrics/health
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.PingContext(r.Context()); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, metricsMux)
	}()

	// exatamente uma instância roda o motor por jogo lógico; réplicas servem
	// leitura e WebSocket a partir do bus
	if cfg.EngineEnabled {
		eng.Start(ctx)
		defer eng.Stop()
	} else {
		log.Info("engine disabled, read-only replica")
	}

	log.Info("game-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
