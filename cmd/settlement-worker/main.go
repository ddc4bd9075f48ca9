package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/settlement/consumer"
	"github.com/radieske/crash-game-platform/internal/settlement/repository"
	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/db"
	"github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
	"github.com/radieske/crash-game-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres para a trilha de auditoria
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: registros de liquidação do game-service
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettlements, "settlement-worker")
	defer reader.Close()

	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettlementsDLQ)
	defer dlqWriter.Close()

	consumed := promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_records_consumed_total",
		Help: "Registros de liquidação consumidos.",
	})
	errs := promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_errors_total",
		Help: "Erros de processamento por fase.",
	}, []string{"stage"})

	// métricas e health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	c := &consumer.Consumer{
		Log:        log,
		Reader:     reader,
		Repo:       repository.NewAuditRepo(pg),
		DLQ:        dlqWriter,
		OnConsumed: consumed.Inc,
		OnError:    func(stage string) { errs.WithLabelValues(stage).Inc() },
	}

	log.Info("settlement-worker started", zap.String("topic", cfg.TopicBetSettlements))
	if err := c.Run(context.Background()); err != nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
