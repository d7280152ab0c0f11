// Package main runs the BrewUp sales scenario against a configured event store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/cannahum/cqrs-lite/eventbus"
	"github.com/cannahum/cqrs-lite/eventsourcing"
	"github.com/cannahum/cqrs-lite/eventstore"
	"github.com/cannahum/cqrs-lite/examples/sales"
)

// Config is read from BREWUP_* variables; the DynamoDB store reads EVENTSTORE_*.
type Config struct {
	Store      string `envconfig:"STORE" default:"local"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"console"`
	QueueURL   string `envconfig:"QUEUE_URL"`
	MaxRetries uint64 `envconfig:"MAX_RETRIES" default:"3"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("BREWUP", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("brewup failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	serializer := sales.NewSerializer()

	store, storeConf, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var opts []eventsourcing.RepositoryOption
	opts = append(opts, eventsourcing.WithLogger(logger))
	if cfg.QueueURL != "" {
		awsCfg, err := eventstore.AWSConfig(ctx, storeConf)
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		publisher := eventbus.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.QueueURL, serializer.Serializer(),
			eventbus.WithLogger(logger))
		opts = append(opts, eventsourcing.WithObservers(publisher))
		logger.Info().Str("queue_url", cfg.QueueURL).Msg("publishing events")
	}
	repo := eventsourcing.NewRepository(sales.NewSalesOrder, store, serializer, opts...)

	builder := eventsourcing.NewCommandDispatcherBuilder().WithLogger(logger)
	if err := sales.RegisterHandlers(builder, repo, logger, cfg.MaxRetries); err != nil {
		return err
	}
	return scenario(ctx, builder.Build(), repo, logger)
}

func openStore(ctx context.Context, cfg Config, logger zerolog.Logger) (eventstore.EventStore, eventstore.DynamoDBConfig, error) {
	conf, err := eventstore.LoadDynamoDBConfig("EVENTSTORE")
	if err != nil {
		return nil, conf, fmt.Errorf("event store configuration: %w", err)
	}
	switch cfg.Store {
	case "local":
		logger.Info().Msg("using in-memory event store")
		return eventstore.GetLocalStore(), conf, nil
	case "dynamodb":
		store, err := eventstore.NewStoreFromConfig(ctx, conf, eventstore.WithDynamoDBLogger(logger))
		if err != nil {
			return nil, conf, fmt.Errorf("dynamodb store: %w", err)
		}
		logger.Info().Str("table", conf.TableName).Str("region", conf.Region).Msg("using dynamodb event store")
		return store, conf, nil
	default:
		return nil, conf, fmt.Errorf("unknown store %q, want local or dynamodb", cfg.Store)
	}
}

// scenario creates, prepares and closes SO-001, then shows that closing again changes nothing
// and preparing a closed order is rejected.
func scenario(ctx context.Context, d *eventsourcing.CommandDispatcher, repo *sales.Repository, logger zerolog.Logger) error {
	who := eventsourcing.NewAccount("brewup-cli", "BrewUp CLI")
	id := sales.NewSalesOrderID()

	beer, err := sales.NewBeerName("IPA")
	if err != nil {
		return err
	}
	qty, err := sales.NewQuantity(24)
	if err != nil {
		return err
	}

	commands := []eventsourcing.Command{
		&sales.CreateOrder{
			CommandModel: eventsourcing.NewCommandModel(id, who),
			Number:       sales.NewSalesOrderNumber("SO-001"),
			Beer:         beer,
			Quantity:     qty,
			UnitPrice:    sales.NewPrice(99.99, "EUR"),
		},
		&sales.PrepareOrder{CommandModel: eventsourcing.NewCommandModel(id, who)},
		&sales.CloseOrder{CommandModel: eventsourcing.NewCommandModel(id, who)},
		&sales.CloseOrder{CommandModel: eventsourcing.NewCommandModel(id, who)},
	}
	for _, c := range commands {
		if err := d.Send(ctx, c); err != nil {
			return err
		}
	}

	err = d.Send(ctx, &sales.PrepareOrder{CommandModel: eventsourcing.NewCommandModel(id, who)})
	if !errors.Is(err, eventsourcing.ErrDomainRuleViolation) {
		return fmt.Errorf("preparing a closed order: got %v", err)
	}
	logger.Info().Err(err).Msg("closed order rejected prepare")

	order, err := repo.Load(ctx, id)
	if err != nil {
		return err
	}
	logger.Info().
		Str("id", id.IDValue()).
		Str("number", order.Number().String()).
		Str("status", string(order.Status())).
		Int("version", order.Version()).
		Float64("unit_price", order.UnitPrice().Amount()).
		Msg("scenario complete")
	return nil
}

func setupLogger(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	switch cfg.LogFormat {
	case "json":
		logger = zerolog.New(os.Stdout)
	default:
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger.Level(level).With().Timestamp().Str("service", "brewup").Logger()
}
