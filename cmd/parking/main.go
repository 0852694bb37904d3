package main

import (
	"context"
	"errors"

	"parkwatch/internal/events"
	lotshandler "parkwatch/internal/lots/handler"
	lotsrepository "parkwatch/internal/lots/repository"
	lotsservice "parkwatch/internal/lots/service"
	lotsvalidator "parkwatch/internal/lots/validator"
	"parkwatch/internal/realtime"
	reviewshandler "parkwatch/internal/reviews/handler"
	reviewsrepository "parkwatch/internal/reviews/repository"
	reviewsservice "parkwatch/internal/reviews/service"
	reviewsvalidator "parkwatch/internal/reviews/validator"
	"parkwatch/internal/sensors"
	"parkwatch/pkg/app"
	"parkwatch/pkg/config"
	"parkwatch/pkg/kafka"
	kafka_config "parkwatch/pkg/kafka/config"
	kafka_middleware "parkwatch/pkg/kafka/middleware"
)

const (
	ServiceName = "parking"

	sensorConsumerGroup = "parking-sensor-ingest"
	sensorDLQTopic      = "parking.sensor-readings.dlq"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Parking service")

	hub := realtime.NewHub(cfg.HubClientBacklog, cfg.Log)

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, events.TopicAvailabilityEvents, "", cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	mirror := events.NewAvailabilityMirror(producer, cfg.Log)

	lotRepo := lotsrepository.NewMongoParkingLotRepository(cfg)
	reviewRepo := reviewsrepository.NewMongoReviewRepository(cfg)

	aggregator := reviewsservice.NewRatingAggregator(reviewRepo, lotRepo, cfg)
	aggregator.Start()

	lotService := lotsservice.NewParkingLotService(
		lotRepo,
		lotsvalidator.NewParkingLotValidator(cfg.Log),
		hub,
		mirror,
		reviewRepo,
		cfg,
	)
	reviewService := reviewsservice.NewReviewService(
		reviewRepo,
		lotRepo,
		aggregator,
		reviewsvalidator.NewReviewValidator(cfg.Log),
		cfg,
	)

	ingestor := sensors.NewIngestor(lotService, cfg.Log)
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		events.TopicSensorReadings,
		sensorConsumerGroup,
		sensorDLQTopic,
		ingestor.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Sensor consumer stopped", "error", err)
		}
	}()

	cfg.Log.Info("Parking service initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		realtime.NewHandler(hub, cfg.Log),
		lotshandler.NewParkingLotHandler(lotService, cfg.Log),
		reviewshandler.NewReviewHandler(reviewService, cfg.Log),
	)
	serverApp.OnShutdown(func() {
		stopConsumer()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
		hub.Shutdown()
		aggregator.Stop()
		cfg.GracefulShutdown()
	})
	serverApp.Run()
}
