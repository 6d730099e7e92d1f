package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/messaging/kafka"
)

// publishers — получатели событий outbox worker.
type publishers struct {
	events   domain.OutboxPublisher
	dlq      domain.OutboxPublisher
	producer *kafka.Producer
}

// initPublishers подключается к Kafka, если заданы брокеры. Без брокеров
// или при ошибке подключения события только логируются, сервис продолжает работу.
func initPublishers(cfg Config, logger *log.Entry) publishers {
	fallback := publishers{events: logPublisher{logger: logger.WithField("layer", "outbox-log")}}
	if len(cfg.KafkaBrokers) == 0 {
		return fallback
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers})
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return fallback
	}
	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

	return publishers{
		events:   kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		dlq:      kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic),
		producer: producer,
	}
}

// close закрывает Kafka producer, если он был создан.
func (p publishers) close(logger *log.Entry) {
	if p.producer == nil {
		return
	}
	if err := p.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

// logPublisher пишет события в лог, когда брокер не настроен.
type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_id":     event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Debug("outbox event")
	return nil
}
