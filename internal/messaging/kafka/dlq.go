package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

const (
	defaultReadLimit   = 100
	defaultIdleTimeout = 2 * time.Second
)

// DeadLetterRecord — запись DLQ с координатами в топике.
type DeadLetterRecord struct {
	Partition int32
	Offset    int64
	Letter    domain.DeadLetter
}

// ReadOptions ограничивает чтение DLQ.
type ReadOptions struct {
	// Limit — максимум записей за вызов (<=0 — 100).
	Limit int
	// IdleTimeout — партиция считается вычитанной, если столько времени нет новых сообщений.
	IdleTimeout time.Duration
	Logger      *log.Entry
}

// ReadDeadLetters читает topic с начала каждой партиции по возрастанию номера.
// Записи, которые не декодируются в domain.DeadLetter, пропускаются.
func ReadDeadLetters(ctx context.Context, consumer sarama.Consumer, topic string, opts ReadOptions) ([]DeadLetterRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultReadLimit
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "kafka-dlq")
	}

	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return nil, fmt.Errorf("list partitions of %s: %w", topic, err)
	}
	partitions = slices.Clone(partitions)
	slices.Sort(partitions)

	var records []DeadLetterRecord
	for _, partition := range partitions {
		if len(records) >= opts.Limit {
			break
		}
		pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return records, fmt.Errorf("consume %s/%d: %w", topic, partition, err)
		}
		records, err = drainPartition(ctx, pc, records, opts)
		if closeErr := pc.Close(); closeErr != nil {
			opts.Logger.WithError(closeErr).WithField("partition", partition).Warn("partition consumer closed with errors")
		}
		if err != nil {
			return records, err
		}
	}
	return records, nil
}

func drainPartition(ctx context.Context, pc sarama.PartitionConsumer, records []DeadLetterRecord, opts ReadOptions) ([]DeadLetterRecord, error) {
	idle := time.NewTimer(opts.IdleTimeout)
	defer idle.Stop()

	// Закрытый канал ошибок отключается, иначе select крутится вхолостую.
	errs := pc.Errors()
	for len(records) < opts.Limit {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		case <-idle.C:
			return records, nil
		case consumerErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			opts.Logger.WithError(consumerErr).Warn("dlq consumer error")
		case msg, ok := <-pc.Messages():
			if !ok {
				return records, nil
			}
			idle.Reset(opts.IdleTimeout)

			var letter domain.DeadLetter
			if err := json.Unmarshal(msg.Value, &letter); err != nil || letter.OutboxID == "" {
				opts.Logger.WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skipping unreadable dead letter")
				continue
			}
			records = append(records, DeadLetterRecord{Partition: msg.Partition, Offset: msg.Offset, Letter: letter})
		}
	}
	return records, nil
}

// ReplayDeadLetters повторно публикует исходные события через publisher.
// Останавливается на первой ошибке и возвращает число опубликованных записей.
func ReplayDeadLetters(records []DeadLetterRecord, publisher domain.OutboxPublisher) (int, error) {
	for i, record := range records {
		if err := publisher.Publish(record.Letter.Message()); err != nil {
			return i, fmt.Errorf("replay %s (partition %d, offset %d): %w",
				record.Letter.OutboxID, record.Partition, record.Offset, err)
		}
	}
	return len(records), nil
}
