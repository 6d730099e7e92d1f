package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/app"
	"github.com/vladislavdragonenkov/stockroom/internal/messaging/kafka"
)

const clientID = "stockroom-dlq-replay"

var errBrokersRequired = errors.New("kafka brokers are required (-brokers or STOCKROOM_KAFKA_BROKERS)")

var (
	newConsumer = func(brokers []string) (sarama.Consumer, error) {
		config := sarama.NewConfig()
		config.ClientID = clientID
		config.Consumer.Return.Errors = true
		return sarama.NewConsumer(brokers, config)
	}
	newProducer = func(brokers []string) (*kafka.Producer, error) {
		return kafka.NewProducer(kafka.ProducerConfig{Brokers: brokers, ClientID: clientID})
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run читает DLQ и печатает найденные записи; с -execute публикует их обратно в топик событий.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	flags.SetOutput(stdout)
	envFile := flags.String("env-file", ".env", "optional dotenv file with STOCKROOM_* variables")
	brokersFlag := flags.String("brokers", "", "comma separated kafka brokers (default from STOCKROOM_KAFKA_BROKERS)")
	source := flags.String("source", "", "dead letter topic (default from STOCKROOM_KAFKA_DLQ_TOPIC)")
	target := flags.String("target", "", "topic to replay into (default from STOCKROOM_KAFKA_TOPIC)")
	limit := flags.Int("limit", 100, "maximum dead letters to read")
	idle := flags.Duration("idle", 2*time.Second, "stop reading a partition after this idle period")
	execute := flags.Bool("execute", false, "publish dead letters instead of a dry run")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig(*envFile)
	if err != nil {
		return err
	}
	brokers := cfg.KafkaBrokers
	if strings.TrimSpace(*brokersFlag) != "" {
		brokers = splitBrokers(*brokersFlag)
	}
	if len(brokers) == 0 {
		return errBrokersRequired
	}
	if *source == "" {
		*source = cfg.KafkaDLQTopic
	}
	if *target == "" {
		*target = cfg.KafkaTopic
	}

	logger := log.WithField("component", "dlq-replay")

	consumer, err := newConsumer(brokers)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka consumer")
		}
	}()

	records, err := kafka.ReadDeadLetters(ctx, consumer, *source, kafka.ReadOptions{
		Limit:       *limit,
		IdleTimeout: *idle,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	for _, r := range records {
		_, _ = fmt.Fprintf(stdout, "partition=%d offset=%d outbox_id=%s event=%s order=%s error=%q\n",
			r.Partition, r.Offset, r.Letter.OutboxID, r.Letter.EventType, r.Letter.AggregateID, r.Letter.PublishError)
	}

	if !*execute {
		_, err = fmt.Fprintf(stdout, "dry run: %d dead letters in %s, pass -execute to replay into %s\n", len(records), *source, *target)
		return err
	}
	if len(records) == 0 {
		_, err = fmt.Fprintln(stdout, "nothing to replay")
		return err
	}

	producer, err := newProducer(brokers)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}()

	replayed, err := kafka.ReplayDeadLetters(records, kafka.NewOutboxPublisher(producer, *target))
	_, _ = fmt.Fprintf(stdout, "replayed %d/%d dead letters into %s\n", replayed, len(records), *target)
	return err
}

func splitBrokers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
