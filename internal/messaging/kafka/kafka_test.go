package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

func TestProducer_Send(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"ok":true}` {
			return errors.New("unexpected value " + string(val))
		}
		return nil
	})

	producer := NewProducerFrom(mock, nil)
	require.NoError(t, producer.Send(TopicOrderEvents, "order-1", []byte(`{"ok":true}`), nil))
	require.NoError(t, producer.Close())
}

func TestProducer_SendError(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFrom(mock, nil)
	err := producer.Send(TopicOrderEvents, "order-1", []byte(`{}`), nil)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	require.Error(t, err)
}

func TestOutboxPublisher_PublishEnvelope(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.ID != "msg-1" || env.AggregateID != "order-1" || env.EventType != domain.EventOrderPlaced {
			return errors.New("unexpected envelope")
		}
		if string(env.Payload) != `{"order_id":"order-1"}` {
			return errors.New("payload must be embedded as raw json")
		}
		return nil
	})

	publisher := NewOutboxPublisher(NewProducerFrom(mock, nil), "")
	require.Equal(t, TopicOrderEvents, publisher.topic)

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "msg-1",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.Close())
}

func TestOutboxPublisher_BrokerFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	publisher := NewOutboxPublisher(NewProducerFrom(mock, nil), TopicDeadLetterQueue)
	err := publisher.Publish(domain.OutboxMessage{ID: "msg-2", EventType: domain.EventOrderStatusChanged})
	require.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, mock.Close())
}

func TestOutboxPublisher_NotInitialized(t *testing.T) {
	var publisher *OutboxTopicPublisher
	err := publisher.Publish(domain.OutboxMessage{ID: "x"})
	require.ErrorIs(t, err, domain.ErrOutboxPublish)
}
