package alert

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Shopify/sarama"
)

// KafkaNotifier publishes escalations to an alerts topic so they reach the
// operational pipeline. Publish failures fall back to the log; losing the
// broker must not lose the alert.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	fallback LogNotifier
}

func NewKafkaNotifier(host, topic string) (*KafkaNotifier, error) {
	saramaConf := sarama.NewConfig()
	saramaConf.Producer.Return.Successes = true
	saramaConf.Producer.Return.Errors = true
	saramaConf.Producer.RequiredAcks = sarama.WaitForAll

	client, err := sarama.NewClient([]string{host}, saramaConf)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		return nil, err
	}

	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

func (n *KafkaNotifier) Escalate(ctx context.Context, event Event) {
	n.fallback.Escalate(ctx, event)

	content, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode alert event", "error", err)
		return
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(event.AttemptKey),
		Value: sarama.ByteEncoder(content),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish alert event", "error", err, "topic", n.topic)
	}
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
