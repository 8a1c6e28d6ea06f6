/*
Package notifier publishes document change notifications.

The Kafka notifier sends one message per persisted mutation. The message key is the
resource name, the value is the JSON payload of the affected record or object. The
operation, the request ID and the authenticated identity travel as headers.

Messages are queued and written by a background worker, so that a slow broker never
holds up a mutation. When the queue is full, notifications are dropped and logged.
*/
package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/jsonserver/core"
	"github.com/relabs-tech/jsonserver/core/logger"
)

// header names of a notification message
const (
	HeaderOperation = "operation"
	HeaderRequestID = "request-id"
	HeaderIdentity  = "identity"
)

const (
	defaultTopic     = "jsonserver"
	defaultQueueSize = 256
	writeTimeout     = 10 * time.Second
)

// Writer writes messages to Kafka. It is implemented by *kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfiguration holds the configuration of the Kafka notifier
type KafkaConfiguration struct {
	// Brokers is a comma separated list of broker addresses
	Brokers string
	// Topic defaults to "jsonserver"
	Topic string
	// QueueSize is the number of notifications which can be pending. Defaults to 256.
	QueueSize int
}

// Kafka is a core.Notifier which publishes to a Kafka topic
type Kafka struct {
	writer Writer
	queue  chan kafka.Message
	done   chan struct{}
	once   sync.Once
}

var _ core.Notifier = (*Kafka)(nil)

// NewKafka returns a new Kafka notifier for the configured brokers
func NewKafka(config KafkaConfiguration) (*Kafka, error) {
	var brokers []string
	for _, b := range strings.Split(config.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	topic := config.Topic
	if topic == "" {
		topic = defaultTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
	return NewKafkaWithWriter(writer, config.QueueSize), nil
}

// NewKafkaWithWriter returns a new Kafka notifier which writes to writer
func NewKafkaWithWriter(writer Writer, queueSize int) *Kafka {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	k := &Kafka{
		writer: writer,
		queue:  make(chan kafka.Message, queueSize),
		done:   make(chan struct{}),
	}
	go k.run()
	return k
}

// Notify implements core.Notifier
func (k *Kafka) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	headers := []kafka.Header{{Key: HeaderOperation, Value: []byte(operation)}}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: HeaderRequestID, Value: []byte(id)})
	}
	if identity := logger.IdentityFromContext(ctx); identity != "" {
		headers = append(headers, kafka.Header{Key: HeaderIdentity, Value: []byte(identity)})
	}
	msg := kafka.Message{
		Key:     []byte(resource),
		Value:   payload,
		Headers: headers,
		Time:    time.Now(),
	}
	select {
	case k.queue <- msg:
	default:
		logger.FromContext(ctx).Errorf("Error 4740: notification queue full, dropped %s notification for %s", operation, resource)
	}
}

func (k *Kafka) run() {
	defer close(k.done)
	rlog := logger.Default()
	for msg := range k.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := k.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			rlog.WithError(err).Errorf("Error 4741: cannot publish notification for %s", string(msg.Key))
		}
	}
}

// Close writes all pending notifications and closes the writer
func (k *Kafka) Close() error {
	k.once.Do(func() { close(k.queue) })
	<-k.done
	return k.writer.Close()
}
