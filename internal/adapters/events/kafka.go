package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/whyando/spacetraders/internal/adapters/api"
)

const (
	defaultTopic = "api-requests"
	bufferSize   = 10
)

// apiRequestEvent is the JSON document published per API exchange.
type apiRequestEvent struct {
	SliceID      string          `json:"slice_id"`
	RequestID    int64           `json:"request_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int             `json:"status"`
	RequestBody  json.RawMessage `json:"request_body,omitempty"`
	ResponseBody json.RawMessage `json:"response_body,omitempty"`
}

// KafkaInterceptor publishes every API exchange to a Kafka topic for
// downstream projection. Publishing is fully decoupled from the request
// path: records go through a small buffer and are dropped with a warning
// when the broker cannot keep up.
type KafkaInterceptor struct {
	writer  *kafka.Writer
	records chan api.RequestRecord
	done    chan struct{}
}

// NewKafkaInterceptor connects to the broker, ensures the topic exists and
// starts the background publisher.
func NewKafkaInterceptor(brokerURL string) (*KafkaInterceptor, error) {
	if err := ensureTopic(brokerURL, defaultTopic); err != nil {
		return nil, fmt.Errorf("failed to ensure topic %s: %w", defaultTopic, err)
	}

	k := &KafkaInterceptor{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokerURL),
			Topic:    defaultTopic,
			Balancer: &kafka.LeastBytes{},
		},
		records: make(chan api.RequestRecord, bufferSize),
		done:    make(chan struct{}),
	}
	go k.publishLoop()
	return k, nil
}

// OnResponse implements api.Interceptor. Never blocks the request path.
func (k *KafkaInterceptor) OnResponse(record api.RequestRecord) {
	select {
	case k.records <- record:
	default:
		log.Printf("[kafka] buffer full, dropping record for %s %s", record.Method, record.Path)
	}
}

// Close stops the publisher after draining buffered records.
func (k *KafkaInterceptor) Close() error {
	close(k.records)
	<-k.done
	return k.writer.Close()
}

func (k *KafkaInterceptor) publishLoop() {
	defer close(k.done)
	for record := range k.records {
		event := apiRequestEvent{
			SliceID:      record.SliceID,
			RequestID:    record.RequestID,
			Timestamp:    record.Timestamp,
			Method:       record.Method,
			Path:         record.Path,
			Status:       record.Status,
			RequestBody:  json.RawMessage(record.RequestBody),
			ResponseBody: json.RawMessage(record.ResponseBody),
		}
		value, err := json.Marshal(event)
		if err != nil {
			log.Printf("[kafka] failed to encode record: %v", err)
			continue
		}
		err = k.writer.WriteMessages(context.Background(), kafka.Message{
			Key:   []byte(record.SliceID),
			Value: value,
		})
		if err != nil {
			log.Printf("[kafka] failed to publish record %d: %v", record.RequestID, err)
		}
	}
}

// ensureTopic creates the topic with 24h / 1GiB delete-cleanup retention.
// Creation is idempotent; an existing topic keeps its settings.
func ensureTopic(brokerURL, topic string) error {
	conn, err := kafka.Dial("tcp", brokerURL)
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	return controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
		ConfigEntries: []kafka.ConfigEntry{
			{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt((24 * time.Hour).Milliseconds(), 10)},
			{ConfigName: "retention.bytes", ConfigValue: strconv.FormatInt(1<<30, 10)},
			{ConfigName: "cleanup.policy", ConfigValue: "delete"},
		},
	})
}
