package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Message is the transport-neutral form of a Kafka record.
type Message struct {
	Key       string // partition key; records sharing a key keep their order
	Value     []byte // JSON payload
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderSchemaVersion = "schema-version"
	HeaderSource        = "source"
	HeaderTimestamp     = "timestamp"
	HeaderRetryCount    = "retry-count"
	HeaderOriginalTopic = "original-topic"

	HeaderDLQError         = "dlq-error"
	HeaderDLQTimestamp     = "dlq-timestamp"
	HeaderDLQConsumerGroup = "dlq-consumer-group"
)

// Envelope is the metadata written next to a JSON payload. Empty fields are
// left out of the headers, except EventID which is generated.
type Envelope struct {
	Key           string
	EventID       string
	EventType     string
	SchemaVersion string
	Source        string
	At            time.Time
}

// Encode JSON-encodes value into a message described by env. An encoding
// failure is permanent: retrying the same value cannot succeed.
func Encode(env Envelope, value any) (Message, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Message{}, NewPermanentError("failed to encode message value", err)
	}

	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}
	if env.At.IsZero() {
		env.At = time.Now()
	}

	headers := map[string]string{
		HeaderEventID:   env.EventID,
		HeaderTimestamp: env.At.UTC().Format(time.RFC3339),
	}
	for name, value := range map[string]string{
		HeaderEventType:     env.EventType,
		HeaderSchemaVersion: env.SchemaVersion,
		HeaderSource:        env.Source,
	} {
		if value != "" {
			headers[name] = value
		}
	}

	return Message{Key: env.Key, Value: data, Headers: headers, Timestamp: env.At}, nil
}

// MessageHandler processes one consumed message. A nil return commits it.
type MessageHandler func(ctx context.Context, msg Message) error

func (m *Message) DecodeValue(v any) error {
	return json.Unmarshal(m.Value, v)
}

func (m *Message) EventID() string   { return m.Headers[HeaderEventID] }
func (m *Message) EventType() string { return m.Headers[HeaderEventType] }

func (m *Message) RetryCount() int {
	count, err := strconv.Atoi(m.Headers[HeaderRetryCount])
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func (m *Message) IncrementRetryCount() {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[HeaderRetryCount] = strconv.Itoa(m.RetryCount() + 1)
}
