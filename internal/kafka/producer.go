package kafka

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer пишет события тикетов в топик Kafka (best-effort, не блокирует API).
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer создаёт продюсер. Если brokers или topic пустые, методы no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether events actually leave the process.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// ProduceTicketEvent отправляет событие в топик. Ключ сообщения равен ticket_id,
// поэтому события одного тикета попадают в одну партицию и сохраняют порядок.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	body, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("kafka: marshal ticket event: %v", err)
		return
	}
	msg := kafka.Message{Value: body, Headers: []kafka.Header{{Key: "event", Value: []byte(event)}}}
	if id, ok := payload["ticket_id"].(string); ok {
		msg.Key = []byte(id)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("kafka: write %s: %v", event, err)
	}
}

func encodeEvent(event string, payload map[string]interface{}) ([]byte, error) {
	msg := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["event"] = event
	return json.Marshal(msg)
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers разбивает строку брокеров "host1:9092,host2:9092" на слайс.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
