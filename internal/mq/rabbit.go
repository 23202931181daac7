// Package mq публикует события тикетов в topic exchange RabbitMQ.
package mq

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher: минимальный интерфейс публикации событий.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RabbitPublisher публикует JSON-события в exchange RabbitMQ. Routing key
// совпадает с именем события, например "ticket.closed".
type RabbitPublisher struct {
	mu       sync.Mutex // amqp channel нельзя использовать из нескольких горутин
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewRabbitPublisher подключается и объявляет durable topic exchange.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish сериализует payload в JSON и отправляет в exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
}

// ProduceTicketEvent адаптирует Publish к приёмнику событий сервиса
// (best-effort).
func (p *RabbitPublisher) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p == nil {
		return
	}
	msg := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["event"] = event
	if err := p.Publish(ctx, event, msg); err != nil {
		log.Printf("rabbitmq: publish %s: %v", event, err)
	}
}

// Close закрывает соединение.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		log.Printf("rabbitmq: close channel: %v", err)
	}
	return p.conn.Close()
}
