package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/service-scheduling/internal/logger"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// Publisher publishes persistent JSON envelopes to a topic exchange.  It
// keeps one connection and channel open and redials once when a publish
// finds them closed.  Safe for concurrent use.
type Publisher struct {
    url      string
    exchange string

    mu   sync.Mutex
    conn *amqp.Connection
    ch   channel
    now  func() time.Time
}

// NewPublisher dials url and declares exchange (durable topic).
func NewPublisher(url, exchange string) (*Publisher, error) {
    p := &Publisher{url: url, exchange: exchange, now: func() time.Time { return time.Now().UTC() }}
    if err := p.connect(); err != nil {
        return nil, err
    }
    return p, nil
}

func (p *Publisher) connect() error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial rabbitmq: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return fmt.Errorf("open channel: %w", err)
    }
    if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return fmt.Errorf("declare exchange: %w", err)
    }
    p.conn, p.ch = conn, ch
    return nil
}

// Encode builds the wire body for an event.
func Encode(routingKey string, payload any, at time.Time) ([]byte, error) {
    data, err := json.Marshal(payload)
    if err != nil {
        return nil, fmt.Errorf("marshal payload: %w", err)
    }
    return json.Marshal(Envelope{
        ID:         uuid.NewString(),
        Type:       routingKey,
        OccurredAt: at,
        Data:       data,
    })
}

// Publish implements service.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
    body, err := Encode(routingKey, payload, p.now())
    if err != nil {
        return err
    }
    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    p.now(),
        Body:         body,
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch == nil {
        if err := p.connect(); err != nil {
            return err
        }
    }
    err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
    if err == nil {
        return nil
    }
    // A closed channel or connection is recoverable once; anything else is
    // reported as is.
    if p.conn == nil || !p.conn.IsClosed() {
        return fmt.Errorf("publish %s: %w", routingKey, err)
    }
    logger.Log.WithError(err).Warn("rabbitmq connection lost, redialing")
    p.ch = nil
    if err := p.connect(); err != nil {
        return err
    }
    if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
        return fmt.Errorf("publish %s: %w", routingKey, err)
    }
    return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        err := p.conn.Close()
        p.conn = nil
        return err
    }
    return nil
}
