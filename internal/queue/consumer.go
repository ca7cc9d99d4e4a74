package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/service-scheduling/internal/logger"
)

// Consumer binds a durable queue to every routing key on the events
// exchange and appends each event to an activity log file.
type Consumer struct {
    URL      string
    Exchange string
    Queue    string
    LogPath  string
}

// Run connects and consumes until ctx is cancelled.  Broker failures are
// retried with a backoff that doubles up to 30 seconds.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            logger.Log.WithError(err).Warnf("activity-consumer: dial failed, retrying in %s", backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.Log.WithError(err).Warn("activity-consumer: consume loop ended, reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Log.WithError(err).Warn("activity-consumer: set QoS failed")
    }
    if err := ch.ExchangeDeclare(c.Exchange, "topic", true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    q, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(q.Name, "#", c.Exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }

    msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := c.handleMessage(d.Body); err != nil {
            logger.Log.WithError(err).Error("activity-consumer: handle message failed")
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func (c *Consumer) handleMessage(body []byte) error {
    line, err := FormatActivity(body)
    if err != nil {
        return err
    }
    if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatActivity renders an envelope as one log line: timestamp, event type,
// event id, then the payload fields as key=value pairs in sorted order.
func FormatActivity(body []byte) (string, error) {
    var env Envelope
    if err := json.Unmarshal(body, &env); err != nil {
        return "", fmt.Errorf("unmarshal: %w", err)
    }
    if env.Type == "" {
        return "", errors.New("event without type")
    }
    var fields map[string]any
    if len(env.Data) > 0 {
        if err := json.Unmarshal(env.Data, &fields); err != nil {
            return "", fmt.Errorf("unmarshal data: %w", err)
        }
    }
    keys := make([]string, 0, len(fields))
    for k := range fields {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    parts := make([]string, 0, len(keys))
    for _, k := range keys {
        parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
    }
    return fmt.Sprintf("[%s] %s | id=%s | %s\n",
        env.OccurredAt.UTC().Format(time.RFC3339), env.Type, env.ID, strings.Join(parts, " | ")), nil
}
