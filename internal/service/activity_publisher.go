// Package service publishes domain events to RabbitMQ.  Publishing is best
// effort: failures are logged and counted but never fail the request that
// produced the event.
package service

import (
    "context"
    "time"

    json "github.com/goccy/go-json"
    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog/log"

    "github.com/Nat-hsm/DragonRise/internal/config"
    "github.com/Nat-hsm/DragonRise/internal/observability"
    "github.com/Nat-hsm/DragonRise/internal/queue"
)

// ActivityPublisher sends ActivityRecordedEvent messages.
type ActivityPublisher struct {
    cfg config.QueueConfig
}

// NewActivityPublisher returns nil when the queue is disabled.  A nil
// publisher drops events silently.
func NewActivityPublisher(cfg config.QueueConfig) *ActivityPublisher {
    if !cfg.Enabled {
        return nil
    }
    return &ActivityPublisher{cfg: cfg}
}

// PublishActivityRecorded publishes ev to the activity queue as a
// persistent message.  A connection is dialled per call.
func (p *ActivityPublisher) PublishActivityRecorded(ctx context.Context, ev queue.ActivityRecordedEvent) error {
    if p == nil {
        return nil
    }
    err := p.publish(ctx, ev)
    observability.RecordEventPublished(err == nil)
    if err != nil {
        log.Warn().Err(err).Uint64("entry_id", ev.EntryID).Msg("rabbitmq: publish activity event failed")
    }
    return err
}

func (p *ActivityPublisher) publish(ctx context.Context, ev queue.ActivityRecordedEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    conn, err := amqp.Dial(p.cfg.URL)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
        return err
    }
    return ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
}
