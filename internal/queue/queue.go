package queue

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// DispatchQueueName is the durable queue carrying whole-campaign dispatch
// jobs from the API server to the dispatcher process.
const DispatchQueueName = "campaign_dispatch"

const maxDeliveryAttempts = 3

// DispatchJob is the wire payload of one queued dispatch request.
type DispatchJob struct {
	CampaignID int `json:"campaign_id"`
}

// Publisher pushes dispatch jobs onto RabbitMQ.
type Publisher interface {
	PublishDispatch(campaignID int) error
	Close() error
}

type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue amqp.Queue
}

func NewAMQPPublisher(amqpURL string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		DispatchQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, queue: q}, nil
}

func (p *AMQPPublisher) PublishDispatch(campaignID int) error {
	body, err := json.Marshal(DispatchJob{CampaignID: campaignID})
	if err != nil {
		return err
	}
	return p.ch.Publish(
		"",
		p.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	p.ch.Close()
	return p.conn.Close()
}

var _ Publisher = (*AMQPPublisher)(nil)

// Consumer drains dispatch jobs and hands each campaign id to the handler.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  zerolog.Logger

	// publish re-enqueues a failed job with its retry count. A plain
	// Nack requeue would redeliver the original message with its original
	// headers, so the count would never advance.
	publish func(body []byte, retries int) error
}

func NewConsumer(amqpURL string, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	c := &Consumer{conn: conn, ch: ch, log: log}
	c.publish = func(body []byte, retries int) error {
		return ch.Publish(
			"",
			DispatchQueueName,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Headers:      amqp.Table{"x-retry-count": int32(retries)},
				Body:         body,
			},
		)
	}
	return c, nil
}

// Run consumes until the channel closes. A handler error re-enqueues the
// job with an incremented x-retry-count header up to maxDeliveryAttempts
// total attempts, then drops it.
func (c *Consumer) Run(handler func(job DispatchJob) error) error {
	q, err := c.ch.QueueDeclare(DispatchQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := c.ch.Consume(
		q.Name,
		"",
		false, // manual ack for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for d := range msgs {
		c.process(d, handler)
	}
	return nil
}

func (c *Consumer) process(d amqp.Delivery, handler func(job DispatchJob) error) {
	var job DispatchJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.log.Error().Err(err).Msg("invalid dispatch job, dropping")
		d.Ack(false)
		return
	}

	if err := handler(job); err != nil {
		retries := retryCount(d.Headers)
		if retries+1 < maxDeliveryAttempts {
			if pubErr := c.publish(d.Body, retries+1); pubErr != nil {
				c.log.Error().Err(pubErr).Int("campaign_id", job.CampaignID).
					Msg("failed to re-enqueue dispatch job, requeueing original")
				d.Nack(false, true)
				return
			}
			c.log.Warn().Err(err).Int("campaign_id", job.CampaignID).
				Int("attempt", retries+1).Msg("dispatch failed, re-enqueued")
		} else {
			c.log.Error().Err(err).Int("campaign_id", job.CampaignID).
				Msg("dispatch permanently failed")
		}
	}
	d.Ack(false)
}

func (c *Consumer) Close() error {
	c.ch.Close()
	return c.conn.Close()
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers["x-retry-count"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
