package helpers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"
)

// AMQPQueue is a connection plus one channel bound to a durable queue.
type AMQPQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

// DialQueue connects to url and declares queue as durable.
func DialQueue(url, queue string) (*AMQPQueue, error) {
	errb := oops.In("amqp").With("queue", queue)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errb.Wrapf(err, "dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errb.Wrapf(err, "open channel")
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errb.Wrapf(err, "declare queue")
	}
	return &AMQPQueue{conn: conn, ch: ch, Queue: queue}, nil
}

// Consume starts manual-ack delivery with at most prefetch unacked messages.
func (q *AMQPQueue) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		return nil, oops.In("amqp").Wrapf(err, "set qos")
	}
	msgs, err := q.ch.Consume(q.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, oops.In("amqp").With("queue", q.Queue).Wrapf(err, "consume")
	}
	return msgs, nil
}

func (q *AMQPQueue) Close() {
	if q == nil {
		return
	}
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

// RabbitPublisher publishes JSON bodies to its queue and waits for the broker
// confirm. amqp channels are not safe for concurrent publishes, hence mu.
type RabbitPublisher struct {
	*AMQPQueue
	mu sync.Mutex
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	q, err := DialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	if err := q.ch.Confirm(false); err != nil {
		q.Close()
		return nil, oops.In("amqp").With("queue", queue).Wrapf(err, "enable confirms")
	}
	return &RabbitPublisher{AMQPQueue: q}, nil
}

func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return oops.In("amqp").Wrapf(err, "encode message")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         b,
	}

	p.mu.Lock()
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, "", p.Queue, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return oops.In("amqp").With("queue", p.Queue).Wrapf(err, "publish")
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return oops.In("amqp").With("queue", p.Queue).Wrapf(err, "await confirm")
	}
	if !acked {
		return oops.In("amqp").With("queue", p.Queue, "message_id", msg.MessageId).Errorf("broker nacked message")
	}
	return nil
}
