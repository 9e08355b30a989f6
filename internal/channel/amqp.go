package channel

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/wxpilot/broadcast-backend/internal/model"
)

// Queue names shared with the bridge (see cmd/worker).
const (
	SendQueue            = "channel_sends"
	RosterRefreshQueue   = "roster_refresh"
	RosterSnapshotQueue  = "roster_snapshots"
	defaultReplyTimeout  = 30 * time.Second
)

type sendVerdict struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// AMQPChannel talks to the bridge over RabbitMQ. Sends are an RPC: each
// publish carries a reply queue and correlation id, and the bridge answers
// with a per-send verdict. A missing verdict within the timeout counts as
// that recipient's failure.
type AMQPChannel struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	replyQ  string
	timeout time.Duration

	mu      sync.Mutex
	nextID  uint64
	pending map[string]chan sendVerdict
}

func DialAMQP(url string) (*AMQPChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open broker channel: %w", err)
	}

	for _, q := range []string{SendQueue, RosterRefreshQueue, RosterSnapshotQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	// Exclusive auto-delete reply queue for send verdicts.
	replyQ, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}

	c := &AMQPChannel{
		conn:    conn,
		ch:      ch,
		replyQ:  replyQ.Name,
		timeout: defaultReplyTimeout,
		pending: map[string]chan sendVerdict{},
	}

	replies, err := ch.Consume(replyQ.Name, "", true, true, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}
	go c.dispatchReplies(replies)

	return c, nil
}

func (c *AMQPChannel) dispatchReplies(replies <-chan amqp.Delivery) {
	for d := range replies {
		var v sendVerdict
		if err := json.Unmarshal(d.Body, &v); err != nil {
			log.Println("⚠️ invalid send verdict:", err)
			continue
		}
		c.mu.Lock()
		waiter, ok := c.pending[d.CorrelationId]
		if ok {
			delete(c.pending, d.CorrelationId)
		}
		c.mu.Unlock()
		if ok {
			waiter <- v
		}
	}
}

func (c *AMQPChannel) SendOne(msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.nextID++
	corrID := strconv.FormatUint(c.nextID, 10)
	waiter := make(chan sendVerdict, 1)
	c.pending[corrID] = waiter
	c.mu.Unlock()

	err = c.ch.Publish("", SendQueue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       c.replyQ,
		DeliveryMode:  amqp.Persistent,
		Body:          body,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, corrID)
		c.mu.Unlock()
		return fmt.Errorf("publish send: %w", err)
	}

	select {
	case v := <-waiter:
		if !v.OK {
			return fmt.Errorf("bridge send failed: %s", v.Error)
		}
		return nil
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, corrID)
		c.mu.Unlock()
		return fmt.Errorf("send to %s timed out", msg.Name)
	}
}

func (c *AMQPChannel) RequestRosterRefresh() error {
	err := c.ch.Publish("", RosterRefreshQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         []byte(`{"action":"refresh"}`),
	})
	if err != nil {
		return fmt.Errorf("publish roster refresh: %w", err)
	}
	return nil
}

// ConsumeRosterSnapshots feeds every snapshot the bridge publishes to apply.
// Snapshots that fail to apply are requeued once by the broker.
func (c *AMQPChannel) ConsumeRosterSnapshots(apply func([]model.ContactSnapshot) error) error {
	msgs, err := c.ch.Consume(RosterSnapshotQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume roster snapshots: %w", err)
	}
	go func() {
		for d := range msgs {
			var snapshot []model.ContactSnapshot
			if err := json.Unmarshal(d.Body, &snapshot); err != nil {
				log.Println("⚠️ invalid roster snapshot:", err)
				d.Ack(false)
				continue
			}
			if err := apply(snapshot); err != nil {
				log.Println("⚠️ failed to apply roster snapshot:", err)
				d.Nack(false, !d.Redelivered)
				continue
			}
			log.Printf("📇 roster snapshot applied, %d contacts\n", len(snapshot))
			d.Ack(false)
		}
	}()
	return nil
}

func (c *AMQPChannel) Close() error {
	return c.conn.Close()
}

var _ Channel = (*AMQPChannel)(nil)
