package channel

import (
	"fmt"
	"log"
	"sync"

	"github.com/wxpilot/broadcast-backend/internal/model"
)

// MemoryChannel is a loopback channel for development and tests: sends go
// through an injectable SendFunc, and a refresh request hands a canned
// snapshot to the registered consumer.
type MemoryChannel struct {
	mu       sync.Mutex
	SendFunc func(msg Message) error
	snapshot []model.ContactSnapshot
	apply    func([]model.ContactSnapshot) error
	sent     []Message
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

func (c *MemoryChannel) SendOne(msg Message) error {
	c.mu.Lock()
	send := c.SendFunc
	c.sent = append(c.sent, msg)
	c.mu.Unlock()

	if send != nil {
		return send(msg)
	}
	log.Printf("📨 [memory channel] to %s: %s\n", msg.Name, msg.Content)
	return nil
}

func (c *MemoryChannel) RequestRosterRefresh() error {
	c.mu.Lock()
	snapshot := c.snapshot
	apply := c.apply
	c.mu.Unlock()

	if apply == nil {
		return fmt.Errorf("no roster consumer registered")
	}
	// Deliver asynchronously like a real broker would.
	go func() {
		if err := apply(snapshot); err != nil {
			log.Println("⚠️ failed to apply roster snapshot:", err)
		}
	}()
	return nil
}

func (c *MemoryChannel) ConsumeRosterSnapshots(apply func([]model.ContactSnapshot) error) error {
	c.mu.Lock()
	c.apply = apply
	c.mu.Unlock()
	return nil
}

// SetSnapshot sets the roster the next refresh request will deliver.
func (c *MemoryChannel) SetSnapshot(snapshot []model.ContactSnapshot) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()
}

// Sent returns a copy of every message sent so far.
func (c *MemoryChannel) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

var _ Channel = (*MemoryChannel)(nil)
