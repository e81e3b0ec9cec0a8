// Package broker is an in-process pub/sub of JSON messages, keyed by topic.
// It connects the background worker to the live sessions.
package broker

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// Buffer is how many undelivered messages a subscription holds.
const Buffer = 16

// Broker fans out published messages to every subscriber of a topic.
// Delivery is best effort: a subscriber whose buffer is full misses the
// message, and the others still receive it in publish order.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[chan []byte]struct{}
}

func New() *Broker {
	return &Broker{topics: make(map[string]map[chan []byte]struct{})}
}

// Subscribe opens a subscription to topic. Messages arrive encoded; the
// channel is never closed by the broker.
func (b *Broker) Subscribe(topic string) chan []byte {
	ch := make(chan []byte, Buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan []byte]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe ends a subscription. Topics without subscribers are forgotten.
func (b *Broker) Unsubscribe(topic string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[topic]
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish sends v to the current subscribers of topic and reports how many
// took it.
func (b *Broker) Publish(topic string, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encoding %s message: %w", topic, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for ch := range b.topics[topic] {
		select {
		case ch <- data:
			n++
		default: // full
		}
	}
	return n, nil
}

func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
