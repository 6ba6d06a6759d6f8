// internal/ws/broker.go
package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Channel name builders. One global chat channel, one chat and one game
// channel per room, one private notification channel per queued user.
const GlobalChatChannel = "main_chat"

func RoomChatChannel(roomCode string) string {
	return "chat_room_" + roomCode
}

func GameRoomChannel(roomCode string) string {
	return "game_room_" + roomCode
}

func QueueMemberChannel(userID string) string {
	return "queue_member_" + userID
}

// subscriberBuffer bounds the per-connection outbound queue. A subscriber
// that cannot drain its buffer has its messages dropped rather than letting
// one slow connection stall the fan-out.
const subscriberBuffer = 16

// Subscriber is one connection's membership in a channel. The owning
// handler drains Out in its write pump.
type Subscriber struct {
	Out chan []byte

	closeOnce sync.Once
}

// Send marshals v and queues it for this subscriber only, used for private
// replies that must not reach the rest of the channel.
func (s *Subscriber) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.Out <- data:
	default:
	}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.Out) })
}

// Broker fans events out to every subscriber of a named logical channel.
// It is the only in-process shared messaging primitive; all cross-connection
// communication travels through it or through the ephemeral store.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscriber]struct{}
	logger *logrus.Logger
}

func NewBroker(logger *logrus.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber on the channel and returns it.
func (b *Broker) Subscribe(channel string) *Subscriber {
	sub := &Subscriber{Out: make(chan []byte, subscriberBuffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*Subscriber]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscriber from the channel and closes its
// outbound queue. Safe to call more than once.
func (b *Broker) Unsubscribe(channel string, sub *Subscriber) {
	b.mu.Lock()
	if set, ok := b.subs[channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, channel)
		}
	}
	b.mu.Unlock()
	sub.close()
}

// Publish marshals v once and delivers it to every current subscriber of
// the channel. Delivery is non-blocking; a subscriber with a full buffer
// misses the message.
func (b *Broker) Publish(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Warnf("broker: failed to marshal message for channel %s: %v", channel, err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[channel] {
		select {
		case sub.Out <- data:
		default:
			b.logger.Warnf("broker: dropping message on channel %s, subscriber buffer full", channel)
		}
	}
}

// Subscribers reports the current membership count of a channel.
func (b *Broker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
