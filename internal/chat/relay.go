// internal/chat/relay.go
package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/cache"
	"tictactoe-service/internal/models"
	"tictactoe-service/internal/ws"
)

// timestampLayout is the display format clients render verbatim.
const timestampLayout = "02.01.2006 15:04:05"

// AnonymousSender labels messages from connections without an identity.
const AnonymousSender = "Anonymous"

// Inbound message types.
const (
	MsgChatMessage       = "chat_message"
	MsgLatestMessagesReq = "latest_messages_request"
)

// InboundMessage is what a chat client sends on its socket.
type InboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Relay serves one chat channel: it fans messages out to subscribers and
// keeps a capped recent-history list so joining clients can catch up. The
// global channel and each room channel get their own Relay differing only in
// channel name, history key and TTL.
type Relay struct {
	store   cache.Store
	broker  *ws.Broker
	channel string
	list    string
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewGlobalRelay returns the relay for the site-wide chat channel.
func NewGlobalRelay(store cache.Store, broker *ws.Broker, logger *logrus.Logger) *Relay {
	return &Relay{
		store:   store,
		broker:  broker,
		channel: ws.GlobalChatChannel,
		list:    cache.GlobalChatList,
		ttl:     cache.ChatHistoryTTL,
		logger:  logger,
	}
}

// NewRoomRelay returns the relay for one room's chat channel.
func NewRoomRelay(store cache.Store, broker *ws.Broker, roomCode string, logger *logrus.Logger) *Relay {
	return &Relay{
		store:   store,
		broker:  broker,
		channel: ws.RoomChatChannel(roomCode),
		list:    cache.RoomChatList(roomCode),
		ttl:     cache.RoomChatHistoryTTL,
		logger:  logger,
	}
}

// Channel returns the broker channel handlers subscribe connections to.
func (r *Relay) Channel() string {
	return r.channel
}

// HandleMessage processes one decoded client message. sender is the
// authenticated username, or empty for anonymous connections. sub receives
// private history replays. Unknown types are logged and dropped.
func (r *Relay) HandleMessage(ctx context.Context, msg InboundMessage, sender string, sub *ws.Subscriber) {
	switch msg.Type {
	case MsgChatMessage:
		r.relay(ctx, msg.Message, sender)
	case MsgLatestMessagesReq:
		r.replayHistory(ctx, sub)
	default:
		r.logger.Warnf("chat %s: unknown message type: %q", r.channel, msg.Type)
	}
}

// relay broadcasts the message to every subscriber and appends it to the
// channel's history, trimming the list to its cap and re-arming its TTL.
func (r *Relay) relay(ctx context.Context, text, sender string) {
	if sender == "" {
		sender = AnonymousSender
	}

	entry := models.ChatMessage{
		Type:      "chat",
		Message:   text,
		Sender:    sender,
		Timestamp: time.Now().Format(timestampLayout),
	}
	r.broker.Publish(r.channel, entry)

	data, err := json.Marshal(entry)
	if err != nil {
		r.logger.Errorf("chat %s: failed to encode message: %v", r.channel, err)
		return
	}
	if err := r.store.RPush(ctx, r.list, string(data)); err != nil {
		r.logger.Errorf("chat %s: failed to persist message: %v", r.channel, err)
		return
	}
	if err := r.store.LTrim(ctx, r.list, -int64(cache.ChatHistoryMax), -1); err != nil {
		r.logger.Warnf("chat %s: failed to trim history: %v", r.channel, err)
	}
	if err := r.store.Expire(ctx, r.list, r.ttl); err != nil {
		r.logger.Warnf("chat %s: failed to refresh history TTL: %v", r.channel, err)
	}
}

// replayHistory privately sends the stored messages to one subscriber,
// oldest first.
func (r *Relay) replayHistory(ctx context.Context, sub *ws.Subscriber) {
	if sub == nil {
		return
	}
	entries, err := r.store.LRange(ctx, r.list, 0, -1)
	if err != nil {
		r.logger.Errorf("chat %s: failed to load history: %v", r.channel, err)
		return
	}
	for _, raw := range entries {
		var entry models.ChatMessage
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			r.logger.Warnf("chat %s: skipping unreadable history entry: %v", r.channel, err)
			continue
		}
		sub.Send(entry)
	}
}
