package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tictactoe-service/internal/cache"
	"tictactoe-service/internal/models"
	"tictactoe-service/internal/ws"
)

type chatFixture struct {
	relay  *Relay
	store  *cache.MemoryStore
	broker *ws.Broker
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := cache.NewMemoryStore()
	broker := ws.NewBroker(logger)
	return &chatFixture{
		relay:  NewGlobalRelay(store, broker, logger),
		store:  store,
		broker: broker,
	}
}

func collect(t *testing.T, sub *ws.Subscriber) []models.ChatMessage {
	t.Helper()
	var out []models.ChatMessage
	for {
		select {
		case data := <-sub.Out:
			var msg models.ChatMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestChatMessageBroadcastAndPersist(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	s1 := f.broker.Subscribe(f.relay.Channel())
	s2 := f.broker.Subscribe(f.relay.Channel())

	f.relay.HandleMessage(ctx, InboundMessage{Type: MsgChatMessage, Message: "hello"}, "alice", s1)

	for _, sub := range []*ws.Subscriber{s1, s2} {
		msgs := collect(t, sub)
		require.Len(t, msgs, 1)
		assert.Equal(t, "chat", msgs[0].Type)
		assert.Equal(t, "hello", msgs[0].Message)
		assert.Equal(t, "alice", msgs[0].Sender)
		_, err := time.Parse("02.01.2006 15:04:05", msgs[0].Timestamp)
		assert.NoError(t, err, "timestamp must use the client display layout")
	}

	stored, err := f.store.LRange(ctx, cache.GlobalChatList, 0, -1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestChatAnonymousFallback(t *testing.T) {
	f := newChatFixture(t)
	sub := f.broker.Subscribe(f.relay.Channel())

	f.relay.HandleMessage(context.Background(), InboundMessage{Type: MsgChatMessage, Message: "hi"}, "", sub)

	msgs := collect(t, sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, AnonymousSender, msgs[0].Sender)
}

func TestChatHistoryReplayIsPrivate(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	s1 := f.broker.Subscribe(f.relay.Channel())
	f.relay.HandleMessage(ctx, InboundMessage{Type: MsgChatMessage, Message: "first"}, "alice", s1)
	f.relay.HandleMessage(ctx, InboundMessage{Type: MsgChatMessage, Message: "second"}, "bob", s1)
	collect(t, s1)

	s2 := f.broker.Subscribe(f.relay.Channel())
	f.relay.HandleMessage(ctx, InboundMessage{Type: MsgLatestMessagesReq}, "", s2)

	replay := collect(t, s2)
	require.Len(t, replay, 2)
	assert.Equal(t, "first", replay[0].Message)
	assert.Equal(t, "second", replay[1].Message)

	assert.Empty(t, collect(t, s1), "history replay must not reach other subscribers")
}

func TestChatHistoryCapped(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	sub := f.broker.Subscribe(f.relay.Channel())

	for i := 0; i < cache.ChatHistoryMax+10; i++ {
		f.relay.HandleMessage(ctx, InboundMessage{Type: MsgChatMessage, Message: "spam"}, "alice", sub)
	}

	stored, err := f.store.LRange(ctx, cache.GlobalChatList, 0, -1)
	require.NoError(t, err)
	assert.Len(t, stored, cache.ChatHistoryMax)
}

func TestRoomRelayUsesRoomKeys(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := cache.NewMemoryStore()
	broker := ws.NewBroker(logger)
	relay := NewRoomRelay(store, broker, "ABC123", logger)

	assert.Equal(t, ws.RoomChatChannel("ABC123"), relay.Channel())

	sub := broker.Subscribe(relay.Channel())
	relay.HandleMessage(context.Background(), InboundMessage{Type: MsgChatMessage, Message: "gl hf"}, "bob", sub)

	stored, err := store.LRange(context.Background(), cache.RoomChatList("ABC123"), 0, -1)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestChatUnknownTypeIgnored(t *testing.T) {
	f := newChatFixture(t)
	sub := f.broker.Subscribe(f.relay.Channel())

	f.relay.HandleMessage(context.Background(), InboundMessage{Type: "bogus"}, "alice", sub)

	assert.Empty(t, collect(t, sub))
	stored, err := f.store.LRange(context.Background(), cache.GlobalChatList, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
