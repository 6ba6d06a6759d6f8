// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/cache"
	"tictactoe-service/internal/game"
	"tictactoe-service/internal/matchmaking"
	"tictactoe-service/internal/models"
	"tictactoe-service/internal/room"
	"tictactoe-service/internal/ws"
)

// UserStore is the slice of user persistence the handlers need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// Server bundles the dependencies shared by every HTTP and websocket
// handler and owns route registration.
type Server struct {
	Store  cache.Store
	Broker *ws.Broker
	Rooms  *room.Registry
	Games  *game.Manager
	Queue  *matchmaking.Queue
	Users  UserStore
	Logger *logrus.Logger
}

func NewServer(store cache.Store, broker *ws.Broker, rooms *room.Registry, games *game.Manager, queue *matchmaking.Queue, users UserStore, logger *logrus.Logger) *Server {
	return &Server{
		Store:  store,
		Broker: broker,
		Rooms:  rooms,
		Games:  games,
		Queue:  queue,
		Users:  users,
		Logger: logger,
	}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/user/create", s.CreateUserHandler)
	mux.HandleFunc("/user/login", s.LoginHandler)
	mux.HandleFunc("/api/room", s.RoomHandler)

	mux.HandleFunc("/ws/chat", s.ChatWSHandler)
	mux.HandleFunc("/ws/chat/", s.ChatWSHandler)
	mux.HandleFunc("/ws/queue/", s.QueueWSHandler)
	mux.HandleFunc("/ws/game/", s.GameWSHandler)

	return mux
}
