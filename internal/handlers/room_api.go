// internal/handlers/room_api.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tictactoe-service/internal/models"
	"tictactoe-service/internal/room"
)

// roomPayload is the JSON shape of a room in API responses. The host session
// key never leaves the server; ownership is reported through is_host.
type roomPayload struct {
	Code        string `json:"gameRoomCode"`
	GameOption  string `json:"game_option"`
	PlayerX     string `json:"player_x,omitempty"`
	PlayerO     string `json:"player_o,omitempty"`
	GameStarted bool   `json:"game_started"`
	IsHost      *bool  `json:"is_host,omitempty"`
}

func toRoomPayload(gr *models.GameRoom) roomPayload {
	p := roomPayload{
		Code:        gr.Code,
		GameOption:  gr.GameOption,
		GameStarted: gr.GameStarted,
	}
	if gr.PlayerX != nil {
		p.PlayerX = gr.PlayerX.Username
	}
	if gr.PlayerO != nil {
		p.PlayerO = gr.PlayerO.Username
	}
	return p
}

type createRoomRequest struct {
	GameOption string `json:"game_option"`
}

// RoomHandler multiplexes the room registry API:
//
//	POST   /api/room                     create a room (one seat filled)
//	GET    /api/room?gameRoomCode=CODE   fetch the room and take the free seat
//	GET    /api/room                     list all open rooms
//	DELETE /api/room?gameRoomCode=CODE   delete own room
//
// All verbs require an authenticated user.
func (s *Server) RoomHandler(w http.ResponseWriter, r *http.Request) {
	user, sessionKey, err := s.identityFromRequest(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.createRoom(w, r, user, sessionKey)
	case http.MethodGet:
		if code := r.URL.Query().Get("gameRoomCode"); code != "" {
			s.joinRoom(w, r, code, user, sessionKey)
		} else {
			s.listRooms(w, r)
		}
	case http.MethodDelete:
		s.deleteRoom(w, r, user)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request, user *models.User, sessionKey string) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	gr, err := s.Rooms.Create(r.Context(), sessionKey, req.GameOption, user)
	if err != nil {
		s.Logger.Warnf("failed to create room for %s: %v", user.Username, err)
		http.Error(w, "failed to create room", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toRoomPayload(gr))
}

func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request, code string, user *models.User, sessionKey string) {
	gr, isHost, err := s.Rooms.Join(r.Context(), code, user, sessionKey)
	switch {
	case errors.Is(err, room.ErrNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
		return
	case errors.Is(err, room.ErrRoomFull):
		http.Error(w, "room is already full", http.StatusConflict)
		return
	case err != nil:
		s.Logger.Errorf("failed to join room %s: %v", code, err)
		http.Error(w, "failed to join room", http.StatusInternalServerError)
		return
	}

	payload := toRoomPayload(gr)
	payload.IsHost = &isHost
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.Rooms.ListAll(r.Context())
	if err != nil {
		s.Logger.Errorf("failed to list rooms: %v", err)
		http.Error(w, "failed to list rooms", http.StatusInternalServerError)
		return
	}

	payloads := make([]roomPayload, 0, len(rooms))
	for i := range rooms {
		payloads = append(payloads, toRoomPayload(&rooms[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payloads)
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request, user *models.User) {
	code := r.URL.Query().Get("gameRoomCode")
	if code == "" {
		http.Error(w, "missing gameRoomCode", http.StatusBadRequest)
		return
	}

	err := s.Rooms.Delete(r.Context(), code, user)
	switch {
	case errors.Is(err, room.ErrNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
		return
	case errors.Is(err, room.ErrForbidden):
		http.Error(w, "not your room", http.StatusForbidden)
		return
	case err != nil:
		s.Logger.Errorf("failed to delete room %s: %v", code, err)
		http.Error(w, "failed to delete room", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
