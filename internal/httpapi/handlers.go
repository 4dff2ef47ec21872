package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"roomcast/internal/gateway"
)

type sendMessageRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Room    string `json:"room"`
}

type changeRoomRequest struct {
	UserID string `json:"user_id"`
	Room   string `json:"room"`
}

// AuthHandler mints a fresh user identifier. Stateless: nothing is
// registered until the websocket opens.
func (s *Server) AuthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": s.ids.Issue()})
}

// SendMessageHandler publishes a message on behalf of a connected user.
// An absent room resolves to the sender's current room.
func (s *Server) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}

	room := req.Room
	if room == "" {
		if c, ok := s.reg.Lookup(req.UserID); ok {
			room = c.Room()
		} else {
			// Unknown sender; any room makes Publish report it.
			room = s.cfg.Chat.DefaultRoom
		}
	}

	msg, err := s.gw.Publish(r.Context(), req.UserID, room, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrValidation):
			writeProblem(w, http.StatusBadRequest, "Invalid message", err.Error(), r.URL.Path)
		case errors.Is(err, gateway.ErrNotFound):
			writeProblem(w, http.StatusForbidden, "User not connected", err.Error(), r.URL.Path)
		case errors.Is(err, gateway.ErrCapacity):
			writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded", err.Error(), r.URL.Path)
		case errors.Is(err, gateway.ErrChannelIO):
			writeProblem(w, http.StatusServiceUnavailable, "Exchange unavailable", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Publish failed", err.Error(), r.URL.Path)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   "Message sent successfully",
		"timestamp": msg.At,
	})
}

// ChangeRoomHandler moves a connected user into another room.
func (s *Server) ChangeRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}

	var req changeRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}

	cur, err := s.gw.ChangeRoom(req.UserID, req.Room)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrValidation):
			writeProblem(w, http.StatusBadRequest, "Invalid room", err.Error(), r.URL.Path)
		case errors.Is(err, gateway.ErrNotFound):
			writeProblem(w, http.StatusNotFound, "User not found", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Room change failed", err.Error(), r.URL.Path)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"current_room": cur})
}

// RoomsHandler returns the occupancy snapshot.
func (s *Server) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
		return
	}

	snap := s.gw.Rooms()
	writeJSON(w, http.StatusOK, map[string]any{
		"active_rooms":      snap.Rooms,
		"total_connections": snap.Connections,
	})
}
