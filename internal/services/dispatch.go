package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/winniek75/flashinput-sub005/internal/models"
	"github.com/winniek75/flashinput-sub005/internal/security"
)

type RequestKind int

const (
	RequestCreateRoom RequestKind = iota + 1
	RequestJoinRoom
	RequestSyncState
	RequestGameAction
	RequestSelectStudent
	RequestLeaveRoom
	RequestDisconnect
)

func (k RequestKind) String() string {
	switch k {
	case RequestCreateRoom:
		return models.MsgTypeCreateRoom
	case RequestJoinRoom:
		return models.MsgTypeJoinRoom
	case RequestSyncState:
		return models.MsgTypeSyncGameState
	case RequestGameAction:
		return models.MsgTypeGameAction
	case RequestSelectStudent:
		return models.MsgTypeSelectStudent
	case RequestLeaveRoom:
		return models.MsgTypeLeaveRoom
	case RequestDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Request is a decoded and validated inbound event. Only the fields relevant
// to Kind are set.
type Request struct {
	Kind        RequestKind
	ConnID      string
	RoomCode    string
	TeacherID   string
	TeacherName string
	StudentID   string
	StudentName string
	GameState   models.GameStateData
	Action      json.RawMessage
}

// DecodeRequest parses a client frame into a Request.
func DecodeRequest(connID string, data []byte) (Request, error) {
	var msg models.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !security.IsValidMessageType(msg.Type) {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	req := Request{ConnID: connID}
	var err error
	switch msg.Type {
	case models.MsgTypeCreateRoom:
		req.Kind = RequestCreateRoom
		var p models.CreateRoomPayload
		if err = decodePayload(msg.Payload, &p); err != nil {
			break
		}
		if req.TeacherID, err = security.ValidateIdentifier("teacherId", p.TeacherID); err != nil {
			break
		}
		req.TeacherName, err = security.ValidateDisplayName(p.TeacherName)

	case models.MsgTypeJoinRoom:
		req.Kind = RequestJoinRoom
		var p models.JoinRoomPayload
		if err = decodePayload(msg.Payload, &p); err != nil {
			break
		}
		if req.RoomCode, req.StudentID, err = roomAndStudent(p.RoomCode, p.StudentID); err != nil {
			break
		}
		req.StudentName, err = security.ValidateDisplayName(p.StudentName)

	case models.MsgTypeSyncGameState:
		req.Kind = RequestSyncState
		var p models.SyncGameStatePayload
		if err = decodePayload(msg.Payload, &p); err != nil {
			break
		}
		req.RoomCode, req.StudentID, err = roomAndStudent(p.RoomCode, p.StudentID)
		req.GameState = p.GameState

	case models.MsgTypeGameAction:
		req.Kind = RequestGameAction
		var p models.GameActionPayload
		if err = decodePayload(msg.Payload, &p); err != nil {
			break
		}
		if req.RoomCode, req.StudentID, err = roomAndStudent(p.RoomCode, p.StudentID); err != nil {
			break
		}
		if isEmptyJSON(p.Action) {
			err = errors.New("action is required")
			break
		}
		req.Action = p.Action

	case models.MsgTypeSelectStudent:
		req.Kind = RequestSelectStudent
		var p models.SelectStudentPayload
		if err = decodePayload(msg.Payload, &p); err != nil {
			break
		}
		req.RoomCode, req.StudentID, err = roomAndStudent(p.RoomCode, p.StudentID)

	case models.MsgTypeLeaveRoom:
		req.Kind = RequestLeaveRoom
	}

	if err != nil {
		return Request{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, msg.Type, err)
	}
	return req, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if isEmptyJSON(raw) {
		return errors.New("payload is required")
	}
	return json.Unmarshal(raw, v)
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func roomAndStudent(roomCode, studentID string) (string, string, error) {
	code, err := security.NormalizeRoomCode(roomCode)
	if err != nil {
		return "", "", err
	}
	id, err := security.ValidateIdentifier("studentId", studentID)
	if err != nil {
		return "", "", err
	}
	return code, id, nil
}

// Dispatch runs one request against the registry. Only a failed join is
// reported back as an error; the best-effort paths swallow missing rooms.
func (r *SessionRegistry) Dispatch(req Request) error {
	switch req.Kind {
	case RequestCreateRoom:
		r.CreateRoom(req.TeacherID, req.ConnID, req.TeacherName)
	case RequestJoinRoom:
		return r.JoinRoom(req.RoomCode, req.StudentID, req.StudentName, req.ConnID)
	case RequestSyncState:
		r.SyncState(req.RoomCode, req.StudentID, req.GameState)
	case RequestGameAction:
		r.ForwardAction(req.RoomCode, req.StudentID, req.Action)
	case RequestSelectStudent:
		if _, ok := r.rooms[req.RoomCode]; !ok {
			return nil
		}
		state, _ := r.SelectStudent(req.RoomCode, req.StudentID)
		r.transport.Send(req.ConnID, &models.WSMessage{
			Type:    models.MsgTypeStudentSelected,
			RoomID:  req.RoomCode,
			Payload: models.StudentSelectedPayload{StudentID: req.StudentID, GameState: state},
		})
	case RequestLeaveRoom:
		r.Leave(req.ConnID)
	case RequestDisconnect:
		r.Disconnect(req.ConnID)
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownMessageType, req.Kind)
	}
	return nil
}

// HandleInbound decodes and dispatches one message from the transport,
// converting any failure into an error envelope for the sender.
func (r *SessionRegistry) HandleInbound(msg *ClientMessage) {
	if msg.Closed {
		r.Disconnect(msg.ConnID)
		return
	}

	req, err := DecodeRequest(msg.ConnID, msg.Message)
	if err == nil {
		err = r.Dispatch(req)
	}
	if err != nil {
		r.logger.Warn("request failed", "conn", msg.ConnID, "type", req.Kind.String(), "error", err)
		r.transport.Send(msg.ConnID, models.NewErrorMessage(errorMessage(err), security.SanitizeErrorMessage(err)))
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrUnknownMessageType):
		return "Unknown message type"
	case errors.Is(err, ErrInvalidPayload):
		return "Invalid request"
	default:
		return "Request failed"
	}
}

// Run is the registry's event loop. It owns all registry state: inbound
// messages and the expiry sweep are handled one at a time until ctx is done
// or in is closed.
func (r *SessionRegistry) Run(ctx context.Context, in <-chan *ClientMessage) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	r.logger.Info("session registry started", "sweep_interval", r.sweepInterval, "room_max_age", r.roomMaxAge)
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			r.HandleInbound(msg)

		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.logger.Info("expired rooms swept", "count", n, "remaining", len(r.rooms))
			}

		case <-ctx.Done():
			r.logger.Info("session registry stopped", "rooms", len(r.rooms))
			return
		}
	}
}
