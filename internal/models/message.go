package models

import "encoding/json"

// WSMessage is the outbound envelope written to clients.
type WSMessage struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"roomId,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundMessage is the envelope read from clients; the payload is decoded
// once the type is known.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client → Server message types
const (
	MsgTypeCreateRoom    = "create-room"
	MsgTypeJoinRoom      = "join-room"
	MsgTypeSyncGameState = "sync-game-state"
	MsgTypeGameAction    = "game-action"
	MsgTypeSelectStudent = "select-student"
	MsgTypeLeaveRoom     = "leave-room"
)

// Server → Client message types
const (
	MsgTypeRoomCreated         = "room-created"
	MsgTypeRoomExists          = "room-exists"
	MsgTypeJoinedRoom          = "joined-room"
	MsgTypeStudentJoined       = "student-joined"
	MsgTypeGameStateUpdated    = "game-state-updated" // teacher only
	MsgTypeStudentAction       = "student-action"     // teacher only
	MsgTypeStudentSelected     = "student-selected"
	MsgTypeRoomClosed          = "room-closed"
	MsgTypeStudentLeft         = "student-left"
	MsgTypeTeacherDisconnected = "teacher-disconnected"
	MsgTypeStudentDisconnected = "student-disconnected"
	MsgTypeError               = "error"
)

// ErrorPayload is the generic failure envelope body.
type ErrorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewErrorMessage builds an error envelope.
func NewErrorMessage(message, detail string) *WSMessage {
	return &WSMessage{
		Type:    MsgTypeError,
		Payload: ErrorPayload{Message: message, Error: detail},
	}
}
