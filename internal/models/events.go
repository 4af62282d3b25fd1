package models

import (
	"encoding/json"
	"time"
)

// RoomPayload answers room-created, room-exists and joined-room.
type RoomPayload struct {
	RoomCode    string        `json:"roomCode"`
	TeacherName string        `json:"teacherName,omitempty"`
	StudentID   string        `json:"studentId,omitempty"`
	Students    []StudentView `json:"students"`
}

// StudentPresencePayload is shared with the whole room on join, leave and
// disconnect.
type StudentPresencePayload struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
}

type GameStateUpdatedPayload struct {
	StudentID string    `json:"studentId"`
	GameState LiveState `json:"gameState"`
}

type StudentActionPayload struct {
	StudentID string          `json:"studentId"`
	Action    json.RawMessage `json:"action"`
	Timestamp time.Time       `json:"timestamp"`
}

// StudentSelectedPayload carries a nil GameState when the student is unknown.
type StudentSelectedPayload struct {
	StudentID string     `json:"studentId"`
	GameState *LiveState `json:"gameState"`
}

type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type TeacherDisconnectedPayload struct {
	RoomCode string `json:"roomCode"`
}
