package models

import "encoding/json"

type CreateRoomPayload struct {
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName"`
}

type JoinRoomPayload struct {
	RoomCode    string `json:"roomCode"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
}

type SyncGameStatePayload struct {
	RoomCode  string        `json:"roomCode"`
	StudentID string        `json:"studentId"`
	GameState GameStateData `json:"gameState"`
}

// GameStateData is what a student reports; GameData is never interpreted here.
type GameStateData struct {
	CurrentGame string          `json:"currentGame"`
	GameData    json.RawMessage `json:"gameData,omitempty"`
}

type GameActionPayload struct {
	RoomCode  string          `json:"roomCode"`
	StudentID string          `json:"studentId"`
	Action    json.RawMessage `json:"action"`
}

type SelectStudentPayload struct {
	RoomCode  string `json:"roomCode"`
	StudentID string `json:"studentId"`
}
