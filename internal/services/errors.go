package services

import "errors"

var (
	// ErrRoomNotFound means the referenced room code has no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull means the room already holds the maximum number of students.
	ErrRoomFull = errors.New("room is full")
	// ErrInvalidPayload wraps missing or malformed request fields.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnknownMessageType is returned for envelopes with an unsupported type.
	ErrUnknownMessageType = errors.New("unknown message type")
)
