package config

import "time"

// Spectator room policy
const (
	RoomCodeLength     = 6
	RoomCodeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	MaxStudentsPerRoom = 10
	SweepInterval      = time.Hour
	RoomMaxAge         = 24 * time.Hour
)

// WebSocket connection limits and constraints
const (
	// Rate limiting
	MaxMessagesPerSecond = 30
	RateLimitWindow      = time.Second

	// Timeouts
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second

	// Inbound frame size; game state snapshots are small JSON documents
	MaxMessageSize = 64 * 1024

	// Channel buffers
	ClientSendBufferSize    = 256
	HubInboundBufferSize    = 256
	HubUnregisterBufferSize = 100
)
