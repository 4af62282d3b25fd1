package security

import (
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/winniek75/flashinput-sub005/internal/models"
)

// WebSocket message type validation
var validMessageTypes = map[string]bool{
	models.MsgTypeCreateRoom:    true,
	models.MsgTypeJoinRoom:      true,
	models.MsgTypeSyncGameState: true,
	models.MsgTypeGameAction:    true,
	models.MsgTypeSelectStudent: true,
	models.MsgTypeLeaveRoom:     true,
}

// IsValidMessageType checks if an inbound WebSocket message type is valid
func IsValidMessageType(msgType string) bool {
	return validMessageTypes[msgType]
}

// RateLimiter provides per-connection rate limiting for WebSocket messages
type RateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	maxTokens int
	window    time.Duration
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
// maxTokens: maximum messages per window
// window: time window for rate limiting (e.g., 1 second)
func NewRateLimiter(maxTokens int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		maxTokens: maxTokens,
		window:    window,
		now:       time.Now,
	}
}

// Allow checks if a connection is allowed to send a message
// Returns true if allowed, false if rate limit exceeded
func (rl *RateLimiter) Allow(connID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastReset) > rl.window {
		rl.tokens = make(map[string]int)
		rl.lastReset = now
	}

	rl.tokens[connID]++

	return rl.tokens[connID] <= rl.maxTokens
}

// Remove cleans up rate limiter state for a disconnected connection
func (rl *RateLimiter) Remove(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.tokens, connID)
}

// OriginValidator validates WebSocket connection origins
type OriginValidator struct {
	allowedPatterns []string
}

// NewOriginValidator creates a new origin validator
func NewOriginValidator(patterns []string) *OriginValidator {
	return &OriginValidator{
		allowedPatterns: patterns,
	}
}

// GetAcceptOptions returns websocket.AcceptOptions with origin patterns
func (ov *OriginValidator) GetAcceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{
		OriginPatterns: ov.allowedPatterns,
	}
}
