// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Inbound command budget per WebSocket connection
	RateLimitMessages = 30
	RateLimitWindow   = time.Second

	// Size cap on validation payloads
	MaxValidateBody = 1 << 20
)
