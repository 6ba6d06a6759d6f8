// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the websocket handlers. These provide
// more specific reasons for closure than standard codes.
const (
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidUserIDError    = 3002 // User ID derived from token was malformed or invalid.
	InvalidRoomCodeError  = 3003 // Target room code in the WS URL is missing or malformed.
)
