// internal/app/system/limits/limits.go
package limits

// Size caps for inbound data. They bound memory per request and per
// websocket frame.
const (
	// MaxJSONBody is the largest REST request body read by room handlers.
	MaxJSONBody = 64 << 10 // 64 KiB

	// MaxSignInBody is the largest body accepted by POST /session.
	MaxSignInBody = 16 << 10 // 16 KiB

	// MaxSocketFrame is the largest inbound websocket frame. Chat text is
	// capped well below this.
	MaxSocketFrame = 8 << 10 // 8 KiB
)
