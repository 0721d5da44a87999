// internal/app/system/limits/limits.go
package limits

// Request body size limits for various features.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the maximum size for API request bodies.
	MaxJSONBody = 256 << 10 // 256 KB

	// MaxChatContent is the maximum length, in bytes, of a chat message
	// after sanitization.
	MaxChatContent = 4 << 10 // 4 KB
)
