package utils

type contextKey string

// Request-scoped context keys
const (
	RequestIDKey contextKey = "X-Request-ID"
	UserAgentKey contextKey = "User-Agent"
	IPAddressKey contextKey = "IP-Address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)
