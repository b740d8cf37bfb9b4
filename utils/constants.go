package utils

import (
	"time"
)

// Token constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (60 minutes)
	AccessTokenTTL = 60 * time.Minute
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Feed constants
const (
	DefaultFeedPageSize = 10
	MaxFeedPageSize     = 50

	// DefaultCandidateWindow is how many of the newest posts are scored per request
	DefaultCandidateWindow = 500

	ViewerCacheKeyPrefix = "feed:viewer:"
)

// Boost event topics
const (
	BoostEventsTopic = "boost.events"
)
