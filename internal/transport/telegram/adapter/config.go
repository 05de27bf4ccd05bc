package adapter

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration
	// URL overrides the Bot API endpoint (tests, local Bot API server).
	URL string
	// Offline skips the getMe call on construction.
	Offline bool
}
