package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the server accepts a GraphQL request.
type HTTPStart struct {
	Request   *http.Request
	RequestID string
}

// HTTPFinish is emitted after the response is written. For subscription
// streams Duration covers the whole stream.
type HTTPFinish struct {
	Request   *http.Request
	RequestID string
	Status    int
	Streamed  bool
	Duration  time.Duration
}
