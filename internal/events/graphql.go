package events

import "time"

// OperationStart is emitted before executing a query or mutation.
type OperationStart struct {
	Query         string
	OperationName string
	OperationType string
}

// OperationFinish is emitted after executing a query or mutation.
type OperationFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// SubscriptionStart is emitted when a subscription stream opens.
type SubscriptionStart struct {
	OperationName string
	Field         string
}

// SubscriptionFinish is emitted when a subscription stream is closed.
type SubscriptionFinish struct {
	OperationName string
	Field         string
	Events        int
	Duration      time.Duration
}
