// Package events declares the events the store and the client publish on
// the event bus.
package events

import "time"

// FetchStart is emitted when a fetch operation starts.
type FetchStart struct {
	OperationName string
	OperationType string
	Policy        string
}

// FetchFinish is emitted when a fetch operation delivers, fails or is
// cancelled.
type FetchFinish struct {
	OperationName string
	OperationType string
	Policy        string
	Source        string
	Errors        int
	Err           error
	Cancelled     bool
	Duration      time.Duration
}

// NetworkStart is emitted before an operation is sent to the transport.
type NetworkStart struct {
	OperationName string
	OperationType string
}

// NetworkFinish is emitted after the transport responds.
type NetworkFinish struct {
	OperationName string
	OperationType string
	Err           error
	Duration      time.Duration
}

// WatcherRefresh is emitted when a published change makes a watcher
// refetch.
type WatcherRefresh struct {
	OperationName string
	Changed       int
}
