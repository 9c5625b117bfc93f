package events

import "time"

// StoreLoad is emitted after an operation is read from the store.
type StoreLoad struct {
	OperationName string
	DependentKeys int
	Err           error
	Duration      time.Duration
}

// StorePublish is emitted after records are merged into the store.
type StorePublish struct {
	Records   int
	Changed   int
	ContextID string
	Err       error
	Duration  time.Duration
}

// StoreClear is emitted after the store dropped every record.
type StoreClear struct {
	Err error
}
