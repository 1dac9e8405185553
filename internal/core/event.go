package core

import (
	"time"

	"github.com/google/uuid"
)

// ChangeOp names a persisted ledger mutation.
type ChangeOp string

const (
	OpAppend  ChangeOp = "append"
	OpReplace ChangeOp = "replace"
	OpRemove  ChangeOp = "remove"
)

// ChangeEvent describes a mutation after it was flushed to the ledger file.
// Entry is the written entry, or for a removal the entry that was removed;
// it is nil when the removed row could not be read.
type ChangeEvent struct {
	ID    uuid.UUID
	Op    ChangeOp
	Row   int
	Entry *Entry
	At    time.Time
}

// NewChangeEvent stamps a mutation with a fresh ID and the current time.
func NewChangeEvent(op ChangeOp, row int, e *Entry) ChangeEvent {
	return ChangeEvent{
		ID:    uuid.New(),
		Op:    op,
		Row:   row,
		Entry: e,
		At:    time.Now().UTC(),
	}
}
