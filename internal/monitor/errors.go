package monitor

import (
	"fmt"
)

// StoreReadError means the previous snapshot could not be loaded, the course is diffed
// against an empty snapshot instead.
type StoreReadError struct {
	Course string
	Err    error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("load previous snapshot of %s: %v", e.Course, e.Err)
}

func (e *StoreReadError) Unwrap() error {
	return e.Err
}

// StoreWriteError means the new snapshot could not be saved, the stored snapshot stays
// stale until a later cycle saves successfully.
type StoreWriteError struct {
	Course string
	Err    error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("save snapshot of %s: %v", e.Course, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// DispatchError means the notification for a course could not be delivered, the snapshot
// is still saved.
type DispatchError struct {
	Course string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("notify subscribers of %s: %v", e.Course, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PanicError is a panic recovered while processing a course.
type PanicError struct {
	Course string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while monitoring %s: %v", e.Course, e.Value)
}
