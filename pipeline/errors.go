package pipeline

import "fmt"

// ErrNoElements is reported when extraction finds zero interactive
// candidates. There is nothing to classify and no retry.
type ErrNoElements struct {
	PageURL string
}

func (e *ErrNoElements) Error() string {
	return fmt.Sprintf("pipeline: no interactive elements found on %s", e.PageURL)
}

// ErrAlreadyRunning is reported when Run is invoked while a previous
// invocation is still in flight. The second invocation is rejected, not
// queued.
type ErrAlreadyRunning struct {
	State State
}

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("pipeline: already in progress (state %s)", e.State)
}
