package classify

import "fmt"

// ServiceError covers every way the remote classification service can fail:
// transport errors, non-2xx statuses, bodies that are not valid JSON, and
// JSON bodies whose payload is not an array. Callers treat all of these the
// same way — recover locally via the fallback classifier.
type ServiceError struct {
	Op     string // "request", "status", "decode"
	Status int    // HTTP status when Op == "status", else 0
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("classify: service %s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("classify: service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ErrEmptyBatch is returned when Classify is called with no descriptors.
// The service contract forbids empty batches; the pipeline never produces
// one, so hitting this is a programming error.
type ErrEmptyBatch struct{}

func (ErrEmptyBatch) Error() string { return "classify: empty batch" }

// ErrBatchTooLarge is returned when a batch exceeds MaxBatch. Chunking is
// the pipeline's responsibility.
type ErrBatchTooLarge struct {
	Size int
}

func (e ErrBatchTooLarge) Error() string {
	return fmt.Sprintf("classify: batch of %d exceeds limit of %d", e.Size, MaxBatch)
}
