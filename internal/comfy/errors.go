package comfy

import "fmt"

// UploadError is a failed image upload: either a non-success HTTP status or
// a response body that did not contain a stored filename.  Body carries the
// raw remote response for diagnostics.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("image upload failed (status %d): %s", e.Status, e.Body)
}

// SubmitError is a failed job submission: either a non-success HTTP status
// or a response with no job id.
type SubmitError struct {
	Status int
	Body   string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("job submission failed (status %d): %s", e.Status, e.Body)
}
