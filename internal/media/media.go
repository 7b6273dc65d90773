// Package media abstracts the external media store that holds uploaded
// chat images. The core only ever releases handles; uploading is done by
// clients against the media service directly.
package media

import "context"

// Releaser permanently deletes an uploaded asset by its public id.
// Destroy is best-effort and idempotent: destroying an already-gone handle
// is not an error.
type Releaser interface {
	Destroy(ctx context.Context, publicID string) error
}

// Noop is a Releaser that does nothing, used when no media store is
// configured and in tests.
type Noop struct{}

// Destroy implements Releaser.
func (Noop) Destroy(ctx context.Context, publicID string) error { return nil }
