// Package backend abstracts the language-model service producing assistant
// replies. Two variants exist: a hosted chat-completions API and a stateless
// local server. Callers depend only on the Backend contract; provider-native
// request shapes never leave this package.
package backend

import (
	"context"
	"errors"

	"spectra/internal/conversation"
)

// ErrUnavailable wraps any failure to reach the model service or obtain a
// well-formed reply from it. A turn that hits it must be aborted without
// history mutation.
var ErrUnavailable = errors.New("model backend unavailable")

// UnsupportedImageReply is returned in place of a model reply when an image
// is attached on a backend that cannot process images. The turn completes
// and is recorded normally.
const UnsupportedImageReply = "(image received, but image analysis is not supported on this backend)"

// Request carries one chat turn's provider-agnostic input.
type Request struct {
	SystemPrompt string
	History      []conversation.Message
	UserText     string
	Images       []string // base64-encoded payloads
}

// Backend generates a reply for a chat turn.
type Backend interface {
	Name() string
	// SupportsImages reports whether image payloads can be forwarded.
	SupportsImages() bool
	// SystemInHistory reports whether the persona prompt must be embedded as
	// a system-role history entry rather than applied per request.
	SystemInHistory() bool
	Generate(ctx context.Context, req Request) (string, error)
}
