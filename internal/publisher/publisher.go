package publisher

import (
	"context"
)

// Publisher delivers digests and short notices to some output destination.
type Publisher interface {
	Publish(ctx context.Context, digest *Digest) error
	Notify(ctx context.Context, text string) error
}
