package notifications

import "context"

// Notifier delivers impact digests to the configured channels
type Notifier interface {
	SendDigest(ctx context.Context, digest *Digest) error
}
