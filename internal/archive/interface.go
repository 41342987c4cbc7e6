package archive

import "context"

// Archive defines the contract for long-term blob storage of session records
type Archive interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
}
