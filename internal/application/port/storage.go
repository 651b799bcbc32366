package port

import "context"

// FileStorage resolves and reads files under a base directory
type FileStorage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error

	// Resolve returns the absolute path of a relative path, rejecting escapes from the base directory
	Resolve(path string) (string, error)

	// EnsureDir creates a directory under the base and returns its absolute path
	EnsureDir(ctx context.Context, name string) (string, error)
}
