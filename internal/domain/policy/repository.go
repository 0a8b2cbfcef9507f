package policy

import "context"

// Repository defines persistence operations for policy versions.
type Repository interface {
	// FindActive returns the published version for slug.
	FindActive(ctx context.Context, slug string) (*Version, error)

	// Publish unpublishes the current version of v.Slug and stores v as the
	// published one, atomically.
	Publish(ctx context.Context, v *Version) error

	// ListVersions returns every version of slug, newest first.
	ListVersions(ctx context.Context, slug string) ([]*Version, error)
}
