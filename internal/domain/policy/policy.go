// Package policy holds versions of the platform Insurance & Damage policy.
package policy

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rigshare/service-booking/pkg/domain"
)

// DefaultSlug identifies the Insurance & Damage policy.
const DefaultSlug = "insurance-damage"

// Version is one published revision of a policy. Versions per slug increase
// monotonically and at most one is published at a time.
type Version struct {
	ID          uuid.UUID
	Slug        string
	Version     int
	Title       string
	Content     string
	Published   bool
	PublishedAt *time.Time
	PublishedBy uuid.UUID
	CreatedAt   time.Time
}

// NewPublishedVersion creates the successor of current (nil when the slug
// has never been published).
func NewPublishedVersion(slug, title, content string, current *Version, publishedBy uuid.UUID) (*Version, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, domain.NewValidationError("policy slug is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewValidationError("policy content is required")
	}

	next := 1
	if current != nil {
		next = current.Version + 1
	}
	now := time.Now().UTC()
	return &Version{
		ID:          uuid.New(),
		Slug:        slug,
		Version:     next,
		Title:       title,
		Content:     content,
		Published:   true,
		PublishedAt: &now,
		PublishedBy: publishedBy,
		CreatedAt:   now,
	}, nil
}
