// Package service defines the read-only data surface the host exposes to
// plugins. Plugins never touch host state directly; they go through the
// Proxy, whose methods return copies. Absence of optional state (no project
// open, nothing selected) is reported with an ok=false second return, while
// lookups of a specific id that does not exist return ErrNotFound.
package service

import (
	"errors"

	"github.com/yyuchenn/bubblefish-sub001/internal/model"
)

// ErrNotFound is returned when a lookup names an id the host does not know.
var ErrNotFound = errors.New("service: not found")

// Service method names, as addressed over the native bridge and checked by
// permission grants.
const (
	NameProject = "project"
	NameStats   = "stats"
	NameMarker  = "marker"
	NameImage   = "image"
)

// ProjectService reports on the currently open project.
type ProjectService interface {
	// Current returns the open project, or ok=false when none is open.
	Current() (model.Project, bool)
}

// StatsService reports aggregate counts for a project.
type StatsService interface {
	// ProjectStats returns statistics for the project with the given id.
	ProjectStats(projectID string) (model.Stats, error)
}

// MarkerService looks up individual markers.
type MarkerService interface {
	// Marker returns the marker with the given id.
	Marker(id string) (model.Marker, error)
}

// ImageService looks up image descriptors and pixel data.
type ImageService interface {
	// Image returns the descriptor for the image with the given id.
	Image(id string) (model.Image, error)

	// ImageData returns a copy of the raw encoded bytes for the image with
	// the given id, loading from disk for path-backed images.
	ImageData(id string) ([]byte, error)
}

// Proxy bundles every service a plugin may be granted access to. Fields are
// never nil in a proxy handed to a plugin; permission checks happen before
// the call reaches the underlying service.
type Proxy struct {
	Project ProjectService
	Stats   StatsService
	Marker  MarkerService
	Image   ImageService
}
