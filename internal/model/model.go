// Package model defines the domain data types the runtime exchanges with
// plugins: projects, markers, images, and aggregate statistics. These are the
// plugin-visible views of host state; the host's own stores are external to
// the runtime and only reachable through the service proxy.
package model

import (
	"path/filepath"
	"strings"
)

// Project identifies an open translation project.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// GeometryKind discriminates marker geometry shapes.
type GeometryKind string

// Marker geometry kinds.
const (
	GeometryPoint     GeometryKind = "point"
	GeometryRectangle GeometryKind = "rectangle"
)

// MarkerGeometry is the placement of a marker on an image. Points carry only
// an origin; rectangles also carry a size.
type MarkerGeometry struct {
	Kind   GeometryKind `json:"kind"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Width  float64      `json:"width,omitempty"`
	Height float64      `json:"height,omitempty"`
}

// Marker is a translation marker anchored to an image.
type Marker struct {
	ID          string         `json:"id"`
	ImageID     string         `json:"image_id"`
	Geometry    MarkerGeometry `json:"geometry"`
	Text        string         `json:"text"`
	Translation string         `json:"translation"`
	ImageIndex  int            `json:"image_index"`
}

// Translated reports whether the marker has a non-empty translation.
func (m Marker) Translated() bool {
	return strings.TrimSpace(m.Translation) != ""
}

// ImageFormat names a supported raster image format.
type ImageFormat string

// Supported image formats.
const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatWebP ImageFormat = "webp"
	FormatBMP  ImageFormat = "bmp"
)

// FormatFromPath derives the image format from a file path extension.
// Returns "" for unrecognized extensions.
func FormatFromPath(path string) ImageFormat {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "webp":
		return FormatWebP
	case "bmp":
		return FormatBMP
	default:
		return ""
	}
}

// MIMEType returns the canonical MIME type for the format.
func (f ImageFormat) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// Image is the metadata view of an image in a project. The pixel payload is
// either backed by a file on disk (Path set) or held in memory by the host
// (Data set); the service proxy's binary accessor resolves whichever backing
// is present. Path and Data are never both set.
type Image struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Format ImageFormat `json:"format"`
	Size   int64       `json:"size"`

	// Backing. Exactly one of Path or Data is populated.
	Path string `json:"path,omitempty"`
	Data []byte `json:"-"`
}

// InMemory reports whether the image payload is held in memory by the host.
func (img Image) InMemory() bool {
	return img.Path == "" && img.Data != nil
}

// Stats are the aggregate counts for a project.
type Stats struct {
	ProjectID         string `json:"project_id"`
	TotalImages       int    `json:"total_images"`
	TotalMarkers      int    `json:"total_markers"`
	TranslatedMarkers int    `json:"translated_markers"`
}

// UntranslatedMarkers returns the count of markers still lacking a translation.
func (s Stats) UntranslatedMarkers() int {
	return s.TotalMarkers - s.TranslatedMarkers
}
