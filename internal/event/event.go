// Package event defines the closed set of domain events plugins can observe.
//
// Every occurrence the host reports to plugins is one of the Event variants
// in this package. Payloads are carried inline so a handler can usually react
// without a follow-up service call; the selection events additionally allow
// the host to attach a pre-fetched payload when it already has the data at
// hand. Events are immutable once created - handlers receive values, never
// shared pointers into host state.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/yyuchenn/bubblefish-sub001/internal/model"
)

// Event is implemented by every domain event variant. The type name is the
// subscription key plugins declare in their metadata.
type Event interface {
	EventType() string
}

// Event type names. These are the values plugins list in their subscribed
// event sets; Custom subscriptions use the custom event's own name.
const (
	TypeProjectCreated   = "ProjectCreated"
	TypeProjectOpened    = "ProjectOpened"
	TypeProjectSaved     = "ProjectSaved"
	TypeProjectClosed    = "ProjectClosed"
	TypeMarkerCreated    = "MarkerCreated"
	TypeMarkerUpdated    = "MarkerUpdated"
	TypeMarkerDeleted    = "MarkerDeleted"
	TypeMarkerSelected   = "MarkerSelected"
	TypeMarkerDeselected = "MarkerDeselected"
	TypeMarkersReordered = "MarkersReordered"
	TypeImageAdded       = "ImageAdded"
	TypeImageRemoved     = "ImageRemoved"
	TypeImageSelected    = "ImageSelected"
	TypeImageDeselected  = "ImageDeselected"
	TypeImagesReordered  = "ImagesReordered"
	TypeUndoPerformed    = "UndoPerformed"
	TypeRedoPerformed    = "RedoPerformed"
	TypeStatsUpdated     = "StatsUpdated"
	TypeSystemReady      = "SystemReady"
	TypeSystemShutdown   = "SystemShutdown"
)

// ProjectCreated reports a newly created project.
type ProjectCreated struct {
	Project model.Project `json:"project"`
}

// ProjectOpened reports an existing project being opened.
type ProjectOpened struct {
	Project model.Project `json:"project"`
}

// ProjectSaved reports a project save.
type ProjectSaved struct {
	Project model.Project `json:"project"`
}

// ProjectClosed reports the current project closing. It carries no payload;
// after delivery the project service reports no current project.
type ProjectClosed struct{}

// MarkerCreated reports a new marker.
type MarkerCreated struct {
	Marker model.Marker `json:"marker"`
}

// MarkerUpdated carries both the previous and the new marker state.
type MarkerUpdated struct {
	Old model.Marker `json:"old"`
	New model.Marker `json:"new"`
}

// MarkerDeleted reports a marker removal. Only the id survives deletion.
type MarkerDeleted struct {
	MarkerID string `json:"marker_id"`
}

// MarkerSelected reports a marker selection. Marker is optionally pre-fetched
// by the host; when nil, handlers that need the payload look it up through
// the marker service.
type MarkerSelected struct {
	MarkerID string        `json:"marker_id"`
	Marker   *model.Marker `json:"marker,omitempty"`
}

// MarkerDeselected reports a marker deselection.
type MarkerDeselected struct {
	MarkerID string `json:"marker_id"`
}

// MarkersReordered reports a new marker ordering.
type MarkersReordered struct {
	MarkerIDs []string `json:"marker_ids"`
}

// ImageAdded reports a new image in the project.
type ImageAdded struct {
	Image model.Image `json:"image"`
}

// ImageRemoved reports an image removal.
type ImageRemoved struct {
	ImageID string `json:"image_id"`
}

// ImageSelected reports an image selection, with an optional pre-fetched
// payload like MarkerSelected.
type ImageSelected struct {
	ImageID string       `json:"image_id"`
	Image   *model.Image `json:"image,omitempty"`
}

// ImageDeselected reports the current image being deselected.
type ImageDeselected struct{}

// ImagesReordered reports a new image ordering.
type ImagesReordered struct {
	ImageIDs []string `json:"image_ids"`
}

// UndoPerformed reports an undo of the named action.
type UndoPerformed struct {
	Action string `json:"action"`
}

// RedoPerformed reports a redo of the named action.
type RedoPerformed struct {
	Action string `json:"action"`
}

// StatsUpdated reports refreshed aggregate counts.
type StatsUpdated struct {
	Stats model.Stats `json:"stats"`
}

// SystemReady signals that the host finished startup. Delivered to every
// plugin regardless of its declared subscriptions.
type SystemReady struct{}

// SystemShutdown signals imminent host shutdown. Delivered to every plugin
// regardless of its declared subscriptions.
type SystemShutdown struct{}

// Custom is an open-ended named event with a structured payload. It is the
// only variant whose type name is not fixed at compile time.
type Custom struct {
	Name string
	Data map[string]any
}

func (ProjectCreated) EventType() string   { return TypeProjectCreated }
func (ProjectOpened) EventType() string    { return TypeProjectOpened }
func (ProjectSaved) EventType() string     { return TypeProjectSaved }
func (ProjectClosed) EventType() string    { return TypeProjectClosed }
func (MarkerCreated) EventType() string    { return TypeMarkerCreated }
func (MarkerUpdated) EventType() string    { return TypeMarkerUpdated }
func (MarkerDeleted) EventType() string    { return TypeMarkerDeleted }
func (MarkerSelected) EventType() string   { return TypeMarkerSelected }
func (MarkerDeselected) EventType() string { return TypeMarkerDeselected }
func (MarkersReordered) EventType() string { return TypeMarkersReordered }
func (ImageAdded) EventType() string       { return TypeImageAdded }
func (ImageRemoved) EventType() string     { return TypeImageRemoved }
func (ImageSelected) EventType() string    { return TypeImageSelected }
func (ImageDeselected) EventType() string  { return TypeImageDeselected }
func (ImagesReordered) EventType() string  { return TypeImagesReordered }
func (UndoPerformed) EventType() string    { return TypeUndoPerformed }
func (RedoPerformed) EventType() string    { return TypeRedoPerformed }
func (StatsUpdated) EventType() string     { return TypeStatsUpdated }
func (SystemReady) EventType() string      { return TypeSystemReady }
func (SystemShutdown) EventType() string   { return TypeSystemShutdown }

func (c Custom) EventType() string { return c.Name }

// IsSystem reports whether the event is a system lifecycle notification that
// bypasses subscription filtering.
func IsSystem(e Event) bool {
	switch e.(type) {
	case SystemReady, SystemShutdown:
		return true
	default:
		return false
	}
}

// Metadata is the standard information attached to a dispatched event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was published.
	Timestamp time.Time

	// Source identifies the publisher: "host" for domain events, a plugin id
	// for custom events emitted by a plugin.
	Source string
}

// Envelope pairs an event with its metadata for dispatch.
type Envelope struct {
	Event    Event
	Metadata Metadata
}

// NewEnvelope wraps an event with fresh metadata.
func NewEnvelope(e Event, source string) Envelope {
	return Envelope{
		Event: e,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// Sink accepts published events. It is implemented by the plugin dispatch
// layer and consumed by components that report occurrences, such as the
// bunny job executor.
type Sink interface {
	Publish(e Event)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(e Event)

// Publish implements the Sink interface.
func (f SinkFunc) Publish(e Event) {
	f(e)
}
