package service

import (
	"fmt"
	"os"
	"sync"

	"github.com/yyuchenn/bubblefish-sub001/internal/model"
)

// Store is an in-memory implementation of every plugin-facing service. The
// host mutates it through the setter methods and hands plugins a Proxy built
// over it; all reads return copies.
type Store struct {
	mu      sync.RWMutex
	project *model.Project
	markers map[string]model.Marker
	images  map[string]model.Image
	stats   map[string]model.Stats
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		markers: make(map[string]model.Marker),
		images:  make(map[string]model.Image),
		stats:   make(map[string]model.Stats),
	}
}

// Proxy returns a service proxy backed by the store.
func (s *Store) Proxy() *Proxy {
	return &Proxy{Project: s, Stats: s, Marker: s, Image: s}
}

// SetProject makes p the current project.
func (s *Store) SetProject(p model.Project) {
	s.mu.Lock()
	s.project = &p
	s.mu.Unlock()
}

// CloseProject clears the current project.
func (s *Store) CloseProject() {
	s.mu.Lock()
	s.project = nil
	s.mu.Unlock()
}

// PutMarker inserts or replaces a marker.
func (s *Store) PutMarker(m model.Marker) {
	s.mu.Lock()
	s.markers[m.ID] = m
	s.mu.Unlock()
}

// DeleteMarker removes a marker by id.
func (s *Store) DeleteMarker(id string) {
	s.mu.Lock()
	delete(s.markers, id)
	s.mu.Unlock()
}

// PutImage inserts or replaces an image descriptor.
func (s *Store) PutImage(img model.Image) {
	s.mu.Lock()
	s.images[img.ID] = img
	s.mu.Unlock()
}

// DeleteImage removes an image by id.
func (s *Store) DeleteImage(id string) {
	s.mu.Lock()
	delete(s.images, id)
	s.mu.Unlock()
}

// SetStats records aggregate counts for a project.
func (s *Store) SetStats(st model.Stats) {
	s.mu.Lock()
	s.stats[st.ProjectID] = st
	s.mu.Unlock()
}

// Current implements ProjectService.
func (s *Store) Current() (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return model.Project{}, false
	}
	return *s.project, true
}

// ProjectStats implements StatsService.
func (s *Store) ProjectStats(projectID string) (model.Stats, error) {
	s.mu.RLock()
	st, ok := s.stats[projectID]
	s.mu.RUnlock()
	if !ok {
		return model.Stats{}, fmt.Errorf("stats for project %q: %w", projectID, ErrNotFound)
	}
	return st, nil
}

// Marker implements MarkerService.
func (s *Store) Marker(id string) (model.Marker, error) {
	s.mu.RLock()
	m, ok := s.markers[id]
	s.mu.RUnlock()
	if !ok {
		return model.Marker{}, fmt.Errorf("marker %q: %w", id, ErrNotFound)
	}
	return m, nil
}

// Image implements ImageService.
func (s *Store) Image(id string) (model.Image, error) {
	s.mu.RLock()
	img, ok := s.images[id]
	s.mu.RUnlock()
	if !ok {
		return model.Image{}, fmt.Errorf("image %q: %w", id, ErrNotFound)
	}
	return img, nil
}

// ImageData implements ImageService. In-memory images return a copy of their
// bytes; path-backed images are read from disk on every call.
func (s *Store) ImageData(id string) ([]byte, error) {
	img, err := s.Image(id)
	if err != nil {
		return nil, err
	}
	if img.InMemory() {
		data := make([]byte, len(img.Data))
		copy(data, img.Data)
		return data, nil
	}
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("read image %q: %w", id, err)
	}
	return data, nil
}
