// Package bunny manages OCR and translation services contributed by
// plugins. Plugins register service descriptors with a provider
// implementation; the host lists them, routes recognition and translation
// jobs to them through the executor, and tears a plugin's services down when
// the plugin unloads.
package bunny

import (
	"sync"

	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
)

// OCRServiceInfo describes a registered text-recognition service.
type OCRServiceInfo struct {
	ServiceID string   `json:"service_id"`
	Name      string   `json:"name"`
	Languages []string `json:"languages,omitempty"`
}

// TranslationServiceInfo describes a registered translation service.
type TranslationServiceInfo struct {
	ServiceID       string   `json:"service_id"`
	Name            string   `json:"name"`
	SourceLanguages []string `json:"source_languages,omitempty"`
	TargetLanguages []string `json:"target_languages,omitempty"`
}

// RegisteredOCRService is an OCR descriptor annotated with its owner.
type RegisteredOCRService struct {
	OCRServiceInfo
	PluginID string `json:"plugin_id"`
}

// RegisteredTranslationService is a translation descriptor annotated with
// its owner.
type RegisteredTranslationService struct {
	TranslationServiceInfo
	PluginID string `json:"plugin_id"`
}

type ocrEntry struct {
	info     OCRServiceInfo
	provider OCRProvider
}

type translationEntry struct {
	info     TranslationServiceInfo
	provider TranslationProvider
}

// Registry indexes bunny services three ways: OCR entries by service id,
// translation entries by service id, and an ownership map from service id to
// plugin id. A service id lives in exactly one of the two kind maps and
// always has an ownership entry; every mutation maintains all three under
// one lock.
type Registry struct {
	mu     sync.RWMutex
	ocr    map[string]ocrEntry
	trans  map[string]translationEntry
	owners map[string]string
	log    *logging.Logger
}

// NewRegistry returns an empty registry. A nil logger disables displacement
// warnings.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		ocr:    make(map[string]ocrEntry),
		trans:  make(map[string]translationEntry),
		owners: make(map[string]string),
		log:    log,
	}
}

// RegisterOCR registers an OCR service owned by pluginID. Re-registering an
// existing service id displaces the previous registration, whatever its kind
// or owner; the displacement is logged but never an error.
func (r *Registry) RegisterOCR(pluginID string, info OCRServiceInfo, p OCRProvider) {
	r.mu.Lock()
	r.warnDisplaced(info.ServiceID, pluginID)
	delete(r.trans, info.ServiceID)
	r.ocr[info.ServiceID] = ocrEntry{info: info, provider: p}
	r.owners[info.ServiceID] = pluginID
	r.mu.Unlock()
}

// RegisterTranslation registers a translation service owned by pluginID,
// with the same last-writer-wins behavior as RegisterOCR.
func (r *Registry) RegisterTranslation(pluginID string, info TranslationServiceInfo, p TranslationProvider) {
	r.mu.Lock()
	r.warnDisplaced(info.ServiceID, pluginID)
	delete(r.ocr, info.ServiceID)
	r.trans[info.ServiceID] = translationEntry{info: info, provider: p}
	r.owners[info.ServiceID] = pluginID
	r.mu.Unlock()
}

// warnDisplaced logs when a registration overwrites an existing service.
// Caller holds the lock.
func (r *Registry) warnDisplaced(serviceID, newOwner string) {
	if prev, ok := r.owners[serviceID]; ok {
		r.log.Warn("bunny service %q re-registered by plugin %q, displacing plugin %q", serviceID, newOwner, prev)
	}
}

// UnregisterService removes the service with the given id and reports
// whether it was registered.
func (r *Registry) UnregisterService(serviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[serviceID]; !ok {
		return false
	}
	delete(r.ocr, serviceID)
	delete(r.trans, serviceID)
	delete(r.owners, serviceID)
	return true
}

// UnregisterPluginServices removes every service owned by pluginID in one
// step and returns the removed service ids.
func (r *Registry) UnregisterPluginServices(pluginID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, owner := range r.owners {
		if owner != pluginID {
			continue
		}
		delete(r.ocr, id)
		delete(r.trans, id)
		delete(r.owners, id)
		removed = append(removed, id)
	}
	return removed
}

// OCRServices returns a snapshot of every registered OCR service.
func (r *Registry) OCRServices() []RegisteredOCRService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredOCRService, 0, len(r.ocr))
	for id, e := range r.ocr {
		out = append(out, RegisteredOCRService{OCRServiceInfo: e.info, PluginID: r.owners[id]})
	}
	return out
}

// TranslationServices returns a snapshot of every registered translation
// service.
func (r *Registry) TranslationServices() []RegisteredTranslationService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredTranslationService, 0, len(r.trans))
	for id, e := range r.trans {
		out = append(out, RegisteredTranslationService{TranslationServiceInfo: e.info, PluginID: r.owners[id]})
	}
	return out
}

// PluginForService returns the owner of the service with the given id.
func (r *Registry) PluginForService(serviceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[serviceID]
	return owner, ok
}

// OCRProviderFor returns the provider behind an OCR service id.
func (r *Registry) OCRProviderFor(serviceID string) (OCRProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.ocr[serviceID]
	if !ok {
		return nil, false
	}
	return e.provider, true
}

// TranslationProviderFor returns the provider behind a translation service
// id.
func (r *Registry) TranslationProviderFor(serviceID string) (TranslationProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.trans[serviceID]
	if !ok {
		return nil, false
	}
	return e.provider, true
}

// Len reports the number of registered services of both kinds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
