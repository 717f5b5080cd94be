package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Method names understood by the built-in handlers.
const (
	MethodCurrent      = "current"
	MethodProjectStats = "project_stats"
	MethodGet          = "get"
	MethodGetData      = "get_data"
)

// Registry errors, distinguished so bridge callers can map a bad address to
// a protocol problem rather than missing data.
var (
	ErrUnknownService = errors.New("service: unknown service")
	ErrUnknownMethod  = errors.New("service: unknown method")
)

// Handler answers JSON-encoded calls for one named service. Params and
// results are JSON documents; a nil params slice means no arguments.
type Handler interface {
	// Name returns the service name the handler answers for.
	Name() string

	// Methods lists the method names the handler accepts.
	Methods() []string

	// Call invokes method with the given JSON params.
	Call(method string, params []byte) ([]byte, error)
}

// Registry routes JSON service calls by service name. It is the host half
// of the native bridge's CallService callback.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a registry with handlers for every service in proxy.
func NewRegistry(proxy *Proxy) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register(projectHandler{proxy.Project})
	r.Register(statsHandler{proxy.Stats})
	r.Register(markerHandler{proxy.Marker})
	r.Register(imageHandler{proxy.Image})
	return r
}

// Register adds a handler, replacing any previous handler with the same
// name. Not safe for concurrent use with Call; register everything before
// serving.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Call routes to the named service and method.
func (r *Registry) Call(service, method string, params []byte) ([]byte, error) {
	h, ok := r.handlers[service]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	return h.Call(method, params)
}

// Services lists the registered service names.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

func unknownMethod(service, method string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, service, method)
}

// stringParam extracts a required string field from JSON params.
func stringParam(params []byte, key string) (string, error) {
	v := gjson.GetBytes(params, key)
	if !v.Exists() || v.Type != gjson.String {
		return "", fmt.Errorf("service: missing string param %q", key)
	}
	return v.String(), nil
}

type projectHandler struct {
	svc ProjectService
}

func (projectHandler) Name() string      { return NameProject }
func (projectHandler) Methods() []string { return []string{MethodCurrent} }

// Call answers "current" with {"project": {...}} or {"project": null} when
// no project is open. Absence is data, not an error.
func (h projectHandler) Call(method string, params []byte) ([]byte, error) {
	if method != MethodCurrent {
		return nil, unknownMethod(NameProject, method)
	}
	p, ok := h.svc.Current()
	if !ok {
		return []byte(`{"project":null}`), nil
	}
	return marshalField("project", p)
}

type statsHandler struct {
	svc StatsService
}

func (statsHandler) Name() string      { return NameStats }
func (statsHandler) Methods() []string { return []string{MethodProjectStats} }

func (h statsHandler) Call(method string, params []byte) ([]byte, error) {
	if method != MethodProjectStats {
		return nil, unknownMethod(NameStats, method)
	}
	id, err := stringParam(params, "project_id")
	if err != nil {
		return nil, err
	}
	st, err := h.svc.ProjectStats(id)
	if err != nil {
		return nil, err
	}
	return marshalField("stats", st)
}

type markerHandler struct {
	svc MarkerService
}

func (markerHandler) Name() string      { return NameMarker }
func (markerHandler) Methods() []string { return []string{MethodGet} }

func (h markerHandler) Call(method string, params []byte) ([]byte, error) {
	if method != MethodGet {
		return nil, unknownMethod(NameMarker, method)
	}
	id, err := stringParam(params, "marker_id")
	if err != nil {
		return nil, err
	}
	m, err := h.svc.Marker(id)
	if err != nil {
		return nil, err
	}
	return marshalField("marker", m)
}

type imageHandler struct {
	svc ImageService
}

func (imageHandler) Name() string      { return NameImage }
func (imageHandler) Methods() []string { return []string{MethodGet, MethodGetData} }

func (h imageHandler) Call(method string, params []byte) ([]byte, error) {
	switch method {
	case MethodGet:
		id, err := stringParam(params, "image_id")
		if err != nil {
			return nil, err
		}
		img, err := h.svc.Image(id)
		if err != nil {
			return nil, err
		}
		return marshalField("image", img)
	case MethodGetData:
		id, err := stringParam(params, "image_id")
		if err != nil {
			return nil, err
		}
		data, err := h.svc.ImageData(id)
		if err != nil {
			return nil, err
		}
		out, err := sjson.SetBytes([]byte(`{}`), "size", len(data))
		if err != nil {
			return nil, err
		}
		return sjson.SetBytes(out, "data", base64.StdEncoding.EncodeToString(data))
	default:
		return nil, unknownMethod(NameImage, method)
	}
}

// marshalField wraps v as {"<key>": <v>}.
func marshalField(key string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes([]byte(`{}`), key, raw)
}
