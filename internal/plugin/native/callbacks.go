package native

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin/security"
	"github.com/yyuchenn/bubblefish-sub001/internal/service"
)

// Status codes returned by the ReadImageFile callback.
const (
	StatusOK       int32 = 0
	StatusNotFound int32 = 1
	StatusDenied   int32 = 2
	StatusError    int32 = 3
)

// Callback table errors.
var (
	// ErrAlreadyInstalled is returned when a second callback table is
	// installed into the same plugin. This is a protocol violation; the
	// caller must treat it as fatal for the plugin, not retry.
	ErrAlreadyInstalled = errors.New("native: callbacks already installed")

	// ErrNotInstalled is returned when a bridge call happens before the
	// host installed its callbacks.
	ErrNotInstalled = errors.New("native: callbacks not installed")

	// ErrPermissionDenied is returned when a callback is invoked for a
	// service the plugin was not granted.
	ErrPermissionDenied = errors.New("native: permission denied")
)

// Callbacks is the function table the host installs into a plugin. A nil
// buffer from CallService signals failure at the boundary; ReadImageFile
// reports failure through its status code.
type Callbacks struct {
	// CallService routes a JSON service call. Returns nil when the call
	// failed for any reason.
	CallService func(svc, method string, params []byte) *HostBuffer

	// ReadImageFile loads an image file from the host side. On any non-OK
	// status the buffer is nil.
	ReadImageFile func(path string) (*HostBuffer, int32)

	// Log writes a message to the host log at the given severity.
	Log func(level int32, msg string)
}

// Table holds the callbacks installed into one plugin. Installation happens
// exactly once, before any bridge traffic.
type Table struct {
	mu sync.Mutex
	cb *Callbacks
}

// Install sets the callback table. A second call fails with
// ErrAlreadyInstalled and leaves the first table in place.
func (t *Table) Install(cb *Callbacks) error {
	if cb == nil {
		return errors.New("native: nil callbacks")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cb != nil {
		return ErrAlreadyInstalled
	}
	t.cb = cb
	return nil
}

// Installed reports whether a table has been installed.
func (t *Table) Installed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cb != nil
}

func (t *Table) get() (*Callbacks, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cb == nil {
		return nil, ErrNotInstalled
	}
	return t.cb, nil
}

// NewHostCallbacks builds the callback table the host installs for one
// plugin. Service calls are routed through reg after a permission check
// against grants; log lines are tagged with the plugin id.
func NewHostCallbacks(pluginID string, reg *service.Registry, grants *security.Grants, log *logging.Logger) *Callbacks {
	if log == nil {
		log = logging.Nop()
	}
	plog := log.WithPlugin(pluginID)

	return &Callbacks{
		CallService: func(svc, method string, params []byte) *HostBuffer {
			if !grants.AllowsService(svc, method) {
				plog.Warn("denied service call %s.%s", svc, method)
				return nil
			}
			out, err := reg.Call(svc, method, params)
			if err != nil {
				plog.Warn("service call %s.%s failed: %v", svc, method, err)
				return nil
			}
			return NewHostBuffer(out, nil)
		},
		ReadImageFile: func(path string) (*HostBuffer, int32) {
			if !grants.AllowsService(service.NameImage, service.MethodGetData) {
				plog.Warn("denied image file read %q", path)
				return nil, StatusDenied
			}
			data, err := os.ReadFile(path)
			switch {
			case errors.Is(err, os.ErrNotExist):
				return nil, StatusNotFound
			case err != nil:
				plog.Warn("image file read %q failed: %v", path, err)
				return nil, StatusError
			}
			return NewHostBuffer(data, nil), StatusOK
		},
		Log: func(level int32, msg string) {
			plog.Log(logging.Level(level), "%s", msg)
		},
	}
}

// statusError renders a ReadImageFile status as an error.
func statusError(status int32) error {
	switch status {
	case StatusNotFound:
		return fmt.Errorf("native: image file not found (status %d)", status)
	case StatusDenied:
		return fmt.Errorf("%w (status %d)", ErrPermissionDenied, status)
	default:
		return fmt.Errorf("native: image file read failed (status %d)", status)
	}
}
