// Package builtin contains plugins compiled into the host. They double
// as working references for the plugin API.
package builtin

import (
	"fmt"

	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/model"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin"
)

// MarkerLogger logs every marker selection. When the selection event
// carries the marker inline it uses that copy; otherwise it fetches the
// marker through the service proxy.
type MarkerLogger struct {
	ctx *plugin.Context
}

func NewMarkerLogger() *MarkerLogger { return &MarkerLogger{} }

func (p *MarkerLogger) Metadata() plugin.Metadata {
	return plugin.Metadata{
		ID:      "marker-logger",
		Name:    "Marker Logger",
		Version: "1.0.0",
		Permissions: []string{
			"service:marker:get",
			"event:" + event.TypeMarkerSelected,
			"event:" + event.TypeMarkerDeselected,
		},
		Events: []string{event.TypeMarkerSelected, event.TypeMarkerDeselected},
	}
}

func (p *MarkerLogger) Init(ctx *plugin.Context) error {
	p.ctx = ctx
	return nil
}

func (p *MarkerLogger) OnActivate() error   { return nil }
func (p *MarkerLogger) OnDeactivate() error { return nil }

func (p *MarkerLogger) OnCoreEvent(env event.Envelope) error {
	switch e := env.Event.(type) {
	case event.MarkerSelected:
		m, err := p.resolve(e)
		if err != nil {
			return fmt.Errorf("selected marker %s: %w", e.MarkerID, err)
		}
		p.ctx.Log.Info("marker %s selected: %q", m.ID, m.Text)
	case event.MarkerDeselected:
		p.ctx.Log.Info("marker %s deselected", e.MarkerID)
	}
	return nil
}

// resolve prefers the marker embedded in the event; the service lookup
// is only for hosts that publish id-only selection events.
func (p *MarkerLogger) resolve(e event.MarkerSelected) (model.Marker, error) {
	if e.Marker != nil {
		return *e.Marker, nil
	}
	return p.ctx.Services.Marker.Marker(e.MarkerID)
}

func (p *MarkerLogger) OnPluginMessage(string, map[string]any) error { return nil }
func (p *MarkerLogger) Destroy()                                     {}
