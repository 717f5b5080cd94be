package plugin

import (
	"fmt"

	"github.com/yyuchenn/bubblefish-sub001/internal/model"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin/security"
	"github.com/yyuchenn/bubblefish-sub001/internal/service"
)

// GuardProxy wraps a service proxy so every call is checked against grants
// before reaching the underlying service. Denied lookups return
// ErrPermissionDenied; the denied project query reports no project, since
// its signature has no error channel.
func GuardProxy(p *service.Proxy, g *security.Grants) *service.Proxy {
	return &service.Proxy{
		Project: guardedProject{p.Project, g},
		Stats:   guardedStats{p.Stats, g},
		Marker:  guardedMarker{p.Marker, g},
		Image:   guardedImage{p.Image, g},
	}
}

func denied(svc, method string) error {
	return fmt.Errorf("%w: %s.%s", ErrPermissionDenied, svc, method)
}

type guardedProject struct {
	svc    service.ProjectService
	grants *security.Grants
}

func (s guardedProject) Current() (model.Project, bool) {
	if !s.grants.AllowsService(service.NameProject, service.MethodCurrent) {
		return model.Project{}, false
	}
	return s.svc.Current()
}

type guardedStats struct {
	svc    service.StatsService
	grants *security.Grants
}

func (s guardedStats) ProjectStats(projectID string) (model.Stats, error) {
	if !s.grants.AllowsService(service.NameStats, service.MethodProjectStats) {
		return model.Stats{}, denied(service.NameStats, service.MethodProjectStats)
	}
	return s.svc.ProjectStats(projectID)
}

type guardedMarker struct {
	svc    service.MarkerService
	grants *security.Grants
}

func (s guardedMarker) Marker(id string) (model.Marker, error) {
	if !s.grants.AllowsService(service.NameMarker, service.MethodGet) {
		return model.Marker{}, denied(service.NameMarker, service.MethodGet)
	}
	return s.svc.Marker(id)
}

type guardedImage struct {
	svc    service.ImageService
	grants *security.Grants
}

func (s guardedImage) Image(id string) (model.Image, error) {
	if !s.grants.AllowsService(service.NameImage, service.MethodGet) {
		return model.Image{}, denied(service.NameImage, service.MethodGet)
	}
	return s.svc.Image(id)
}

func (s guardedImage) ImageData(id string) ([]byte, error) {
	if !s.grants.AllowsService(service.NameImage, service.MethodGetData) {
		return nil, denied(service.NameImage, service.MethodGetData)
	}
	return s.svc.ImageData(id)
}
