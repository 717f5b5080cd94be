// Package security parses and enforces the permission grants a plugin
// declares in its manifest. Grants are deny-by-default: a plugin can only
// call services, subscribe to events, and message peers it was granted.
package security

import (
	"fmt"
	"strings"
)

// Permission string grammar:
//
//	service:*                every method of every service
//	service:<name>           every method of one service
//	service:<name>:<method>  one method of one service
//	event:*                  every event type
//	event:<type>             one event type
//	message:*                messaging any plugin
//	message:<plugin-id>      messaging one plugin
const (
	kindService = "service"
	kindEvent   = "event"
	kindMessage = "message"

	wildcard = "*"
)

// Grants is the parsed, queryable form of a plugin's permission list. The
// zero value denies everything.
type Grants struct {
	allServices bool
	// services maps service name to allowed methods; a nil method set means
	// every method of that service.
	services map[string]map[string]bool

	allEvents bool
	events    map[string]bool

	allMessages bool
	messages    map[string]bool
}

// Parse builds Grants from manifest permission strings. Malformed or
// unrecognized entries are rejected so a typo fails loading instead of
// silently denying at call time.
func Parse(perms []string) (*Grants, error) {
	g := &Grants{
		services: make(map[string]map[string]bool),
		events:   make(map[string]bool),
		messages: make(map[string]bool),
	}
	for _, p := range perms {
		parts := strings.Split(p, ":")
		switch parts[0] {
		case kindService:
			if err := g.parseService(p, parts[1:]); err != nil {
				return nil, err
			}
		case kindEvent:
			if len(parts) != 2 || parts[1] == "" {
				return nil, fmt.Errorf("security: malformed permission %q", p)
			}
			if parts[1] == wildcard {
				g.allEvents = true
			} else {
				g.events[parts[1]] = true
			}
		case kindMessage:
			if len(parts) != 2 || parts[1] == "" {
				return nil, fmt.Errorf("security: malformed permission %q", p)
			}
			if parts[1] == wildcard {
				g.allMessages = true
			} else {
				g.messages[parts[1]] = true
			}
		default:
			return nil, fmt.Errorf("security: unknown permission kind in %q", p)
		}
	}
	return g, nil
}

func (g *Grants) parseService(raw string, rest []string) error {
	switch len(rest) {
	case 1:
		if rest[0] == "" {
			return fmt.Errorf("security: malformed permission %q", raw)
		}
		if rest[0] == wildcard {
			g.allServices = true
			return nil
		}
		// Full-service grant subsumes any earlier per-method grants.
		g.services[rest[0]] = nil
		return nil
	case 2:
		if rest[0] == "" || rest[0] == wildcard || rest[1] == "" {
			return fmt.Errorf("security: malformed permission %q", raw)
		}
		methods, ok := g.services[rest[0]]
		if ok && methods == nil {
			return nil
		}
		if methods == nil {
			methods = make(map[string]bool)
			g.services[rest[0]] = methods
		}
		methods[rest[1]] = true
		return nil
	default:
		return fmt.Errorf("security: malformed permission %q", raw)
	}
}

// AllowsService reports whether the plugin may call service.method.
func (g *Grants) AllowsService(service, method string) bool {
	if g.allServices {
		return true
	}
	methods, ok := g.services[service]
	if !ok {
		return false
	}
	if methods == nil {
		return true
	}
	return methods[method]
}

// AllowsEvent reports whether the plugin may subscribe to eventType. System
// lifecycle events bypass this check at dispatch.
func (g *Grants) AllowsEvent(eventType string) bool {
	return g.allEvents || g.events[eventType]
}

// AllowsMessage reports whether the plugin may send a direct message to the
// plugin with the given id.
func (g *Grants) AllowsMessage(pluginID string) bool {
	return g.allMessages || g.messages[pluginID]
}

// AllowAll returns grants permitting everything. Used for trusted built-in
// plugins and in tests.
func AllowAll() *Grants {
	return &Grants{allServices: true, allEvents: true, allMessages: true}
}
