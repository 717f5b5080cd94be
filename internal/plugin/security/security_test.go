package security

import "testing"

func TestParseServiceGrants(t *testing.T) {
	g, err := Parse([]string{"service:project", "service:marker:get"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		service, method string
		want            bool
	}{
		{"project", "current", true},
		{"project", "anything", true},
		{"marker", "get", true},
		{"marker", "delete", false},
		{"image", "get", false},
	}
	for _, tt := range tests {
		if got := g.AllowsService(tt.service, tt.method); got != tt.want {
			t.Errorf("AllowsService(%q, %q) = %v, want %v", tt.service, tt.method, got, tt.want)
		}
	}
}

func TestParseServiceWildcard(t *testing.T) {
	g, err := Parse([]string{"service:*"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !g.AllowsService("anything", "whatever") {
		t.Error("service:* should allow every call")
	}
}

func TestFullServiceSubsumesMethods(t *testing.T) {
	// Order should not matter.
	for _, perms := range [][]string{
		{"service:marker:get", "service:marker"},
		{"service:marker", "service:marker:get"},
	} {
		g, err := Parse(perms)
		if err != nil {
			t.Fatalf("Parse(%v): %v", perms, err)
		}
		if !g.AllowsService("marker", "delete") {
			t.Errorf("Parse(%v): full-service grant should cover every method", perms)
		}
	}
}

func TestEventAndMessageGrants(t *testing.T) {
	g, err := Parse([]string{"event:MarkerSelected", "message:logger"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !g.AllowsEvent("MarkerSelected") || g.AllowsEvent("ImageAdded") {
		t.Error("event grant should cover exactly the listed type")
	}
	if !g.AllowsMessage("logger") || g.AllowsMessage("other") {
		t.Error("message grant should cover exactly the listed plugin")
	}

	wide, err := Parse([]string{"event:*", "message:*"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !wide.AllowsEvent("anything") || !wide.AllowsMessage("anyone") {
		t.Error("wildcards should allow everything of their kind")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, p := range []string{
		"clipboard:read",
		"service:",
		"service:*:get",
		"event:",
		"event:a:b",
		"message:",
	} {
		if _, err := Parse([]string{p}); err == nil {
			t.Errorf("Parse(%q) should fail", p)
		}
	}
}

func TestZeroGrantsDenyEverything(t *testing.T) {
	var g Grants
	if g.AllowsService("project", "current") || g.AllowsEvent("SystemReady") || g.AllowsMessage("x") {
		t.Error("zero grants should deny everything")
	}
}

func TestAllowAll(t *testing.T) {
	g := AllowAll()
	if !g.AllowsService("a", "b") || !g.AllowsEvent("c") || !g.AllowsMessage("d") {
		t.Error("AllowAll should permit everything")
	}
}
