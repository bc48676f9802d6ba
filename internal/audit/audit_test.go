package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCaptureRequestPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/meters", nil)
	req.RemoteAddr = "10.0.0.9:4711"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.Header.Set("User-Agent", "meterdesk-test")

	var entry Entry
	entry.CaptureRequest(req)
	if entry.IP != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", entry.IP)
	}
	if entry.UserAgent != "meterdesk-test" {
		t.Fatalf("expected user agent, got %q", entry.UserAgent)
	}
}

func TestCaptureRequestFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/meters", nil)
	req.RemoteAddr = "192.0.2.40:55012"

	var entry Entry
	entry.CaptureRequest(req)
	if entry.IP != "192.0.2.40" {
		t.Fatalf("expected remote host, got %q", entry.IP)
	}

	req.Header.Set("X-Real-IP", "198.51.100.2")
	entry.CaptureRequest(req)
	if entry.IP != "198.51.100.2" {
		t.Fatalf("expected real-ip header, got %q", entry.IP)
	}
}

func TestWithDefaultsFillsMissingFields(t *testing.T) {
	entry := withDefaults(Entry{
		OrgID:    "org-a",
		Action:   ActionReadingIngest,
		Metadata: []byte(`{"value":123.4}`),
	})
	if entry.ID == "" {
		t.Fatalf("expected generated id")
	}
	if entry.CreatedAt.IsZero() {
		t.Fatalf("expected timestamp")
	}
	if entry.PayloadDigest != DigestJSON(entry.Metadata) {
		t.Fatalf("expected digest of metadata, got %q", entry.PayloadDigest)
	}

	kept := withDefaults(Entry{ID: "audit-fixed", PayloadDigest: "abc"})
	if kept.ID != "audit-fixed" || kept.PayloadDigest != "abc" {
		t.Fatalf("expected caller fields kept, got %q %q", kept.ID, kept.PayloadDigest)
	}
}
