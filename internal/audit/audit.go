package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	OrgID         string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	MeterID       string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// CaptureRequest fills the request-derived fields of the entry. Proxy
// headers take precedence over the socket address so entries keep the
// real client behind a load balancer.
func (e *Entry) CaptureRequest(r *http.Request) {
	if r == nil {
		return
	}
	e.UserAgent = r.UserAgent()
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		e.IP = strings.TrimSpace(first)
		return
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		e.IP = strings.TrimSpace(realIP)
		return
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		e.IP = host
		return
	}
	e.IP = r.RemoteAddr
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Actions recorded by handlers.
const (
	ActionMeterCreate    = "meter.create"
	ActionMeterDelete    = "meter.delete"
	ActionReadingIngest  = "reading.ingest"
	ActionReadingsImport = "readings.import"
	ActionChainImport    = "chain.import"
	ActionBuildingDelete = "building.delete"
	ActionUnitDelete     = "unit.delete"
)

// NewID generates a random audit id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "audit-" + hex.EncodeToString(buf)
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
