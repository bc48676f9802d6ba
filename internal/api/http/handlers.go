// Package apihttp holds read-only reporting endpoints that query the
// database directly instead of going through the domain services.
package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"meterdesk/internal/auth"
)

const timeLayout = time.RFC3339

// StatsHandler serves organization-wide portfolio counts.
type StatsHandler struct {
	db *sql.DB
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(db *sql.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		orgID = r.URL.Query().Get("org_id")
	}
	if orgID == "" {
		http.Error(w, "org_id is required", http.StatusBadRequest)
		return
	}

	stats, err := queryOrgStats(r.Context(), h.db, orgID)
	if err != nil {
		http.Error(w, "query stats error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// AuditLogHandler serves audit trail queries.
type AuditLogHandler struct {
	db *sql.DB
}

// NewAuditLogHandler constructs an AuditLogHandler.
func NewAuditLogHandler(db *sql.DB) *AuditLogHandler {
	return &AuditLogHandler{db: db}
}

// ServeHTTP handles GET /api/v1/audit.
func (h *AuditLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	query, err := auditQueryFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := queryAuditLogs(r.Context(), h.db, query)
	if err != nil {
		http.Error(w, "query audit logs error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportAuditCSVHandler serves audit trail CSV exports.
type ExportAuditCSVHandler struct {
	db *sql.DB
}

// NewExportAuditCSVHandler constructs an ExportAuditCSVHandler.
func NewExportAuditCSVHandler(db *sql.DB) *ExportAuditCSVHandler {
	return &ExportAuditCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/audit.csv.
func (h *ExportAuditCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	query, err := auditQueryFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := queryAuditLogs(r.Context(), h.db, query)
	if err != nil {
		http.Error(w, "query audit logs error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"id",
		"actor",
		"role",
		"action",
		"resource_type",
		"resource_id",
		"meter_id",
		"ip",
		"created_at",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ID,
			row.Actor,
			row.Role,
			row.Action,
			row.ResourceType,
			row.ResourceID,
			row.MeterID,
			row.IP,
			formatTime(row.CreatedAt),
		})
	}
	writer.Flush()
}

type orgStats struct {
	OrgID          string         `json:"org_id"`
	Buildings      int            `json:"buildings"`
	Units          int            `json:"units"`
	Meters         int            `json:"meters"`
	RetiredMeters  int            `json:"retired_meters"`
	MetersByKind   map[string]int `json:"meters_by_kind"`
	Readings       int            `json:"readings"`
	LatestReading  *time.Time     `json:"latest_reading"`
	GeneratedAtUTC time.Time      `json:"generated_at"`
}

type auditRow struct {
	ID           string          `json:"id"`
	OrgID        string          `json:"org_id"`
	Actor        string          `json:"actor"`
	Role         string          `json:"role"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	MeterID      string          `json:"meter_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	IP           string          `json:"ip,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type auditQuery struct {
	orgID   string
	meterID string
	action  string
	from    time.Time
	to      time.Time
}

func auditQueryFromRequest(r *http.Request) (auditQuery, error) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		orgID = r.URL.Query().Get("org_id")
	}
	if orgID == "" {
		return auditQuery{}, errors.New("org_id is required")
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return auditQuery{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return auditQuery{}, err
	}
	if !to.After(from) {
		return auditQuery{}, errors.New("to must be after from")
	}

	return auditQuery{
		orgID:   orgID,
		meterID: r.URL.Query().Get("meter_id"),
		action:  r.URL.Query().Get("action"),
		from:    from,
		to:      to,
	}, nil
}

func queryOrgStats(ctx context.Context, db *sql.DB, orgID string) (orgStats, error) {
	stats := orgStats{
		OrgID:          orgID,
		MetersByKind:   make(map[string]int),
		GeneratedAtUTC: time.Now().UTC(),
	}

	if err := db.QueryRowContext(ctx, `
SELECT count(*) FROM buildings WHERE org_id = $1`, orgID).Scan(&stats.Buildings); err != nil {
		return stats, err
	}
	if err := db.QueryRowContext(ctx, `
SELECT count(*) FROM units u
JOIN buildings b ON b.id = u.building_id
WHERE b.org_id = $1`, orgID).Scan(&stats.Units); err != nil {
		return stats, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT m.kind, count(*), count(*) FILTER (WHERE m.replaced_by IS NOT NULL)
FROM meters m
LEFT JOIN units u ON u.id = m.unit_id
JOIN buildings b ON b.id = coalesce(u.building_id, m.building_id)
WHERE b.org_id = $1
GROUP BY m.kind`, orgID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var total, retired int
		if err := rows.Scan(&kind, &total, &retired); err != nil {
			return stats, err
		}
		stats.MetersByKind[kind] = total
		stats.Meters += total
		stats.RetiredMeters += retired
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var latest sql.NullTime
	if err := db.QueryRowContext(ctx, `
SELECT count(*), max(r.reading_date)
FROM meter_readings r
JOIN meters m ON m.id = r.meter_id
LEFT JOIN units u ON u.id = m.unit_id
JOIN buildings b ON b.id = coalesce(u.building_id, m.building_id)
WHERE b.org_id = $1`, orgID).Scan(&stats.Readings, &latest); err != nil {
		return stats, err
	}
	if latest.Valid {
		t := latest.Time.UTC()
		stats.LatestReading = &t
	}
	return stats, nil
}

func queryAuditLogs(ctx context.Context, db *sql.DB, q auditQuery) ([]auditRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	id,
	org_id,
	actor,
	role,
	action,
	resource_type,
	resource_id,
	coalesce(meter_id, ''),
	metadata,
	coalesce(ip, ''),
	created_at
FROM audit_logs
WHERE org_id = $1
	AND ($2 = '' OR meter_id = $2)
	AND ($3 = '' OR action = $3)
	AND created_at >= $4
	AND created_at < $5
ORDER BY created_at DESC
LIMIT 1000`, q.orgID, q.meterID, q.action, q.from.UTC(), q.to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auditRow
	for rows.Next() {
		var row auditRow
		var metadata []byte
		if err := rows.Scan(
			&row.ID,
			&row.OrgID,
			&row.Actor,
			&row.Role,
			&row.Action,
			&row.ResourceType,
			&row.ResourceID,
			&row.MeterID,
			&metadata,
			&row.IP,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		row.Metadata = metadata
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}
