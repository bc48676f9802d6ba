// Command lineagecheck audits meter lineage consistency in the
// database: dangling successor references, lineage cycles, forks where
// two meters share a successor, and readings attached to meters that no
// longer exist. It writes an issue CSV plus a JSON summary.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL  string
	outDir string
}

type meterRow struct {
	ID         string
	Number     string
	Kind       string
	UnitID     string
	BuildingID string
	ReplacedBy string
}

type issue struct {
	Kind    string `json:"kind"`
	MeterID string `json:"meter_id"`
	Detail  string `json:"detail"`
}

type summary struct {
	GeneratedAt   time.Time `json:"generated_at"`
	Meters        int       `json:"meters"`
	RetiredMeters int       `json:"retired_meters"`
	Chains        int       `json:"chains"`
	LongestChain  int       `json:"longest_chain"`
	Issues        []issue   `json:"issues"`
}

func main() {
	cfg := parseFlags()

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	meters, err := loadMeters(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load meters:", err)
		os.Exit(2)
	}

	report := buildSummary(meters)
	report.Issues = append(report.Issues, checkLineage(meters)...)

	orphans, err := checkOrphanReadings(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "check readings:", err)
		os.Exit(2)
	}
	report.Issues = append(report.Issues, orphans...)

	sort.Slice(report.Issues, func(i, j int) bool {
		if report.Issues[i].Kind != report.Issues[j].Kind {
			return report.Issues[i].Kind < report.Issues[j].Kind
		}
		return report.Issues[i].MeterID < report.Issues[j].MeterID
	})

	if err := writeIssuesCSV(cfg.outDir, report.Issues); err != nil {
		fmt.Fprintln(os.Stderr, "write issues:", err)
		os.Exit(2)
	}
	if err := writeSummaryJSON(cfg.outDir, report); err != nil {
		fmt.Fprintln(os.Stderr, "write summary:", err)
		os.Exit(2)
	}

	fmt.Printf("Checked %d meters, %d issues. Reports written to %s\n", report.Meters, len(report.Issues), cfg.outDir)
	if len(report.Issues) > 0 {
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.Parse()
	if cfg.dbURL == "" {
		fmt.Fprintln(os.Stderr, "-db or DATABASE_URL is required")
		os.Exit(2)
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loadMeters(ctx context.Context, db *sql.DB) ([]meterRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, meter_number, kind, coalesce(unit_id, ''), coalesce(building_id, ''), coalesce(replaced_by, '')
FROM meters
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []meterRow
	for rows.Next() {
		var m meterRow
		if err := rows.Scan(&m.ID, &m.Number, &m.Kind, &m.UnitID, &m.BuildingID, &m.ReplacedBy); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func buildSummary(meters []meterRow) summary {
	report := summary{GeneratedAt: time.Now().UTC(), Meters: len(meters)}
	byID := indexMeters(meters)

	predecessors := make(map[string]int)
	for _, m := range meters {
		if m.ReplacedBy != "" {
			report.RetiredMeters++
			predecessors[m.ReplacedBy]++
		}
	}

	// A chain head is an active meter with at least one predecessor.
	for _, m := range meters {
		if m.ReplacedBy != "" || predecessors[m.ID] == 0 {
			continue
		}
		report.Chains++
		length := chainLength(m.ID, meters, byID)
		if length > report.LongestChain {
			report.LongestChain = length
		}
	}
	return report
}

func chainLength(headID string, meters []meterRow, byID map[string]meterRow) int {
	length := 1
	current := headID
	seen := map[string]bool{headID: true}
	for {
		found := ""
		for _, m := range meters {
			if m.ReplacedBy == current {
				found = m.ID
				break
			}
		}
		if found == "" || seen[found] {
			return length
		}
		seen[found] = true
		length++
		current = found
	}
}

func checkLineage(meters []meterRow) []issue {
	byID := indexMeters(meters)
	var issues []issue

	successorOf := make(map[string][]string)
	for _, m := range meters {
		if m.ReplacedBy == "" {
			continue
		}
		if _, ok := byID[m.ReplacedBy]; !ok {
			issues = append(issues, issue{
				Kind:    "dangling_successor",
				MeterID: m.ID,
				Detail:  fmt.Sprintf("meter %s points at missing successor %s", m.Number, m.ReplacedBy),
			})
		}
		if m.ReplacedBy == m.ID {
			issues = append(issues, issue{
				Kind:    "self_reference",
				MeterID: m.ID,
				Detail:  fmt.Sprintf("meter %s replaced by itself", m.Number),
			})
		}
		successorOf[m.ReplacedBy] = append(successorOf[m.ReplacedBy], m.ID)
	}

	for successorID, predecessorIDs := range successorOf {
		if len(predecessorIDs) > 1 {
			issues = append(issues, issue{
				Kind:    "lineage_fork",
				MeterID: successorID,
				Detail:  fmt.Sprintf("%d meters claim this successor", len(predecessorIDs)),
			})
		}
	}

	// Follow replaced_by forward from every meter; revisiting a node
	// means a cycle.
	for _, m := range meters {
		seen := map[string]bool{}
		current := m
		for current.ReplacedBy != "" {
			if seen[current.ID] {
				issues = append(issues, issue{
					Kind:    "lineage_cycle",
					MeterID: m.ID,
					Detail:  fmt.Sprintf("cycle reachable from meter %s", m.Number),
				})
				break
			}
			seen[current.ID] = true
			next, ok := byID[current.ReplacedBy]
			if !ok {
				break
			}
			current = next
		}
	}
	return issues
}

func checkOrphanReadings(ctx context.Context, db *sql.DB) ([]issue, error) {
	rows, err := db.QueryContext(ctx, `
SELECT r.meter_id, count(*)
FROM meter_readings r
LEFT JOIN meters m ON m.id = r.meter_id
WHERE m.id IS NULL
GROUP BY r.meter_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []issue
	for rows.Next() {
		var meterID string
		var count int
		if err := rows.Scan(&meterID, &count); err != nil {
			return nil, err
		}
		issues = append(issues, issue{
			Kind:    "orphan_readings",
			MeterID: meterID,
			Detail:  fmt.Sprintf("%d readings reference a deleted meter", count),
		})
	}
	return issues, rows.Err()
}

func indexMeters(meters []meterRow) map[string]meterRow {
	byID := make(map[string]meterRow, len(meters))
	for _, m := range meters {
		byID[m.ID] = m
	}
	return byID
}

func writeIssuesCSV(outDir string, issues []issue) error {
	file, err := os.Create(filepath.Join(outDir, "lineage_issues.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"kind", "meter_id", "detail"}); err != nil {
		return err
	}
	for _, item := range issues {
		if err := writer.Write([]string{item.Kind, item.MeterID, item.Detail}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeSummaryJSON(outDir string, report summary) error {
	file, err := os.Create(filepath.Join(outDir, "lineage_summary.json"))
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
