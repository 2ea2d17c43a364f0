// Command gradebook_audit compares the reviewed ledger values of a grading
// cycle against a gradebook CSV export and reports per-student drift. Useful
// after posting to confirm the gradebook reflects what was reviewed.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type studentScore struct {
	CWID  string  `json:"cwid"`
	Score float64 `json:"score"`
}

type migrationScores struct {
	MigrationID  string         `json:"migration_id"`
	AssignmentID string         `json:"assignment_id"`
	Assignment   string         `json:"assignment"`
	Scores       []studentScore `json:"scores"`
}

type envelope struct {
	Data  []migrationScores `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type drift struct {
	CWID     string
	Ledger   float64
	Exported float64
	Missing  bool
}

func main() {
	var (
		base       string
		token      string
		masterID   string
		exportPath string
		idColumn   string
		scoreCol   string
		tolerance  float64
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("GRADEFLOW_TOKEN"), "Bearer token (defaults to GRADEFLOW_TOKEN)")
	flag.StringVar(&masterID, "master", "", "Master migration id to audit")
	flag.StringVar(&exportPath, "export", "", "Path to the gradebook CSV export")
	flag.StringVar(&idColumn, "id-column", "SIS User ID", "Export column holding the student id")
	flag.StringVar(&scoreCol, "score-column", "", "Export column holding the posted score")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Float64Var(&tolerance, "tolerance", 0.01, "Maximum allowed score difference")
	flag.Parse()

	if masterID == "" || exportPath == "" || scoreCol == "" {
		flag.Usage()
		os.Exit(2)
	}

	migrations, err := fetchReview(base, token, masterID, timeout)
	if err != nil {
		log.Fatalf("failed to fetch review data: %v", err)
	}
	exported, err := loadExport(exportPath, idColumn, scoreCol)
	if err != nil {
		log.Fatalf("failed to load export: %v", err)
	}

	total := 0
	drifted := 0
	for _, migration := range migrations {
		drifts := compare(migration.Scores, exported, tolerance)
		total += len(migration.Scores)
		drifted += len(drifts)
		printReport(migration, drifts)
	}

	fmt.Printf("Students audited: %d, drifted: %d\n", total, drifted)
	if drifted > 0 {
		os.Exit(1)
	}
}

func fetchReview(base, token, masterID string, timeout time.Duration) ([]migrationScores, error) {
	url := fmt.Sprintf("%s/api/v1/migrations/%s/review", strings.TrimRight(base, "/"), masterID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return env.Data, nil
}

func loadExport(path, idColumn, scoreColumn string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idIdx, scoreIdx := -1, -1
	for i, col := range header {
		switch {
		case strings.EqualFold(strings.TrimSpace(col), idColumn):
			idIdx = i
		case strings.EqualFold(strings.TrimSpace(col), scoreColumn):
			scoreIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("missing column %q", idColumn)
	}
	if scoreIdx < 0 {
		return nil, fmt.Errorf("missing column %q", scoreColumn)
	}

	scores := map[string]float64{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cwid := strings.TrimSpace(record[idIdx])
		raw := strings.TrimSpace(record[scoreIdx])
		if cwid == "" || raw == "" {
			continue
		}
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q for %s", raw, cwid)
		}
		scores[cwid] = score
	}
	return scores, nil
}

func compare(ledger []studentScore, exported map[string]float64, tolerance float64) []drift {
	var drifts []drift
	for _, score := range ledger {
		posted, ok := exported[score.CWID]
		if !ok {
			drifts = append(drifts, drift{CWID: score.CWID, Ledger: score.Score, Missing: true})
			continue
		}
		if math.Abs(posted-score.Score) > tolerance {
			drifts = append(drifts, drift{CWID: score.CWID, Ledger: score.Score, Exported: posted})
		}
	}
	return drifts
}

func printReport(migration migrationScores, drifts []drift) {
	status := "OK"
	if len(drifts) > 0 {
		status = "DRIFT"
	}
	fmt.Printf("[%s] %s (%s): %d students, %d drifted\n",
		status, migration.Assignment, migration.MigrationID, len(migration.Scores), len(drifts))
	for _, d := range drifts {
		if d.Missing {
			fmt.Printf("  %s: ledger %.2f, missing from export\n", d.CWID, d.Ledger)
			continue
		}
		fmt.Printf("  %s: ledger %.2f, export %.2f\n", d.CWID, d.Ledger, d.Exported)
	}
}
