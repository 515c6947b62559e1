package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/pricelens/models"
)

// CLI flags
var (
	apiURL  = flag.String("api-url", "http://localhost:3000", "Pricelens API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	userID  = flag.String("user-id", "benchmark", "user_id submitted with every run")
	repeat  = flag.Int("runs", 3, "Number of runs per domain set for averaging")
	output  = flag.String("output", "benchmark-results.json", "JSON output file path")
	timeout = flag.Duration("timeout", 5*time.Minute, "Maximum wait for one run")
)

// Domain sets covering different page shapes.
var domainSets = []struct {
	Label   string
	Domains string
}{
	{"Single", "stripe.com"},
	{"SaaS", "notion.so, linear.app, figma.com"},
	{"Mixed", "github.com, vercel.com, example.com, netlify.com"},
}

// --- Benchmark result types ---

type runResult struct {
	Run            int    `json:"run"`
	RunID          string `json:"run_id,omitempty"`
	WallMs         int64  `json:"wall_ms"`
	ServerMs       int64  `json:"server_ms"`
	Status         string `json:"status"`
	DomainsSuccess int    `json:"domains_success"`
	DomainsFailed  int    `json:"domains_failed"`
	PDFBytes       int    `json:"pdf_bytes"`
	Error          string `json:"error,omitempty"`
}

type setAverages struct {
	WallMs      float64 `json:"wall_ms"`
	ServerMs    float64 `json:"server_ms"`
	SuccessRate float64 `json:"domain_success_rate"`
	PDFBytes    float64 `json:"pdf_bytes"`
}

type setResult struct {
	Label    string       `json:"label"`
	Domains  string       `json:"domains"`
	Runs     []runResult  `json:"runs"`
	Averages *setAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerSet int         `json:"runs_per_set"`
	Results    []setResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Pricelens Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/set:  %d\n", *repeat)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure pricelens is running (go run ./cmd/pricelens)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerSet: *repeat,
	}

	client := &http.Client{Timeout: 90 * time.Second}
	for _, set := range domainSets {
		fmt.Printf("Benchmarking [%s] %s ...\n", set.Label, set.Domains)
		sr := setResult{Label: set.Label, Domains: set.Domains}

		for i := 1; i <= *repeat; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *repeat)
			rr := benchmarkRun(client, set.Domains, i)
			if rr.Error == "" {
				fmt.Printf("%s  %dms  %d ok / %d failed\n", rr.Status, rr.WallMs, rr.DomainsSuccess, rr.DomainsFailed)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			sr.Runs = append(sr.Runs, rr)
		}

		sr.Averages = computeAverages(sr.Runs)
		report.Results = append(report.Results, sr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// benchmarkRun submits one run, polls it to a terminal state and downloads
// the report when there is one.
func benchmarkRun(client *http.Client, domains string, run int) runResult {
	rr := runResult{Run: run}
	start := time.Now()

	body, err := json.Marshal(models.CreateRunRequest{UserID: *userID, Domains: domains})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}
	var created models.CreateRunResponse
	if err := call(client, http.MethodPost, "/api/runs", body, &created); err != nil {
		rr.Error = err.Error()
		return rr
	}
	rr.RunID = created.RunID

	deadline := time.Now().Add(*timeout)
	var status models.Run
	for {
		if err := call(client, http.MethodGet, "/api/runs/"+created.RunID+"/status", nil, &status); err != nil {
			rr.Error = err.Error()
			return rr
		}
		if status.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			rr.Error = fmt.Sprintf("run still %s after %s", status.Status, *timeout)
			return rr
		}
		time.Sleep(time.Second)
	}

	rr.Status = string(status.Status)
	if status.DurationMs != nil {
		rr.ServerMs = *status.DurationMs
	}
	if status.Summary != nil {
		rr.DomainsSuccess = status.Summary.DomainsSuccess
		rr.DomainsFailed = status.Summary.DomainsFailed
	}
	if status.Status == models.RunDone {
		n, err := downloadSize(client, created.RunID)
		if err != nil {
			rr.Error = err.Error()
		}
		rr.PDFBytes = n
	}
	rr.WallMs = time.Since(start).Milliseconds()
	return rr
}

func call(client *http.Client, method, path string, body []byte, out any) error {
	req, err := http.NewRequest(method, *apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var er models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return fmt.Errorf("%s %s: HTTP %d %s", method, path, resp.StatusCode, er.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	return nil
}

func downloadSize(client *http.Client, runID string) (int, error) {
	req, err := http.NewRequest(http.MethodGet, *apiURL+"/api/runs/"+runID+"/download", nil)
	if err != nil {
		return 0, err
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	n, err := buf.ReadFrom(resp.Body)
	return int(n), err
}

func computeAverages(runs []runResult) *setAverages {
	var finished int
	var avg setAverages
	var ok, total int

	for _, r := range runs {
		if r.Status == "" {
			continue
		}
		finished++
		avg.WallMs += float64(r.WallMs)
		avg.ServerMs += float64(r.ServerMs)
		avg.PDFBytes += float64(r.PDFBytes)
		ok += r.DomainsSuccess
		total += r.DomainsSuccess + r.DomainsFailed
	}

	if finished == 0 {
		return nil
	}

	n := float64(finished)
	avg.WallMs /= n
	avg.ServerMs /= n
	avg.PDFBytes /= n
	if total > 0 {
		avg.SuccessRate = float64(ok) / float64(total) * 100
	}
	return &avg
}

func printTable(results []setResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Set\tAvg Wall\tAvg Server\tDomains OK\tAvg PDF\n")
	fmt.Fprintf(w, "───\t────────\t──────────\t──────────\t───────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", r.Label)
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%.1f%%\t%s\n",
			r.Label,
			int64(r.Averages.WallMs),
			int64(r.Averages.ServerMs),
			r.Averages.SuccessRate,
			formatBytes(int(r.Averages.PDFBytes)),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
