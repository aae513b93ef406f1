// Seed tool for loading the auto insurance claims dataset into Avia.
//
// Usage:
//   go run cmd/seed/main.go -csv /path/to/insurance_claims.csv -url http://localhost:8080
//
// Each CSV row becomes a dataset-sourced claim. With -analyze, every
// ingested claim is scored immediately.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// claimRequest mirrors the POST /claims body.
type claimRequest struct {
	PolicyNumber string         `json:"policyNumber"`
	Source       string         `json:"source"`
	Attributes   map[string]any `json:"attributes"`
}

// numericColumns are parsed as floats; everything else stays a string.
var numericColumns = map[string]struct{}{
	"months_as_customer":          {},
	"age":                         {},
	"policy_deductable":           {},
	"policy_annual_premium":       {},
	"umbrella_limit":              {},
	"capital-gains":               {},
	"capital-loss":                {},
	"incident_hour_of_the_day":    {},
	"number_of_vehicles_involved": {},
	"bodily_injuries":             {},
	"witnesses":                   {},
	"total_claim_amount":          {},
	"injury_claim":                {},
	"property_claim":              {},
	"vehicle_claim":               {},
	"auto_year":                   {},
}

// skippedColumns are dataset bookkeeping, not claim attributes.
var skippedColumns = map[string]struct{}{
	"policy_number":    {},
	"policy_bind_date": {},
	"fraud_reported":   {},
	"_c39":             {},
}

func main() {
	csvPath := flag.String("csv", "", "Path to insurance claims CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Avia base URL")
	orgID := flag.String("org", "seed-org", "Organization ID for requests")
	limit := flag.Int("limit", 0, "Maximum claims to load (0 = all)")
	workers := flag.Int("workers", 8, "Number of concurrent workers")
	analyze := flag.Bool("analyze", false, "Analyze each claim after ingestion")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: seed -csv /path/to/insurance_claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Avia not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: cannot open CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		fmt.Printf("ERROR: cannot read CSV header: %v\n", err)
		os.Exit(1)
	}

	policyIdx := -1
	for i, col := range header {
		if strings.TrimSpace(col) == "policy_number" {
			policyIdx = i
		}
	}
	if policyIdx < 0 {
		fmt.Println("ERROR: CSV has no policy_number column")
		os.Exit(1)
	}

	rows := make(chan []string, *workers*2)
	var loaded, failed, analyzed atomic.Int64
	client := &http.Client{Timeout: 60 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range rows {
				claimID, err := postClaim(client, *baseURL, *orgID, header, policyIdx, row)
				if err != nil {
					failed.Add(1)
					fmt.Printf("WARN: %v\n", err)
					continue
				}
				loaded.Add(1)

				if *analyze {
					if err := postAnalyze(client, *baseURL, *orgID, claimID); err != nil {
						fmt.Printf("WARN: analyze %s: %v\n", claimID, err)
					} else {
						analyzed.Add(1)
					}
				}
			}
		}()
	}

	start := time.Now()
	count := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("WARN: skipping malformed row: %v\n", err)
			continue
		}
		rows <- row
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}
	close(rows)
	wg.Wait()

	fmt.Printf("\nLoaded %d claims (%d failed, %d analyzed) in %s\n",
		loaded.Load(), failed.Load(), analyzed.Load(), time.Since(start).Round(time.Millisecond))
}

// postClaim converts one CSV row to a claim and ingests it.
func postClaim(client *http.Client, baseURL, orgID string, header []string, policyIdx int, row []string) (string, error) {
	if len(row) != len(header) {
		return "", fmt.Errorf("row has %d columns, header has %d", len(row), len(header))
	}

	attrs := make(map[string]any, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		val := strings.TrimSpace(row[i])
		if val == "" {
			continue
		}
		if _, skip := skippedColumns[col]; skip {
			continue
		}
		if _, numeric := numericColumns[col]; numeric {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				attrs[col] = f
			}
			continue
		}
		attrs[col] = val
	}

	req := claimRequest{
		PolicyNumber: strings.TrimSpace(row[policyIdx]),
		Source:       "dataset",
		Attributes:   attrs,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/claims", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Org-ID", orgID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("ingest policy %s: status %d: %s", req.PolicyNumber, resp.StatusCode, data)
	}

	var claim struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &claim); err != nil {
		return "", err
	}
	return claim.ID, nil
}

func postAnalyze(client *http.Client, baseURL, orgID, claimID string) error {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/claims/"+claimID+"/analyze", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Org-ID", orgID)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned status %d", resp.StatusCode)
	}
	return nil
}
