package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Services  struct {
		Database struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		} `json:"database"`
	} `json:"services"`
}

const smokeLog = `2024-01-15 10:00:00 ERROR [api] Connection timeout after 30s
2024-01-15 10:00:05 INFO [api] Request served
2024-01-15 10:00:09 ERROR [api] Connection timeout after 45s
`

func main() {
	base := flag.String("url", "http://localhost:8080", "server base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	smoke := flag.Bool("smoke", false, "also paste a sample log and fetch its analysis")
	token := flag.String("token", os.Getenv("HEALTH_TOKEN"), "bearer token for the API")
	flag.Parse()

	client := &http.Client{Timeout: *timeout}
	root := strings.TrimRight(*base, "/")

	fmt.Printf("🔍 Testing health endpoint: %s/health\n", root)
	if err := checkHealth(client, root+"/health"); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	if *smoke {
		fmt.Println("🔍 Running analysis smoke test")
		if err := smokeTest(client, root, *token); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("✅ Health check passed!")
}

func checkHealth(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("error connecting to health endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	fmt.Printf("📊 Response Status: %s\n", resp.Status)

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("error parsing JSON response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || health.Status != "ok" {
		return fmt.Errorf("health status is %q (HTTP %d), database: %s %s",
			health.Status, resp.StatusCode, health.Services.Database.Status, health.Services.Database.Error)
	}

	fmt.Printf("   Version: %s\n", health.Version)
	fmt.Printf("   Database: %s\n", health.Services.Database.Status)
	fmt.Printf("   Timestamp: %s\n", health.Timestamp)
	return nil
}

func smokeTest(client *http.Client, root, token string) error {
	payload, _ := json.Marshal(map[string]string{"content": smokeLog})
	var created struct {
		File struct {
			FileID string `json:"file_id"`
			Format string `json:"format"`
		} `json:"file"`
	}
	if err := call(client, http.MethodPost, root+"/api/v1/files/paste", token, payload, http.StatusCreated, &created); err != nil {
		return fmt.Errorf("paste failed: %w", err)
	}
	fmt.Printf("   Pasted file %s (%s)\n", created.File.FileID, created.File.Format)

	var analysis struct {
		TotalEntries  int               `json:"total_entries"`
		ErrorPatterns []json.RawMessage `json:"error_patterns"`
	}
	if err := call(client, http.MethodGet, root+"/api/v1/analysis/"+created.File.FileID, token, nil, http.StatusOK, &analysis); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	fmt.Printf("   Entries: %d, patterns: %d\n", analysis.TotalEntries, len(analysis.ErrorPatterns))
	if analysis.TotalEntries != 3 || len(analysis.ErrorPatterns) == 0 {
		return fmt.Errorf("unexpected analysis: %d entries, %d patterns", analysis.TotalEntries, len(analysis.ErrorPatterns))
	}

	if err := call(client, http.MethodDelete, root+"/api/v1/files/"+created.File.FileID, token, nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

func call(client *http.Client, method, url, token string, body []byte, want int, out interface{}) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
