package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/ahsanj/local-log-analyzer/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const sampleLog = `2024-01-15 10:00:00 ERROR [api] Connection timeout after 30s
2024-01-15 10:00:05 INFO [api] Request served
2024-01-15 10:20:09 ERROR [db] Connection timeout after 45s
2024-01-15 10:40:00 WARN [db] Slow query
`

func setupRouter(t *testing.T, secret string, queue bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	analyzer := services.NewLogAnalyzer(store, services.DefaultAnalyzerConfig())
	deps := Deps{
		Store:       store,
		Files:       services.NewFileService(store, services.DefaultLimits(), nil),
		Analyzer:    analyzer,
		MaxFileSize: 1024,
		CORSOrigins: []string{"http://localhost:5173"},
		JWTSecret:   secret,
	}
	if queue {
		q := services.NewAnalysisQueue(analyzer, 1, 10)
		t.Cleanup(q.Stop)
		deps.Queue = q
	}
	return NewRouter(deps)
}

func do(r *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
}

func pasteSample(t *testing.T, r *gin.Engine) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"content": sampleLog})
	w := do(r, http.MethodPost, "/api/v1/files/paste", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		File services.FileUploadResponse `json:"file"`
	}
	decode(t, w, &resp)
	return resp.File.FileID
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, "", false)
	w := do(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	decode(t, w, &resp)
	if resp.Status != "ok" || resp.Version != Version {
		t.Errorf("Unexpected health response %+v", resp)
	}
}

func TestPasteAndAnalyze(t *testing.T) {
	r := setupRouter(t, "", false)
	id := pasteSample(t, r)

	w := do(r, http.MethodGet, "/api/v1/analysis/"+id, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var analysis struct {
		TotalEntries      int            `json:"total_entries"`
		LevelDistribution map[string]int `json:"level_distribution"`
		ErrorPatterns     []struct {
			Pattern string `json:"pattern"`
			Count   int    `json:"count"`
		} `json:"error_patterns"`
	}
	decode(t, w, &analysis)
	if analysis.TotalEntries != 4 {
		t.Errorf("Expected 4 entries, got %d", analysis.TotalEntries)
	}
	if analysis.LevelDistribution["ERROR"] != 2 {
		t.Errorf("Expected 2 errors, got %v", analysis.LevelDistribution)
	}
	if len(analysis.ErrorPatterns) != 1 || analysis.ErrorPatterns[0].Count != 2 {
		t.Errorf("Expected one pattern seen twice, got %+v", analysis.ErrorPatterns)
	}

	w = do(r, http.MethodPost, "/api/v1/analysis/"+id, nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for re-analysis, got %d", w.Code)
	}
}

func TestPasteValidation(t *testing.T) {
	r := setupRouter(t, "", false)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing content", `{"text":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/files/paste", []byte(tt.body), nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	w := do(r, http.MethodPost, "/api/v1/files/paste", []byte(`{"content":"   "}`), nil)
	if w.Code != http.StatusCreated {
		t.Errorf("Expected whitespace paste to be accepted, got %d", w.Code)
	}
}

func upload(r *gin.Engine, filename string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", filename)
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpload(t *testing.T) {
	r := setupRouter(t, "", false)

	tests := []struct {
		name     string
		filename string
		content  []byte
		expected int
	}{
		{"accepted", "app.log", []byte(sampleLog), http.StatusCreated},
		{"bad extension", "app.exe", []byte(sampleLog), http.StatusBadRequest},
		{"too large", "big.log", bytes.Repeat([]byte("x"), 2048), http.StatusRequestEntityTooLarge},
		{"binary", "core.log", []byte{0x00, 0x01}, http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := upload(r, tt.filename, tt.content)
			if w.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", strings.NewReader(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a file, got %d", w.Code)
	}
}

func TestFilesListGetDelete(t *testing.T) {
	r := setupRouter(t, "", false)
	id := pasteSample(t, r)

	w := do(r, http.MethodGet, "/api/v1/files", nil, nil)
	var list struct {
		Total int `json:"total"`
	}
	decode(t, w, &list)
	if list.Total != 1 {
		t.Errorf("Expected 1 file, got %d", list.Total)
	}

	if w := do(r, http.MethodGet, "/api/v1/files/"+id, nil, nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/files/"+id, nil, nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/files/"+id, nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/analysis/"+id, nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for analysis after delete, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/files/"+id, nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
}

func TestEntriesEndpoint(t *testing.T) {
	r := setupRouter(t, "", false)
	id := pasteSample(t, r)

	w := do(r, http.MethodGet, "/api/v1/analysis/"+id+"/entries?level=error&limit=1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page struct {
		Entries []struct {
			LineNumber int    `json:"line_number"`
			Service    string `json:"service"`
		} `json:"entries"`
		Total int `json:"total"`
		Limit int `json:"limit"`
	}
	decode(t, w, &page)
	if page.Total != 2 || len(page.Entries) != 1 || page.Limit != 1 {
		t.Errorf("Expected 1 of 2 error entries, got %+v", page)
	}
	if len(page.Entries) == 1 && page.Entries[0].LineNumber != 1 {
		t.Errorf("Expected line 1 first, got %d", page.Entries[0].LineNumber)
	}

	for _, q := range []string{"limit=0", "limit=5000", "offset=-1", "limit=abc"} {
		w := do(r, http.MethodGet, "/api/v1/analysis/"+id+"/entries?"+q, nil, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", q, w.Code)
		}
	}
}

func TestTimelineEndpoint(t *testing.T) {
	r := setupRouter(t, "", false)
	id := pasteSample(t, r)

	w := do(r, http.MethodGet, "/api/v1/analysis/"+id+"/timeline?interval=15m", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Interval   string            `json:"interval"`
		TimeSeries []json.RawMessage `json:"time_series"`
	}
	decode(t, w, &resp)
	if resp.Interval != "15m" || len(resp.TimeSeries) != 3 {
		t.Errorf("Expected 3 buckets of 15m, got %s with %d", resp.Interval, len(resp.TimeSeries))
	}

	if w := do(r, http.MethodGet, "/api/v1/analysis/"+id+"/timeline?interval=soon", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad interval, got %d", w.Code)
	}
}

func TestPatternsStatsAndContext(t *testing.T) {
	r := setupRouter(t, "", false)
	id := pasteSample(t, r)

	w := do(r, http.MethodGet, "/api/v1/analysis/"+id+"/patterns?limit=1", nil, nil)
	var patterns struct {
		Patterns []json.RawMessage `json:"patterns"`
		Total    int               `json:"total"`
	}
	decode(t, w, &patterns)
	if len(patterns.Patterns) != 1 || patterns.Total != 1 {
		t.Errorf("Unexpected patterns response %+v", patterns)
	}
	if w := do(r, http.MethodGet, "/api/v1/analysis/"+id+"/patterns?limit=-2", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a negative limit, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/v1/analysis/"+id+"/stats", nil, nil)
	var stats services.Stats
	decode(t, w, &stats)
	if stats.TotalEntries != 4 || !stats.HasServices || !stats.HasTimestamps {
		t.Errorf("Unexpected stats %+v", stats)
	}

	w = do(r, http.MethodGet, "/api/v1/analysis/"+id+"/context", nil, nil)
	var ctx struct {
		Context services.ChatContext `json:"context"`
		Summary string               `json:"summary"`
	}
	decode(t, w, &ctx)
	if ctx.Context.TotalEntries != 4 || !strings.Contains(ctx.Summary, "Total Entries: 4") {
		t.Errorf("Unexpected chat context %+v", ctx)
	}
}

func TestUnknownFile(t *testing.T) {
	r := setupRouter(t, "", false)
	for _, path := range []string{
		"/api/v1/analysis/missing",
		"/api/v1/analysis/missing/entries",
		"/api/v1/analysis/missing/timeline",
		"/api/v1/analysis/missing/context",
	} {
		if w := do(r, http.MethodGet, path, nil, nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", path, w.Code)
		}
	}
}

func TestBackgroundJob(t *testing.T) {
	r := setupRouter(t, "", true)

	body, _ := json.Marshal(map[string]string{"content": sampleLog})
	w := do(r, http.MethodPost, "/api/v1/files/paste", body, nil)
	var resp struct {
		JobID string `json:"job_id"`
	}
	decode(t, w, &resp)
	if resp.JobID == "" {
		t.Fatalf("Expected a job id, got %s", w.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w := do(r, http.MethodGet, "/api/v1/jobs/"+resp.JobID, nil, nil)
		var job struct {
			Job struct {
				Status string `json:"status"`
			} `json:"job"`
		}
		decode(t, w, &job)
		if job.Job.Status == "completed" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected job to complete, last status %q", job.Job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if w := do(r, http.MethodGet, "/api/v1/jobs/unknown", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown job, got %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"
	r := setupRouter(t, secret, false)

	if w := do(r, http.MethodGet, "/api/v1/files", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/files", nil, map[string]string{"Authorization": "Bearer nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad token, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Errorf("Expected health to stay public, got %d", w.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "analyst",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if w := do(r, http.MethodGet, "/api/v1/files", nil, map[string]string{"Authorization": "Bearer " + signed}); w.Code != http.StatusOK {
		t.Errorf("Expected 200 with a valid token, got %d", w.Code)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	signedExpired, _ := expired.SignedString([]byte(secret))
	if w := do(r, http.MethodGet, "/api/v1/files", nil, map[string]string{"Authorization": "Bearer " + signedExpired}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for an expired token, got %d", w.Code)
	}
}
