package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/common/expfmt"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func fixture(t *testing.T) []byte {
	t.Helper()
	_, filename, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(filename))), "testdata", "bw_report.html")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func newTestServer(t *testing.T, store session.Store) *Server {
	t.Helper()
	cfg := report.DefaultConfig()
	cfg.Location = time.UTC
	return New(Options{Report: cfg, Store: store})
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, target string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.data)
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"service":"bwlens"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, multipartRequest(t, "/api/analyze", upload{"report.html", fixture(t)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result == nil || resp.Result.AnalysisType != model.AnalysisLocal {
		t.Fatalf("result = %+v", resp.Result)
	}
	if resp.SessionID != "" {
		t.Error("sessionId should be empty without save=true")
	}
	if resp.Result.AISummary != nil {
		t.Error("AISummary should be absent without enrich=true")
	}
}

func TestAnalyzeEnrichWithAttachment(t *testing.T) {
	s := newTestServer(t, nil)
	log := []byte("2024-01-01 ERROR [bw.engine] Job failed\njava.lang.IllegalStateException: boom\n")
	req := multipartRequest(t, "/api/analyze?enrich=true&role=developer",
		upload{"appnode.log", log}, upload{"report.html", fixture(t)})
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result.Role != model.RoleDeveloper {
		t.Errorf("role = %q, want Developer", resp.Result.Role)
	}
	if resp.Result.AISummary == nil {
		t.Fatal("enrich=true should add AISummary")
	}
	found := false
	for _, c := range resp.Result.AISummary.AreasOfConcern {
		if strings.Contains(c.Description, "appnode.log") {
			found = true
		}
	}
	if !found {
		t.Error("log attachment findings should appear in areas of concern")
	}
}

func TestAnalyzeErrors(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name  string
		files []upload
		want  int
	}{
		{"no files", nil, http.StatusBadRequest},
		{"no html", []upload{{"notes.txt", []byte("hi")}}, http.StatusBadRequest},
		{"not a report", []upload{{"page.html", []byte("<html><body><p>hi</p></body></html>")}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, multipartRequest(t, "/api/analyze", tt.files...))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	// save=true without a store
	rec := serve(s, multipartRequest(t, "/api/analyze?save=true", upload{"r.html", fixture(t)}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("save without store: status = %d", rec.Code)
	}
}

func TestAnalyzeTooLarge(t *testing.T) {
	cfg := report.DefaultConfig()
	s := New(Options{Report: cfg, MaxUploadBytes: 1024})
	rec := serve(s, multipartRequest(t, "/api/analyze", upload{"report.html", fixture(t)}))
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 413 or 400", rec.Code)
	}
}

func TestSessionRoutes(t *testing.T) {
	store := session.NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	s := newTestServer(t, store)

	rec := serve(s, multipartRequest(t, "/api/analyze?save=true", upload{"prod.html", fixture(t)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp analyzeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.SessionID, "session_") {
		t.Fatalf("sessionId = %q", resp.SessionID)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	var list []model.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "prod.html" {
		t.Fatalf("list = %+v", list)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions/"+resp.SessionID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get: status = %d", rec.Code)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions/"+resp.SessionID+"/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d", rec.Code)
	}
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(rec.Body)
	if err != nil {
		t.Fatalf("metrics do not parse: %v", err)
	}
	if _, ok := families["bw_health_score"]; !ok {
		t.Error("missing bw_health_score family")
	}

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+resp.SessionID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", rec.Code)
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions/"+resp.SessionID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d", rec.Code)
	}
	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+resp.SessionID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d", rec.Code)
	}

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/sessions", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear: status = %d", rec.Code)
	}
}

func TestSessionRoutesDisabledWithoutStore(t *testing.T) {
	rec := serve(newTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
