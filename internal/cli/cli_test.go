package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kintai-hq/kintai-client/internal/config"
	"github.com/kintai-hq/kintai-client/internal/logger"
	"github.com/kintai-hq/kintai-client/pkg/httpclient"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type fakeBackend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	reply    string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{status: http.StatusOK, reply: `{"message":"ok"}`}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		fb.mu.Lock()
		fb.requests = append(fb.requests, rec)
		status, reply := fb.status, fb.reply
		fb.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(t, fb.requests, "backend received no request")
	return fb.requests[len(fb.requests)-1]
}

func runCLI(t *testing.T, fb *fakeBackend, stdin string, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	a := &App{
		cfg: &config.Config{
			APIBaseURL:       fb.URL + "/api",
			APITimeout:       time.Second,
			WithCredentials:  true,
			SessionStoreType: "none",
		},
		log: &logger.NopLogger{},
		in:  strings.NewReader(stdin),
		out: out,
	}
	defer a.close()
	err := a.run(context.Background(), args)
	return out.String(), err
}

func TestCommandsReachTheirRoutes(t *testing.T) {
	cases := []struct {
		name   string
		args   []string
		method string
		path   string
		query  string
		body   map[string]any
	}{
		{"users list", []string{"users", "list"}, http.MethodGet, "/api/users", "", nil},
		{"users create", []string{"users", "create", "-d", `{"name":"Aki","email":"aki@example.com"}`}, http.MethodPost, "/api/users", "", map[string]any{"name": "Aki", "email": "aki@example.com"}},
		{"users delete", []string{"users", "delete", "7"}, http.MethodDelete, "/api/users/7", "", nil},
		{"qr send-all", []string{"qr", "send-all"}, http.MethodPost, "/api/send-qr-email-all", "", nil},
		{"attendance list", []string{"attendance", "list", "--user-id", "3", "--start-date", "2024-04-01"}, http.MethodGet, "/api/attendance", "start_date=2024-04-01&user_id=3", nil},
		{"makeup status", []string{"attendance", "makeup", "status", "5", "approved"}, http.MethodPatch, "/api/makeup-requests/5", "", map[string]any{"status": "approved"}},
		{"makeups update", []string{"makeups", "update", "5", "-d", `{"new_period":"3"}`}, http.MethodPatch, "/api/makeup-requests/5", "", map[string]any{"new_period": "3"}},
		{"staff login", []string{"auth", "login", "--staff", "-p", "secret"}, http.MethodPost, "/api/auth/staff-login", "", map[string]any{"password": "secret"}},
		{"imports get", []string{"imports", "get", "12"}, http.MethodGet, "/api/imported-data/12", "", nil},
		{"salaries delete", []string{"salaries", "delete", "2"}, http.MethodDelete, "/api/teacher-salaries/2", "", nil},
		{"leave list", []string{"leave", "list"}, http.MethodGet, "/api/paid-leave", "", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			_, err := runCLI(t, fb, "", tc.args...)
			require.NoError(t, err)

			got := fb.last(t)
			assert.Equal(t, tc.method, got.Method)
			assert.Equal(t, tc.path, got.Path)
			assert.Equal(t, tc.query, got.Query)
			assert.Equal(t, tc.body, got.Body)
		})
	}
}

func TestDataFromStdinAndFile(t *testing.T) {
	fb := newFakeBackend(t)
	_, err := runCLI(t, fb, `{"teacher_name":"佐藤","date":"2024-04-02"}`, "leave", "create", "-d", "-")
	require.NoError(t, err)
	assert.Equal(t, "佐藤", fb.last(t).Body["teacher_name"])

	path := filepath.Join(t.TempDir(), "salary.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"teacher_name":"鈴木","salary_per_class":3500}`), 0o644))
	_, err = runCLI(t, fb, "", "salaries", "save", "-d", "@"+path)
	require.NoError(t, err)
	assert.Equal(t, float64(3500), fb.last(t).Body["salary_per_class"])
}

func TestOutputIsIndentedJSON(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply = `{"id":1,"name":"Aki"}`

	out, err := runCLI(t, fb, "", "users", "get", "1")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": 1,\n  \"name\": \"Aki\"\n}\n", out)
	assert.Equal(t, "/api/users/1", fb.last(t).Path)
}

func TestAuthStatusDescribesSession(t *testing.T) {
	cases := map[string]string{
		`{"logged_in":true,"staff_logged_in":false}`:  "signed in\n",
		`{"logged_in":false,"staff_logged_in":true}`:  "signed in as staff\n",
		`{"logged_in":false,"staff_logged_in":false}`: "not signed in\n",
	}
	for reply, want := range cases {
		fb := newFakeBackend(t)
		fb.reply = reply
		out, err := runCLI(t, fb, "", "auth", "status")
		require.NoError(t, err)
		assert.Equal(t, want, out)
	}
}

func TestHealthReportsBackendStatus(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply = `{"status":"healthy"}`

	out, err := runCLI(t, fb, "", "health")
	require.NoError(t, err)
	assert.Equal(t, fb.URL+"/api: healthy\n", out)
	assert.Equal(t, "/api/health", fb.last(t).Path)
}

func TestFieldFlagsBuildRequestBodies(t *testing.T) {
	cases := []struct {
		name string
		args []string
		path string
		body map[string]any
	}{
		{"qr generate", []string{"qr", "generate", "--user-id", "3", "--date", "2024-04-01"}, "/api/generate-qr", map[string]any{"user_id": float64(3), "date": "2024-04-01"}},
		{"qr send without date", []string{"qr", "send", "--user-id", "3"}, "/api/send-qr-email", map[string]any{"user_id": float64(3)}},
		{"attendance check", []string{"attendance", "check", "--qr-data", "山田|2024-04-01"}, "/api/attendance/check", map[string]any{"qr_data": "山田|2024-04-01"}},
		{"makeups create", []string{"makeups", "create", "--name", "佐藤", "--subject", "数学", "--original-date", "2024-04-01", "--original-period", "2", "--new-date", "2024-04-08", "--new-period", "3"}, "/api/makeup-requests", map[string]any{
			"name": "佐藤", "subject": "数学", "original_date": "2024-04-01", "original_period": "2", "new_date": "2024-04-08", "new_period": "3",
		}},
		{"data overrides flags", []string{"qr", "generate", "--user-id", "3", "-d", `{"user_id":9}`}, "/api/generate-qr", map[string]any{"user_id": float64(9)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			_, err := runCLI(t, fb, "", tc.args...)
			require.NoError(t, err)
			got := fb.last(t)
			assert.Equal(t, tc.path, got.Path)
			assert.Equal(t, tc.body, got.Body)
		})
	}
}

func TestFieldFlagsRequireValues(t *testing.T) {
	fb := newFakeBackend(t)

	_, err := runCLI(t, fb, "", "qr", "generate")
	assert.ErrorContains(t, err, "--user-id or --data is required")

	_, err = runCLI(t, fb, "", "attendance", "check")
	assert.ErrorContains(t, err, "--qr-data or --data is required")

	_, err = runCLI(t, fb, "", "attendance", "makeup", "submit", "--name", "佐藤")
	assert.ErrorContains(t, err, "missing --subject, --original-date, --original-period, --new-date, --new-period")

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Empty(t, fb.requests)
}

func TestQRGenerateSavesImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	fb := newFakeBackend(t)
	fb.reply = `{"qr_code":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(png) + `","qr_data":"山田|2024-04-01"}`

	path := filepath.Join(t.TempDir(), "qr.png")
	out, err := runCLI(t, fb, "", "qr", "generate", "--user-id", "3", "--save", path)
	require.NoError(t, err)
	assert.Equal(t, "saved QR code for 山田|2024-04-01 to "+path+"\n", out)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestErrorResponsePrintsBodyAndFails(t *testing.T) {
	fb := newFakeBackend(t)
	fb.status = http.StatusUnauthorized
	fb.reply = `{"error":"ログインが必要です"}`

	out, err := runCLI(t, fb, "", "users", "list")
	require.Error(t, err)
	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Contains(t, out, "ログインが必要です")
}

func TestArgumentValidation(t *testing.T) {
	fb := newFakeBackend(t)

	_, err := runCLI(t, fb, "", "users", "delete", "abc")
	assert.ErrorContains(t, err, "invalid id")

	_, err = runCLI(t, fb, "", "users", "create")
	assert.ErrorContains(t, err, "--data is required")

	_, err = runCLI(t, fb, "", "users", "create", "-d", "{not json")
	assert.ErrorContains(t, err, "parse --data")

	t.Setenv("KINTAI_PASSWORD", "")
	_, err = runCLI(t, fb, "", "auth", "login")
	assert.ErrorContains(t, err, "password")

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Empty(t, fb.requests)
}

func TestImportsSaveParsesWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "山田 太郎"))
	require.NoError(t, f.SetCellValue("Sheet1", "A10", "4/1"))
	require.NoError(t, f.SetCellValue("Sheet1", "B10", "○"))
	path := filepath.Join(t.TempDir(), "april.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	fb := newFakeBackend(t)
	_, err := runCLI(t, fb, "", "imports", "save", path)
	require.NoError(t, err)

	got := fb.last(t)
	assert.Equal(t, "/api/import-excel", got.Path)
	assert.Equal(t, "april.xlsx", got.Body["filename"])
	info, ok := got.Body["basic_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "山田 太郎", info["name"])
	dates, ok := got.Body["attendance_dates"].([]any)
	require.True(t, ok)
	assert.Len(t, dates, 1)
}

func TestSalariesExportWritesWorkbook(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply = `[{"id":1,"teacher_name":"佐藤","salary_per_class":3000,"transportation_fee":500}]`

	path := filepath.Join(t.TempDir(), "salaries.xlsx")
	out, err := runCLI(t, fb, "", "salaries", "export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 salaries")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("先生給料")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"佐藤", "3000", "500"}, rows[1])
}

func TestEndpointsListsCatalog(t *testing.T) {
	fb := newFakeBackend(t)
	out, err := runCLI(t, fb, "", "endpoints")
	require.NoError(t, err)
	assert.Contains(t, out, "PATCH /makeup-requests/{id}")
	assert.Contains(t, out, "auth.staff_login")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 27)
}

func TestDispatchOnceSendsOncePerDay(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := &config.Config{
		APIBaseURL:       fb.URL + "/api",
		APITimeout:       time.Second,
		WithCredentials:  true,
		SessionStoreType: "bbolt",
		SessionPath:      filepath.Join(t.TempDir(), "session.db"),
		SessionTTL:       time.Hour,
		DispatchSchedule: "0 0 6 * * *",
	}

	dispatch := func() (string, error) {
		out := new(bytes.Buffer)
		a := &App{cfg: cfg, log: &logger.NopLogger{}, in: strings.NewReader(""), out: out}
		defer a.close()
		err := a.run(context.Background(), []string{"dispatch", "--once"})
		return out.String(), err
	}

	out, err := dispatch()
	require.NoError(t, err)
	assert.Equal(t, "dispatched\n", out)
	assert.Equal(t, "/api/send-qr-email-all", fb.last(t).Path)

	out, err = dispatch()
	require.NoError(t, err)
	assert.Equal(t, "already dispatched today\n", out)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Len(t, fb.requests, 1)
}
