package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"hrcopilot/internal/app/server"
	"hrcopilot/internal/domain/auth"
	"hrcopilot/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

func testConfig(driver, dbURL string) config.Config {
	return config.Config{
		Addr:                   ":0",
		DatabaseURL:            dbURL,
		StoreDriver:            driver,
		JWTSecret:              "test-secret",
		Environment:            "test",
		MigrationsDir:          "../../../../migrations",
		RunMigrations:          true,
		RunSeed:                true,
		ClearLeavesOnStart:     driver == config.StoreDriverPostgres,
		MaxBodyBytes:           1048576,
		RateLimitPerMinute:     1000,
		OverlapCheck:           true,
		SessionTTL:             time.Hour,
		MetricsEnabled:         true,
		NormalizeSweepInterval: 0,
	}
}

func startApp(t *testing.T, cfg config.Config) (*httptest.Server, string) {
	t.Helper()
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)

	token, err := auth.GenerateToken(cfg.JWTSecret, "journey", auth.RoleHR, time.Hour)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return ts, token
}

func TestLeaveJourneyInMemory(t *testing.T) {
	ts, token := startApp(t, testConfig(config.StoreDriverMemory, ""))
	runLeaveJourney(t, ts, token, "10001")
}

func TestLeaveJourneyPostgres(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ts, token := startApp(t, testConfig(config.StoreDriverPostgres, dbURL))

	empID := fmt.Sprintf("9%05d", time.Now().UnixNano()%100000)
	postJSON(t, ts.Client(), ts.URL+"/api/v1/employees", token, map[string]any{
		"empId":        empID,
		"name":         "Journey Tester",
		"project":      "QA",
		"leaveBalance": map[string]int{"casual": 12, "sick": 8},
	})
	runLeaveJourney(t, ts, token, empID)
}

func runLeaveJourney(t *testing.T, ts *httptest.Server, token, empID string) {
	t.Helper()
	client := ts.Client()

	var balance struct {
		LeaveBalance map[string]int `json:"leaveBalance"`
	}
	decode(t, getJSON(t, client, ts.URL+"/api/v1/leave-balance/"+empID, ""), &balance)
	if balance.LeaveBalance["casual"] != 12 || balance.LeaveBalance["sick"] != 8 {
		t.Fatalf("unexpected starting balance %v", balance.LeaveBalance)
	}

	var applied struct {
		Message    string         `json:"message"`
		NewBalance map[string]int `json:"newBalance"`
	}
	decode(t, postJSON(t, client, ts.URL+"/api/v1/apply-leave", token, map[string]string{
		"empId":     empID,
		"leaveType": "casual",
		"fromDate":  "2025-09-10",
		"toDate":    "2025-09-10",
		"reason":    "Vacation",
	}), &applied)
	if applied.Message != "Leave applied successfully" || applied.NewBalance["casual"] != 11 {
		t.Fatalf("unexpected apply response %+v", applied)
	}

	var history struct {
		Leaves []struct {
			FromDate string `json:"fromDate"`
			Days     int    `json:"days"`
		} `json:"leaves"`
		Total int `json:"total"`
	}
	decode(t, getJSON(t, client, ts.URL+"/api/v1/leave-history/"+empID, ""), &history)
	if history.Total != 1 || len(history.Leaves) != 1 || history.Leaves[0].FromDate != "2025-09-10" || history.Leaves[0].Days != 1 {
		t.Fatalf("unexpected history %+v", history)
	}

	status, raw := rawRequest(t, client, http.MethodPost, ts.URL+"/api/v1/apply-leave", "", `{"empId":"`+empID+`","leaveType":"casual","fromDate":"2025-09-11","toDate":"2025-09-11","reason":"x"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", status, raw)
	}

	var reply struct {
		Kind    string `json:"kind"`
		Balance struct {
			Casual int `json:"casual"`
		} `json:"balance"`
	}
	decode(t, postJSON(t, client, ts.URL+"/api/v1/chat", "", map[string]string{"message": "show my leave balance " + empID}), &reply)
	if reply.Kind != "balance" || reply.Balance.Casual != 11 {
		t.Fatalf("unexpected chat reply %+v", reply)
	}

	status, raw = rawRequest(t, client, http.MethodGet, ts.URL+"/api/v1/leave-history/"+empID+"/statement.pdf", "", "")
	if status != http.StatusOK || !strings.HasPrefix(raw, "%PDF-") {
		t.Fatalf("unexpected statement response %d", status)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := startApp(t, testConfig(config.StoreDriverMemory, ""))
	client := ts.Client()

	status, raw := rawRequest(t, client, http.MethodGet, ts.URL+"/", "", "")
	if status != http.StatusOK || !strings.Contains(raw, "HR Copilot backend is running") {
		t.Fatalf("unexpected health response %d: %s", status, raw)
	}
	status, _ = rawRequest(t, client, http.MethodGet, ts.URL+"/readyz", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected ready, got %d", status)
	}

	getJSON(t, client, ts.URL+"/api/v1/employees", "")
	status, raw = rawRequest(t, client, http.MethodGet, ts.URL+"/metrics", "", "")
	if status != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", status)
	}
	if !strings.Contains(raw, `hrcopilot_http_requests_total{method="GET",route="/api/v1/employees`) {
		t.Fatalf("expected employees route in metrics output:\n%s", raw)
	}
}

func TestBulkImportThenList(t *testing.T) {
	ts, token := startApp(t, testConfig(config.StoreDriverMemory, ""))
	client := ts.Client()

	status, raw := rawRequestWithType(t, client, http.MethodPost, ts.URL+"/api/v1/employees/import", token, "text/csv",
		"emp_id,name,project,casual,sick\n50001,Imported One,Ops,3,2\n")
	if status != http.StatusOK {
		t.Fatalf("unexpected import status %d: %s", status, raw)
	}

	var list struct {
		Total int `json:"total"`
	}
	decode(t, getJSON(t, client, ts.URL+"/api/v1/employees", ""), &list)
	if list.Total != 5 {
		t.Fatalf("expected 5 employees after import, got %d", list.Total)
	}
}

func decode(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func rawRequest(t *testing.T, client *http.Client, method, url, token, body string) (int, string) {
	t.Helper()
	return rawRequestWithType(t, client, method, url, token, "application/json", body)
}

func rawRequestWithType(t *testing.T, client *http.Client, method, url, token, contentType, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp.StatusCode, string(raw)
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return env
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return env
}
