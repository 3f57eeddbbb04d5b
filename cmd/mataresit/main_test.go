package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mataresit "github.com/mataresit/mataresit-go"
	"github.com/mataresit/mataresit-go/internal/config"
	"github.com/mataresit/mataresit-go/internal/fakeserver"
)

// setupEnv points the command at a fresh fake server.
func setupEnv(t *testing.T, opts ...fakeserver.Option) *fakeserver.Server {
	t.Helper()
	fake := fakeserver.New(opts...)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	t.Chdir(t.TempDir())
	t.Setenv("MATARESIT_API_KEY", fakeserver.DefaultAPIKey)
	t.Setenv("MATARESIT_BASE_URL", srv.URL)
	t.Setenv("MATARESIT_BATCH_DELAY", "0s")
	t.Setenv("OUTPUT_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")
	return fake
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cfg := &Config{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: &stderr}
	err := run(append([]string{"mataresit"}, args...), cfg)
	return stdout.String(), stderr.String(), err
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Stdin != os.Stdin || cfg.Stdout != os.Stdout || cfg.Stderr != os.Stderr {
		t.Error("DefaultConfig() should use the process streams")
	}
}

func TestRun_NoArgs(t *testing.T) {
	err := run([]string{"mataresit"}, &Config{Stdout: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("run() error = %v, want usage", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	_, _, err := runCmd(t, "frobnicate")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("run() error = %v, want unknown command", err)
	}
}

func TestRun_Help(t *testing.T) {
	out, _, err := runCmd(t, "help")
	if err != nil {
		t.Fatalf("run(help) error = %v", err)
	}
	if !strings.Contains(out, "bulk-upload") {
		t.Errorf("help output missing commands: %s", out)
	}
}

func TestRun_MissingAPIKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MATARESIT_API_KEY", "")

	_, _, err := runCmd(t, "health")
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("run() error = %v, want ErrMissingAPIKey", err)
	}
	if strings.ContainsAny(err.Error(), "\n") {
		t.Errorf("error %q should be a single line", err)
	}

	want := "Error: MATARESIT_API_KEY environment variable not set\n" + missingKeyHelp
	if got := errorMessage(err); got != want {
		t.Errorf("errorMessage() = %q, want %q", got, want)
	}
}

func TestErrorMessage_Usage(t *testing.T) {
	_, _, err := runCmd(t, "nope")
	if !errors.Is(err, errUsage) {
		t.Fatalf("run() error = %v, want errUsage", err)
	}
	got := errorMessage(err)
	if !strings.HasPrefix(got, `unknown command "nope": invalid usage`) || !strings.HasSuffix(got, usage) {
		t.Errorf("errorMessage() = %q, want the error followed by usage", got)
	}
}

func TestErrorMessage_OtherErrors(t *testing.T) {
	err := errors.New("unknown command: nope")
	if got := errorMessage(err); got != err.Error() {
		t.Errorf("errorMessage() = %q, want %q", got, err.Error())
	}
}

func TestRun_Health(t *testing.T) {
	setupEnv(t)

	out, _, err := runCmd(t, "health")
	if err != nil {
		t.Fatalf("run(health) error = %v", err)
	}
	var h mataresit.Health
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if h.Status != "healthy" {
		t.Errorf("Status = %q", h.Status)
	}
}

func TestRun_CreateAndGetReceipt(t *testing.T) {
	setupEnv(t)

	out, _, err := runCmd(t, "create-receipt", "-merchant", "Coffee Shop", "-date", "2025-01-15", "-total", "15.50", "-wait")
	if err != nil {
		t.Fatalf("run(create-receipt) error = %v", err)
	}
	var created mataresit.Receipt
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if created.Status() != mataresit.StatusComplete {
		t.Errorf("Status() = %q, want complete", created.Status())
	}

	out, _, err = runCmd(t, "get-receipt", created.ID)
	if err != nil {
		t.Fatalf("run(get-receipt) error = %v", err)
	}
	if !strings.Contains(out, `"merchant": "Coffee Shop"`) {
		t.Errorf("get-receipt output = %s", out)
	}

	out, _, err = runCmd(t, "update-receipt", created.ID, "-category", "Food")
	if err != nil {
		t.Fatalf("run(update-receipt) error = %v", err)
	}
	if !strings.Contains(out, `"category": "Food"`) || !strings.Contains(out, `"merchant": "Coffee Shop"`) {
		t.Errorf("update-receipt output = %s", out)
	}

	if _, _, err := runCmd(t, "delete-receipt", created.ID); err != nil {
		t.Fatalf("run(delete-receipt) error = %v", err)
	}
	if _, _, err := runCmd(t, "get-receipt", created.ID); err == nil {
		t.Error("get-receipt after delete should fail")
	}
}

func TestRun_CreateReceiptMissingTotal(t *testing.T) {
	setupEnv(t)
	_, _, err := runCmd(t, "create-receipt", "-merchant", "A", "-date", "2025-01-15")
	if err == nil || !strings.Contains(err.Error(), "-total") {
		t.Errorf("run() error = %v, want missing -total", err)
	}
}

func TestRun_Wait(t *testing.T) {
	fake := setupEnv(t)
	t.Setenv("MATARESIT_POLL_INTERVAL", "1ms")

	out, _, err := runCmd(t, "create-receipt", "-merchant", "A", "-date", "2025-01-15", "-total", "1")
	if err != nil {
		t.Fatal(err)
	}
	var created mataresit.Receipt
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatal(err)
	}

	if _, _, err := runCmd(t, "wait", created.ID, "-max-wait", "5s"); err != nil {
		t.Fatalf("run(wait) error = %v", err)
	}
	if n := fake.CountRequests("GET", "/receipts/"+created.ID); n != 1 {
		t.Errorf("polls = %d, want 1", n)
	}
}

func TestRun_BulkUpload(t *testing.T) {
	fake := setupEnv(t)

	receipts := `[
  {"merchant": "A", "date": "2025-01-01", "total": 1},
  {"merchant": "B", "date": "2025-01-02", "total": 2},
  {"merchant": "C", "date": "2025-01-03", "total": 3}
]`
	path := filepath.Join(t.TempDir(), "receipts.json")
	if err := os.WriteFile(path, []byte(receipts), 0o600); err != nil {
		t.Fatal(err)
	}

	out, stderr, err := runCmd(t, "bulk-upload", "-batch-size", "2", path)
	if err != nil {
		t.Fatalf("run(bulk-upload) error = %v", err)
	}
	var result mataresit.BulkResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.Total != 3 || result.Successful != 3 {
		t.Errorf("result = %+v", result)
	}
	if n := fake.CountRequests("POST", "/receipts/batch"); n != 2 {
		t.Errorf("batch requests = %d, want 2", n)
	}
	if !strings.Contains(stderr, "Batch 2/2 complete") {
		t.Errorf("progress output = %q", stderr)
	}
}

func TestLoadReceipts_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipts.yaml")
	data := "- merchant: Coffee Shop\n  date: \"2025-01-15\"\n  total: 15.50\n  category: Food\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	receipts, err := loadReceipts(path, nil)
	if err != nil {
		t.Fatalf("loadReceipts() error = %v", err)
	}
	if len(receipts) != 1 || receipts[0].Merchant != "Coffee Shop" || receipts[0].Total.String() != "15.50" {
		t.Errorf("receipts = %+v", receipts)
	}
}

func TestLoadReceipts_Stdin(t *testing.T) {
	receipts, err := loadReceipts("-", strings.NewReader(`[{"merchant":"A","date":"2025-01-01","total":"4.20"}]`))
	if err != nil {
		t.Fatalf("loadReceipts() error = %v", err)
	}
	if len(receipts) != 1 || receipts[0].Total.String() != "4.20" {
		t.Errorf("receipts = %+v", receipts)
	}

	if _, err := loadReceipts("-", strings.NewReader("not json")); err == nil {
		t.Error("loadReceipts() should reject invalid JSON")
	}
}

func TestRun_YAMLOutput(t *testing.T) {
	setupEnv(t)
	t.Setenv("OUTPUT_FORMAT", "yaml")

	out, _, err := runCmd(t, "create-receipt", "-merchant", "Coffee Shop", "-date", "2025-01-15", "-total", "15.50")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"merchant: Coffee Shop", "total: 15.5", `date: "2025-01-15"`} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_ClaimsSearchAnalyticsTeams(t *testing.T) {
	setupEnv(t, fakeserver.WithTeams(fakeserver.Team{ID: "team-1", Name: "Finance", Role: "owner", MemberCount: 2}))

	if _, _, err := runCmd(t, "create-receipt", "-merchant", "Office Depot", "-date", "2025-01-15", "-total", "42", "-category", "Office Supplies", "-team", "team-1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"create claim", []string{"create-claim", "-team", "team-1", "-title", "Printer paper", "-amount", "42"}, `"priority": "medium"`},
		{"list claims", []string{"list-claims", "-team", "team-1"}, `"title": "Printer paper"`},
		{"search", []string{"search", "office", "supplies", "-sources", "receipts"}, `"title": "Office Depot"`},
		{"summary", []string{"summary"}, `"totalReceipts": 1`},
		{"categories", []string{"categories"}, `"category": "Office Supplies"`},
		{"analytics", []string{"analytics", "-start", "2025-01-01"}, `"monthlyTrends"`},
		{"teams", []string{"teams"}, `"name": "Finance"`},
		{"team stats", []string{"team-stats", "team-1"}, `"totalReceipts": 1`},
		{"list receipts", []string{"list-receipts", "-min", "40", "-merchant", "office"}, `"total": 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCmd(t, tt.args...)
			if err != nil {
				t.Fatalf("run(%v) error = %v", tt.args, err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestWriteOutput_UnknownFormat(t *testing.T) {
	if err := writeOutput(&bytes.Buffer{}, "xml", map[string]int{"a": 1}); err == nil {
		t.Error("writeOutput() should reject unknown formats")
	}
}

func TestFatal(t *testing.T) {
	original := exitFunc
	defer func() { exitFunc = original }()

	var code int
	exitFunc = func(c int) { code = c }

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fatal("test error: %s", "details")

	w.Close()
	os.Stderr = oldStderr
	var buf bytes.Buffer
	buf.ReadFrom(r)

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if buf.String() != "test error: details\n" {
		t.Errorf("output = %q", buf.String())
	}
}
