package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/psantana5/paw/pkg/logging"
	"github.com/psantana5/paw/pkg/procstat"
	"github.com/psantana5/paw/pkg/watch"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func sample(uptime uint64, rss uint64, cpu *float64) watch.Sample {
	s := watch.Sample{
		Uptime:  uptime,
		CPU:     cpu,
		Process: watch.ProcessSnapshot{Cmd: "sleep", Args: []string{"1"}, PID: 99},
	}
	if rss > 0 {
		s.Memory = &procstat.MemoryInfo{RSS: rss, VMS: rss * 2}
	}
	return s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		desc     string
		outcome  *watch.Outcome
		deadline bool
		expected ExitReason
	}{
		{"nil outcome", nil, false, ExitReasonUnknown},
		{"exit zero", &watch.Outcome{ExitCode: intPtr(0)}, false, ExitReasonSuccess},
		{"exit non-zero", &watch.Outcome{ExitCode: intPtr(2)}, false, ExitReasonError},
		{"signalled", &watch.Outcome{Signal: "SIGSEGV"}, false, ExitReasonSignal},
		{"deadline", &watch.Outcome{Signal: "SIGKILL"}, true, ExitReasonTimeout},
		{"deadline but clean exit", &watch.Outcome{ExitCode: intPtr(0)}, true, ExitReasonTimeout},
		{"no code no signal", &watch.Outcome{}, false, ExitReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := Classify(tt.outcome, tt.deadline); got != tt.expected {
				t.Errorf("Classify() = %s, expected %s", got, tt.expected)
			}
		})
	}
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator()
	if agg.ID() == "" {
		t.Fatal("expected a watch ID")
	}

	agg.Observe(sample(0, 1000, floatPtr(0)))
	agg.Observe(sample(100, 5000, floatPtr(50)))
	agg.Observe(sample(200, 0, nil))
	agg.Observe(sample(300, 3000, floatPtr(100)))

	sum := agg.Finish(&watch.Outcome{Stdout: "hello\n", ExitCode: intPtr(0)}, false)

	if sum.Samples != 4 {
		t.Errorf("Samples = %d, expected 4", sum.Samples)
	}
	if sum.PeakRSS != 5000 || sum.PeakVMS != 10000 {
		t.Errorf("peaks = %d/%d, expected 5000/10000", sum.PeakRSS, sum.PeakVMS)
	}
	if sum.MeanCPU != 50 {
		t.Errorf("MeanCPU = %.2f, expected 50", sum.MeanCPU)
	}
	if sum.MaxCPU != 100 {
		t.Errorf("MaxCPU = %.2f, expected 100", sum.MaxCPU)
	}
	if sum.CPUGaps != 1 || sum.MemoryGaps != 1 {
		t.Errorf("gaps = cpu %d mem %d, expected 1/1", sum.CPUGaps, sum.MemoryGaps)
	}
	if sum.Command != "sleep" || sum.PID != 99 {
		t.Errorf("identity = %s/%d", sum.Command, sum.PID)
	}
	if sum.StdoutBytes != 6 {
		t.Errorf("StdoutBytes = %d, expected 6", sum.StdoutBytes)
	}
	if sum.Reason != ExitReasonSuccess {
		t.Errorf("Reason = %s, expected success", sum.Reason)
	}
	if sum.WatchID != agg.ID() {
		t.Errorf("summary ID %s does not match aggregator ID %s", sum.WatchID, agg.ID())
	}
}

func TestAggregatorIDsAreUnique(t *testing.T) {
	if NewAggregator().ID() == NewAggregator().ID() {
		t.Error("two aggregators share a watch ID")
	}
}

func TestRecentSamples(t *testing.T) {
	recent := NewRecentSamples(3)
	for i := 0; i < 5; i++ {
		recent.Record(sample(uint64(i*100), 0, nil))
	}

	if recent.Count() != 3 {
		t.Fatalf("Count = %d, expected 3", recent.Count())
	}

	all := recent.GetRecent(0)
	for i, expected := range []uint64{200, 300, 400} {
		if all[i].Uptime != expected {
			t.Errorf("sample %d uptime = %d, expected %d", i, all[i].Uptime, expected)
		}
	}

	last := recent.GetRecent(1)
	if len(last) != 1 || last[0].Uptime != 400 {
		t.Errorf("GetRecent(1) = %+v", last)
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncrStarted()
	m.ObserveSample(sample(1500, 4096, floatPtr(12.5)))
	m.ObserveSample(sample(2000, 0, nil))

	if got := testutil.ToFloat64(m.samples); got != 2 {
		t.Errorf("samples = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(m.rssBytes); got != 4096 {
		t.Errorf("rss = %v, expected last known 4096", got)
	}
	if got := testutil.ToFloat64(m.cpuPercent); got != 12.5 {
		t.Errorf("cpu = %v, expected 12.5", got)
	}
	if got := testutil.ToFloat64(m.uptimeSeconds); got != 2 {
		t.Errorf("uptime = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(m.unavailable.WithLabelValues("memory")); got != 1 {
		t.Errorf("memory unavailable = %v, expected 1", got)
	}

	m.RecordSummary(&Summary{Reason: ExitReasonSignal, Signal: "SIGKILL"})
	if got := testutil.ToFloat64(m.exitCode); got != -1 {
		t.Errorf("exit code gauge = %v, expected -1", got)
	}
	if got := testutil.ToFloat64(m.watchesFinished.WithLabelValues("signal")); got != 1 {
		t.Errorf("finished{signal} = %v, expected 1", got)
	}

	m.RecordFailure(&watch.Error{Op: watch.OpSpawn, Err: watch.ErrSpawn})
	m.RecordFailure(errors.New("other"))
	if got := testutil.ToFloat64(m.watchesFailed.WithLabelValues("spawn")); got != 1 {
		t.Errorf("failed{spawn} = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(m.watchesFailed.WithLabelValues("unknown")); got != 1 {
		t.Errorf("failed{unknown} = %v, expected 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.IncrStarted()

	path := filepath.Join(t.TempDir(), "paw.prom")
	if err := WriteTextfile(path, m.Registry()); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if !strings.Contains(string(data), "paw_watches_started_total 1") {
		t.Errorf("textfile missing started counter:\n%s", data)
	}

	matches, _ := filepath.Glob(path + ".*.tmp")
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestServerRoutes(t *testing.T) {
	m := NewMetrics()
	recent := NewRecentSamples(10)
	for i := 0; i < 4; i++ {
		s := sample(uint64(i), 100, floatPtr(1))
		recent.Record(s)
		m.ObserveSample(s)
	}

	srv := NewServer("127.0.0.1:0", m, recent, logging.Discard())
	router := srv.Router()

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/health", http.StatusOK, `"ok"`},
		{"/metrics", http.StatusOK, "paw_samples_total 4"},
		{"/samples?n=2", http.StatusOK, `"uptime":2`},
		{"/samples?n=bad", http.StatusBadRequest, "invalid n"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, expected %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body missing %q:\n%s", tt.contains, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/samples?n=2", nil))
	var got []watch.Sample
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("samples body is not JSON: %v", err)
	}
	if len(got) != 2 || got[1].Uptime != 3 {
		t.Errorf("unexpected samples %+v", got)
	}
}

func TestServerStartShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewMetrics(), NewRecentSamples(1), logging.Discard())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestLogSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.INFO, false)
	logger.SetOutput(&buf)

	(&Summary{WatchID: "w1", Reason: ExitReasonError, ExitCode: intPtr(2)}).LogSummary(logger)

	out := buf.String()
	if !strings.Contains(out, "WARN: Watch finished") || !strings.Contains(out, "exit=2") {
		t.Errorf("unexpected summary line: %q", out)
	}
}
