package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/reactive/internal/config"
	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/inspect"
	"github.com/vango-dev/reactive/pkg/reactive"
)

// inTempDir runs the test from an empty directory so no reactive.json
// above the repository is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if out != version+"\n" {
		t.Errorf("version --short = %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Version:", "Commit:", "Go version:"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q", want)
		}
	}
}

func TestDemoList(t *testing.T) {
	out, err := execute(t, "demo")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range scenarioNames() {
		if !strings.Contains(out, name) {
			t.Errorf("scenario %q not listed", name)
		}
	}
}

func TestDemoScenarios(t *testing.T) {
	inTempDir(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "glitch",
			want: []string{"effect: a=1 b=2 c=3", "effect: a=2 b=4 c=6", "effect: a=3 b=6 c=9", "effect ran 3 times"},
			// No run may observe a new a with a stale b or c.
			notWant: []string{"a=2 b=2", "a=2 b=4 c=3", "a=3 b=4"},
		},
		{
			name: "batch",
			want: []string{"effect: Ada Lovelace", "effect: Grace Hopper", "effect: Alan Hopper", "effect: Alan Turing", "effect ran 4 times"},
			// The batch never exposes the half-written name.
			notWant: []string{"Grace Lovelace"},
		},
		{
			name:    "dynamic",
			want:    []string{"effect: a=a0", "effect: b=b1", "effect: b=b2", "effect ran 3 times"},
			notWant: []string{"a=a1"},
		},
		{
			name:    "untrack",
			want:    []string{"effect: count=0", "effect: total=1", "effect ran 2 times"},
			notWant: []string{"total=0"},
		},
		{
			name: "dispose",
			want: []string{
				"effect: doubled=2",
				"cleanup: doubled was 2",
				"effect: doubled=4",
				"cleanup: doubled was 4",
				"scope cleanup",
				"effect ran 2 times; disposed memo reads 4",
			},
			notWant: []string{"doubled=6"},
		},
		{
			name: "loop",
			args: []string{"--max-reruns", "5"},
			want: []string{"R002", "effect ran 6 times; n = 6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"demo", tt.name}, tt.args...)...)
			if err != nil {
				t.Fatalf("demo %s: %v", tt.name, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(out, notWant) {
					t.Errorf("output should not contain %q:\n%s", notWant, out)
				}
			}
		})
	}
}

func TestDemoErrors(t *testing.T) {
	inTempDir(t)

	_, err := execute(t, "demo", "nope")
	if errors.Code(err) != "R201" {
		t.Errorf("unknown scenario: expected R201, got %v", err)
	}
	if e := errors.FromError(err, ""); !strings.Contains(e.Suggestion, "glitch") {
		t.Errorf("suggestion should list the scenarios, got %q", e.Suggestion)
	}

	_, err = execute(t, "demo", "glitch", "--max-reruns", "-1")
	if errors.Code(err) != "R202" {
		t.Errorf("negative reruns: expected R202, got %v", err)
	}

	if _, err := execute(t, "demo", "glitch", "batch"); err == nil {
		t.Error("two scenarios should be rejected")
	}
}

func TestBenchJSON(t *testing.T) {
	out, err := execute(t, "bench", "--fanout", "10", "--chain", "5", "-n", "20", "--json")
	if err != nil {
		t.Fatal(err)
	}

	var report benchReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(report.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(report.Cases))
	}
	if c := report.Cases[0]; c.Name != "fanout/10" || c.EffectRuns != 200 {
		t.Errorf("fanout case = %+v", c)
	}
	if c := report.Cases[1]; c.Name != "chain/5" || c.EffectRuns != 20 {
		t.Errorf("chain case = %+v", c)
	}
}

func TestBenchOutputAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.json")

	if _, err := execute(t, "bench", "--fanout", "2", "--chain", "2", "-n", "3", "-o", path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"chain/2"`)) {
		t.Errorf("report file missing chain case:\n%s", data)
	}

	out, err := execute(t, "bench", "--fanout", "2", "--chain", "2", "-n", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "fanout/2") || !strings.Contains(out, "per write") {
		t.Errorf("table output = %q", out)
	}

	_, err = execute(t, "bench", "--chain", "0")
	if errors.Code(err) != "R202" {
		t.Errorf("expected R202, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := inTempDir(t)

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "# defaults") {
		t.Errorf("show without a file should print defaults, got %q", out)
	}

	if _, err := execute(t, "config", "init"); err != nil {
		t.Fatal(err)
	}
	if !config.Exists(dir) {
		t.Fatal("init should write reactive.json")
	}

	if _, err := execute(t, "config", "init"); err == nil {
		t.Error("init should refuse to overwrite")
	}
	if _, err := execute(t, "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	out, err = execute(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, config.ConfigFileName) || !strings.Contains(out, `"maxEffectReruns": 100`) {
		t.Errorf("show output = %q", out)
	}
}

func TestTickGraph(t *testing.T) {
	disposed := 0
	rt := reactive.NewRuntime(
		reactive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		reactive.WithEventSink(func(ev reactive.Event) {
			if ev.Kind == reactive.EventScopeDisposed {
				disposed++
			}
		}),
	)
	defer rt.Dispose()

	g := newTickGraph(rt)
	before := rt.Stats()
	if before.Effects != 2 || before.Memos != 3 {
		t.Fatalf("initial graph = %+v", before)
	}

	for i := 0; i < panelEvery; i++ {
		if err := g.step(); err != nil {
			t.Fatal(err)
		}
	}

	if g.tick.Peek() != panelEvery || g.sum.Peek() != 15 {
		t.Errorf("tick = %d, sum = %d", g.tick.Peek(), g.sum.Peek())
	}
	if g.status != "tick 5 is odd" {
		t.Errorf("status = %q", g.status)
	}
	if disposed != 1 {
		t.Errorf("expected one panel disposal, got %d", disposed)
	}

	after := rt.Stats()
	if after.Effects != before.Effects || after.Memos != before.Memos || after.Scopes != before.Scopes {
		t.Errorf("replacing the panel should keep the graph size, before %+v after %+v", before, after)
	}
}

func TestDriveGraphPublishesStats(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := inspect.NewHub(logger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- driveGraph(ctx, []reactive.Option{reactive.WithLogger(logger)}, hub, 5*time.Millisecond, logger)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Snapshot().Stats.Clock < 20 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("driveGraph() = %v", err)
	}
	if snap := hub.Snapshot(); snap.Stats.Clock < 20 || snap.Stats.Effects != 2 {
		t.Errorf("stats were not published: %+v", snap.Stats)
	}
}
