package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flowline/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowline.log")
	writeLog(t, path, "one\ntwo\nthree\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "two" || result.Lines[1] != "three" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset == 0 {
		t.Fatal("expected offset to advance past the file")
	}
}

func TestTailResumesFromOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowline.log")
	writeLog(t, path, "start\n")

	first, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("initial Tail failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("more\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	second, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("resume Tail failed: %v", err)
	}
	if len(second.Lines) != 1 || second.Lines[0] != "more" {
		t.Fatalf("unexpected resumed lines: %#v", second.Lines)
	}
	if second.Offset <= first.Offset {
		t.Fatalf("offset did not advance: %d -> %d", first.Offset, second.Offset)
	}
}

func TestTailWaitsForNewLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowline.log")
	writeLog(t, path, "seed\n")

	seed, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("seed Tail failed: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func() {
		res, err := logs.Tail(context.Background(), path, logs.TailOptions{
			Offset: seed.Offset,
			Wait:   5 * time.Second,
		})
		if err != nil {
			t.Errorf("waiting Tail failed: %v", err)
		}
		done <- res
	}()

	time.Sleep(300 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case res := <-done:
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Fatalf("unexpected waited lines: %#v", res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Tail did not observe the appended line")
	}
}

func TestTailMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowline.log")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("Tail on missing file failed: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %#v", result)
	}
}

func TestCurrentPath(t *testing.T) {
	if got := logs.CurrentPath("/var/log/flowline"); got != filepath.Join("/var/log/flowline", "flowline.log") {
		t.Fatalf("unexpected current path: %q", got)
	}
}
