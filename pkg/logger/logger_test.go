package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":       zerolog.InfoLevel,
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"bogus":  zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextFieldsAreEmitted(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithFamilyID(context.Background(), "fam-1")
	ctx = logg.WithResource(ctx, "tasks")
	logg.Info(ctx, "store.loaded")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["family_id"] != "fam-1" || line["resource"] != "tasks" || line["service"] != "test" {
		t.Fatalf("unexpected fields %v", line)
	}
	if line["message"] != "store.loaded" {
		t.Fatalf("unexpected message %v", line["message"])
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})
	logg.Error(context.Background(), "boom", errors.New("bad"))

	out := buf.String()
	if !strings.Contains(out, `"error":"bad"`) || !strings.Contains(out, `"stack"`) {
		t.Fatalf("expected error and stack in %s", out)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf, Level: zerolog.WarnLevel})
	logg.Debug(context.Background(), "hidden")
	logg.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}
}
