package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"weatherportal-web/internal/config"
)

func TestNew_prodWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "weatherportal-web")

	logger.Info("hello", "view_id", "v-1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"msg":     "hello",
		"app":     "weatherportal-web",
		"version": "1.2.3",
		"env":     "prod",
		"view_id": "v-1",
	} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %q", key, rec[key], want)
		}
	}
}

func TestNew_respectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}, "1.2.3", "app")

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestNew_devUsesText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}, "dev", "app")

	logger.Debug("tinted", "k", "v")
	out := buf.String()
	if !strings.Contains(out, "tinted") || !strings.Contains(out, "app") {
		t.Fatalf("dev output missing message or app attr: %q", out)
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("dev output should not be JSON: %q", out)
	}
}

func TestNew_prodTimestampsAreUTC(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "app").Info("tick")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	ts, _ := rec["time"].(string)
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("time = %q; want UTC RFC3339", ts)
	}
}

func TestNew_unstampedProdBuildIsTinted(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "dev", "app").Info("local")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("unstamped build should use tint output: %q", buf.String())
	}
}
