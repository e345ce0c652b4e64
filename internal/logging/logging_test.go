package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/config"
)

func TestSetupWriterJSONLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := SetupWriter(config.LoggingConfig{Level: "WARN"}, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer cleanup()

	logger.Info().Msg("hidden")
	logger.Warn().Str("parameter", "dmm.volt").Msg("stale")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry should be filtered: %s", out)
	}
	if !strings.Contains(out, `"parameter":"dmm.volt"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("unexpected output %s", out)
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("unexpected level %v", logger.GetLevel())
	}
}

func TestSetupWriterTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := SetupWriter(config.LoggingConfig{Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer cleanup()

	logger.Info().Msg("ready")
	if out := buf.String(); strings.HasPrefix(strings.TrimSpace(out), "{") || !strings.Contains(out, "ready") {
		t.Fatalf("expected console output, got %s", out)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, _, err := SetupWriter(config.LoggingConfig{Level: "chatty"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected level error")
	}
}

func TestSetupRequiresLokiURL(t *testing.T) {
	cfg := config.LoggingConfig{Loki: config.LokiConfig{Enabled: true}}
	if _, _, err := SetupWriter(cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected loki url error")
	}
}

func TestLokiLabelsDefault(t *testing.T) {
	labels := lokiLabels(nil)
	if labels["app"] != model.LabelValue("qlab") {
		t.Fatalf("unexpected default labels %v", labels)
	}
	labels = lokiLabels(map[string]string{"station": "bench"})
	if len(labels) != 1 || labels["station"] != "bench" {
		t.Fatalf("unexpected labels %v", labels)
	}
}
