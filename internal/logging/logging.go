// Package logging builds the zerolog logger of a station, optionally
// shipping every entry to Loki as well.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grafana/loki-client-go/loki"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/config"
)

// Setup creates a zerolog logger writing to stdout according to cfg.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, func(), error) {
	return SetupWriter(cfg, os.Stdout)
}

// SetupWriter is Setup with an explicit primary output.
func SetupWriter(cfg config.LoggingConfig, out io.Writer) (zerolog.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	primary := out
	if strings.EqualFold(cfg.Format, "text") {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: out != os.Stdout}
	}

	writers := []io.Writer{primary}
	cleanup := func() {}
	if cfg.Loki.Enabled {
		lw, stop, err := newLokiWriter(cfg.Loki)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writers = append(writers, lw)
		cleanup = stop
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(level)
	return logger, cleanup, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	if strings.TrimSpace(raw) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

func newLokiWriter(cfg config.LokiConfig) (io.Writer, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("loki url is required")
	}
	lokiCfg, err := loki.NewDefaultConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare loki config: %w", err)
	}
	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create loki client: %w", err)
	}
	w := &lokiWriter{client: client, labels: lokiLabels(cfg.Labels)}
	return w, client.Stop, nil
}

func lokiLabels(raw map[string]string) model.LabelSet {
	labels := model.LabelSet{}
	for k, v := range raw {
		labels[model.LabelName(k)] = model.LabelValue(v)
	}
	if len(labels) == 0 {
		labels["app"] = "qlab"
	}
	return labels
}

type lokiWriter struct {
	client *loki.Client
	labels model.LabelSet
}

func (l *lokiWriter) Write(p []byte) (int, error) {
	entry := strings.TrimSpace(string(p))
	if entry == "" {
		return len(p), nil
	}
	return len(p), l.client.Handle(l.labels, time.Now(), entry)
}
