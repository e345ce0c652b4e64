package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/qlab/config"
	_ "github.com/timzifer/qlab/drivers/ats9440"
	_ "github.com/timzifer/qlab/drivers/modbus"
	_ "github.com/timzifer/qlab/drivers/mqtt"
	_ "github.com/timzifer/qlab/drivers/random"
	"github.com/timzifer/qlab/drivers/virtual"
	"github.com/timzifer/qlab/instrument"
	"github.com/timzifer/qlab/snapshot"
	"github.com/timzifer/qlab/station"
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func main() {
	cfgPath := flag.String("config", "station.yaml", "Path to configuration file or directory")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	snapshotOut := flag.Bool("snapshot", false, "Print a snapshot of all instruments as JSON")
	update := flag.Bool("update", false, "Read parameters from the instruments before the snapshot")
	watch := flag.Bool("watch", false, "Keep running and reload the configuration when it changes")
	metricsListen := flag.String("metrics-listen", "", "Serve Prometheus metrics on this address while watching")
	sweepSpec := flag.String("sweep", "", "Sweep a parameter: instrument.parameter=start:stop:step")
	var gets, sets, measures stringList
	flag.Var(&gets, "get", "Read a parameter (instrument.parameter), repeatable")
	flag.Var(&sets, "set", "Write a parameter (instrument.parameter=value), repeatable")
	flag.Var(&measures, "measure", "Parameter read at every sweep point, repeatable")
	flag.Parse()

	if *configCheck {
		os.Exit(executeConfigCheck(*cfgPath, os.Stdout))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := station.New(ctx, station.WithConfigPath(*cfgPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start station")
	}
	defer st.Close()

	if err := execute(ctx, st, os.Stdout, actions{
		sets:     sets,
		gets:     gets,
		sweep:    *sweepSpec,
		measures: measures,
		snapshot: *snapshotOut,
		update:   *update,
	}); err != nil {
		log.Error().Err(err).Msg("command failed")
		st.Close()
		os.Exit(1)
	}

	if !*watch {
		return
	}
	if *metricsListen != "" {
		stop := serveMetrics(*metricsListen)
		defer stop()
	}
	log.Info().Str("config", *cfgPath).Msg("watching configuration")
	if err := st.Watch(ctx, 0); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("watch stopped")
	}
}

func executeConfigCheck(path string, out io.Writer) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "configuration invalid: %v\n", err)
		return 1
	}
	if len(cfg.Instruments) == 0 {
		fmt.Fprintln(out, "No instruments configured.")
		return 0
	}

	exitCode := 0
	for _, instCfg := range cfg.Instruments {
		fmt.Fprintf(out, "Instrument %q (%s)\n", instCfg.Name, instCfg.Driver)
		if module := describeModule(instCfg.Source); module != "" {
			fmt.Fprintf(out, "  Module: %s\n", module)
		}
		// An empty register bank stands in for the driver: only the
		// parameter definitions are checked.
		inst, err := instrument.Build(instCfg, virtual.New(virtual.Settings{}))
		if err != nil {
			exitCode = 1
			fmt.Fprintf(out, "  Error: %v\n\n", err)
			continue
		}
		for _, p := range inst.Parameters() {
			fmt.Fprintf(out, "  - %s", p.Name())
			if p.Unit() != "" {
				fmt.Fprintf(out, " [%s]", p.Unit())
			}
			fmt.Fprintf(out, " get=%t set=%t", p.Gettable(), p.Settable())
			if vals := p.Validator(); vals != nil {
				fmt.Fprintf(out, " vals=%v", vals)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, "  Status: OK")
		fmt.Fprintln(out)
	}

	if exitCode == 0 {
		fmt.Fprintln(out, "Configuration check completed successfully.")
	} else {
		fmt.Fprintln(out, "Configuration check completed with errors.")
	}
	return exitCode
}

func describeModule(ref config.ModuleReference) string {
	name := strings.TrimSpace(ref.Name)
	file := strings.TrimSpace(ref.File)
	desc := strings.TrimSpace(ref.Description)

	label := ""
	switch {
	case name != "" && file != "":
		label = fmt.Sprintf("%s (%s)", name, file)
	case name != "":
		label = name
	case file != "":
		label = file
	}
	if desc != "" {
		if label != "" {
			label = fmt.Sprintf("%s: %s", label, desc)
		} else {
			label = desc
		}
	}
	return label
}

func printSnapshot(out io.Writer, st *station.Station, update bool) error {
	snap, err := st.Snapshot(update)
	if err != nil {
		return err
	}
	return snapshot.Encode(out, snap)
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
