package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/parameter"
	"github.com/timzifer/qlab/station"
	"github.com/timzifer/qlab/sweep"
)

type actions struct {
	sets     []string
	gets     []string
	sweep    string
	measures []string
	snapshot bool
	update   bool
}

// execute runs the command line actions in a fixed order: sets, gets,
// sweep, snapshot.
func execute(ctx context.Context, st *station.Station, out io.Writer, a actions) error {
	for _, assignment := range a.sets {
		name, value, err := parseAssignment(assignment)
		if err != nil {
			return err
		}
		p, err := st.Parameter(name)
		if err != nil {
			return err
		}
		if err := p.Set(value); err != nil {
			return err
		}
	}
	for _, name := range a.gets {
		p, err := st.Parameter(name)
		if err != nil {
			return err
		}
		value, err := p.Get()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s = %v%s\n", name, value, unitSuffix(p))
	}
	if a.sweep != "" {
		if err := runSweep(ctx, st, out, a.sweep, a.measures); err != nil {
			return err
		}
	}
	if a.snapshot {
		return printSnapshot(out, st, a.update)
	}
	return nil
}

func runSweep(ctx context.Context, st *station.Station, out io.Writer, spec string, measures []string) error {
	name, bounds, ok := strings.Cut(spec, "=")
	if !ok {
		return fmt.Errorf("sweep %q must have the form instrument.parameter=start:stop:step", spec)
	}
	start, stop, step, err := parseBounds(bounds)
	if err != nil {
		return fmt.Errorf("sweep %q: %w", spec, err)
	}
	values, err := sweep.MakeSweep(start, stop, step, 0)
	if err != nil {
		return err
	}
	target, err := st.Parameter(name)
	if err != nil {
		return err
	}
	probes := make([]*parameter.Parameter, 0, len(measures))
	for _, m := range measures {
		p, err := st.Parameter(m)
		if err != nil {
			return err
		}
		probes = append(probes, p)
	}

	fmt.Fprintln(out, strings.Join(append([]string{name}, measures...), "\t"))
	return sweep.Run(ctx, target, values, func(v float64) error {
		row := []string{strconv.FormatFloat(v, 'g', -1, 64)}
		for _, p := range probes {
			value, err := p.Get()
			if err != nil {
				return err
			}
			row = append(row, fmt.Sprint(value))
		}
		fmt.Fprintln(out, strings.Join(row, "\t"))
		return nil
	})
}

func parseBounds(raw string) (start, stop, step float64, err error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected start:stop:step, got %q", raw)
	}
	nums := make([]float64, 3)
	for i, part := range parts {
		nums[i], err = strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid number %q", part)
		}
	}
	return nums[0], nums[1], nums[2], nil
}

// parseAssignment splits "instrument.parameter=value". The value is decoded
// as a YAML scalar so numbers and booleans keep their type.
func parseAssignment(raw string) (string, interface{}, error) {
	name, text, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("assignment %q must have the form instrument.parameter=value", raw)
	}
	var value interface{}
	if err := yaml.Unmarshal([]byte(text), &value); err != nil {
		return "", nil, fmt.Errorf("assignment %q: %w", raw, err)
	}
	return name, value, nil
}

func unitSuffix(p *parameter.Parameter) string {
	if p.Unit() == "" {
		return ""
	}
	return " " + p.Unit()
}
