package instrument

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/parameter"
	"github.com/timzifer/qlab/validators"
)

// Build creates an instrument with the parameters declared in cfg. Parameters
// with driver access read and write their register through transport.
func Build(cfg config.InstrumentConfig, transport Transport, opts ...Option) (*Instrument, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	inst := New(cfg.Name, cfg.Driver, transport, s.logger)
	if err := addConfigured(inst, cfg.Parameters, s); err != nil {
		return nil, err
	}
	inst.logger.Debug().Int("parameters", len(cfg.Parameters)).Msg("instrument built")
	return inst, nil
}

// AddConfigured builds the declared parameters and adds them to inst.
func AddConfigured(inst *Instrument, params []config.ParameterConfig, opts ...Option) error {
	s, err := applyOptions(opts)
	if err != nil {
		return err
	}
	return addConfigured(inst, params, s)
}

func addConfigured(inst *Instrument, params []config.ParameterConfig, s settings) error {
	for _, pc := range params {
		p, err := buildParameter(inst, pc, s)
		if err != nil {
			return fmt.Errorf("instrument %s: parameter %s: %w", inst.name, pc.Name, err)
		}
		if err := inst.AddParameter(p); err != nil {
			return err
		}
	}
	return nil
}

func buildParameter(inst *Instrument, pc config.ParameterConfig, s settings) (*parameter.Parameter, error) {
	opts := s.parameterOptions(inst.name)
	if pc.Label != "" {
		opts = append(opts, parameter.WithLabel(pc.Label))
	}
	if pc.Unit != "" {
		opts = append(opts, parameter.WithUnit(pc.Unit))
	}

	register := pc.RegisterName()
	switch pc.Get.Normalize() {
	case config.AccessDriver:
		if inst.transport == nil {
			return nil, errors.New("driver get requires a transport")
		}
		transport := inst.transport
		opts = append(opts, parameter.WithGetFunc(func() (interface{}, error) {
			return transport.Read(register)
		}))
	case config.AccessManual:
		opts = append(opts, parameter.WithGetter(parameter.ManualGetter()))
	}
	switch pc.Set.Normalize() {
	case config.AccessDriver:
		if inst.transport == nil {
			return nil, errors.New("driver set requires a transport")
		}
		transport := inst.transport
		opts = append(opts, parameter.WithSetFunc(func(raw interface{}) error {
			return transport.Write(register, raw)
		}))
	case config.AccessManual:
		opts = append(opts, parameter.WithSetter(parameter.ManualSetter()))
	}

	if pc.Scale != nil {
		opts = append(opts, parameter.WithScale(*pc.Scale))
	}
	if pc.Offset != nil {
		opts = append(opts, parameter.WithOffset(*pc.Offset))
	}
	mapping, err := mappingFromConfig(pc)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		opts = append(opts, parameter.WithValueMapping(mapping))
	}
	if pc.GetParser != "" {
		parser, err := exprParser(pc.GetParser)
		if err != nil {
			return nil, fmt.Errorf("get_parser: %w", err)
		}
		opts = append(opts, parameter.WithGetParser(parser))
	}
	if pc.SetParser != "" {
		parser, err := exprParser(pc.SetParser)
		if err != nil {
			return nil, fmt.Errorf("set_parser: %w", err)
		}
		opts = append(opts, parameter.WithSetParser(parser))
	}
	if pc.Vals != nil {
		v, err := ValidatorFromConfig(*pc.Vals)
		if err != nil {
			return nil, fmt.Errorf("vals: %w", err)
		}
		opts = append(opts, parameter.WithValidator(v))
	}
	if pc.MaxValAge != nil {
		opts = append(opts, parameter.WithMaxValAge(pc.MaxValAge.Duration))
	}
	if pc.InitialValue != nil {
		opts = append(opts, parameter.WithInitialValue(pc.InitialValue))
	}
	if pc.InitialCacheValue != nil {
		opts = append(opts, parameter.WithInitialCacheValue(pc.InitialCacheValue))
	}
	return parameter.New(pc.Name, opts...)
}

func mappingFromConfig(pc config.ParameterConfig) (*parameter.ValueMapping, error) {
	if pc.OnOff != nil {
		return parameter.CreateOnOffValMapping(pc.OnOff.On, pc.OnOff.Off)
	}
	if len(pc.ValMapping) == 0 {
		return nil, nil
	}
	entries := make([]parameter.MappingEntry, len(pc.ValMapping))
	for i, m := range pc.ValMapping {
		entries[i] = parameter.MappingEntry{Value: m.Value, Raw: m.Raw}
	}
	return parameter.NewValueMapping(entries...)
}

// exprParser compiles an expression over `value` into a transform parser.
func exprParser(expression string) (parameter.Parser, error) {
	program, err := expr.Compile(expression, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return func(value interface{}) (interface{}, error) {
		out, err := vm.Run(program, map[string]interface{}{"value": value})
		if err != nil {
			return nil, fmt.Errorf("evaluate %q for %v: %w", expression, value, err)
		}
		return out, nil
	}, nil
}

// ValidatorFromConfig builds the validator declared by cfg.
func ValidatorFromConfig(cfg config.ValidatorConfig) (parameter.Validator, error) {
	switch cfg.Type {
	case "ints":
		var v validators.Ints
		if cfg.Min != nil {
			min, err := integral(*cfg.Min, "min")
			if err != nil {
				return nil, err
			}
			v.Min = &min
		}
		if cfg.Max != nil {
			max, err := integral(*cfg.Max, "max")
			if err != nil {
				return nil, err
			}
			v.Max = &max
		}
		return v, nil
	case "numbers":
		var v validators.Numbers
		if cfg.Min != nil {
			min := decimal.NewFromFloat(*cfg.Min)
			v.Min = &min
		}
		if cfg.Max != nil {
			max := decimal.NewFromFloat(*cfg.Max)
			v.Max = &max
		}
		return v, nil
	case "enum":
		if len(cfg.Values) == 0 {
			return nil, errors.New("enum validator requires values")
		}
		return validators.Enum(cfg.Values...), nil
	case "strings":
		return validators.Strings{MinLength: cfg.MinLength, MaxLength: cfg.MaxLength}, nil
	case "bool":
		return validators.Bool{}, nil
	case "multiples":
		var min int64
		if cfg.Min != nil {
			m, err := integral(*cfg.Min, "min")
			if err != nil {
				return nil, err
			}
			min = m
		}
		if cfg.Divisor <= 0 {
			return nil, errors.New("multiples validator requires a positive divisor")
		}
		return validators.Multiples{Divisor: cfg.Divisor, Min: min}, nil
	case "multi":
		if len(cfg.Options) == 0 {
			return nil, errors.New("multi validator requires options")
		}
		inner := make([]validators.Validator, len(cfg.Options))
		for i, opt := range cfg.Options {
			v, err := ValidatorFromConfig(opt)
			if err != nil {
				return nil, fmt.Errorf("option %d: %w", i, err)
			}
			inner[i] = v
		}
		return validators.MultiType(inner...), nil
	case "expr":
		v, err := validators.Expr(cfg.Expression)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported validator type %q", cfg.Type)
	}
}

func integral(f float64, field string) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer, got %v", field, f)
	}
	return int64(f), nil
}
