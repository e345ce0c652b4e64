package ats9440

import "github.com/timzifer/qlab/config"

// SamplesDivisor is the granularity of samples_per_record.
const SamplesDivisor = 256

func f(v float64) *float64 { return &v }

func mapping(pairs ...interface{}) []config.MappingConfig {
	out := make([]config.MappingConfig, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, config.MappingConfig{Value: pairs[i], Raw: pairs[i+1]})
	}
	return out
}

func ints(min, max *float64) *config.ValidatorConfig {
	return &config.ValidatorConfig{Type: "ints", Min: min, Max: max}
}

// trace builds a board setting: it is cached locally and only reaches the
// card on SyncSettings.
func trace(name, label, unit string, initial interface{}) config.ParameterConfig {
	return config.ParameterConfig{
		Name:         name,
		Label:        label,
		Unit:         unit,
		Get:          config.AccessManual,
		Set:          config.AccessDriver,
		InitialValue: initial,
	}
}

// acquisition builds a setting that only affects how buffers are acquired
// and never needs a sync.
func acquisition(name, label, unit string, initial interface{}) config.ParameterConfig {
	return config.ParameterConfig{
		Name:         name,
		Label:        label,
		Unit:         unit,
		Get:          config.AccessManual,
		Set:          config.AccessManual,
		InitialValue: initial,
	}
}

func with(p config.ParameterConfig, fn func(*config.ParameterConfig)) config.ParameterConfig {
	fn(&p)
	return p
}

// Parameters returns the board settings in the order they are written to
// the card.
func Parameters() []config.ParameterConfig {
	params := []config.ParameterConfig{
		with(trace("clock_source", "Clock Source", "", "INTERNAL_CLOCK"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping(
				"INTERNAL_CLOCK", 1,
				"FAST_EXTERNAL_CLOCK", 2,
				"SLOW_EXTERNAL_CLOCK", 4,
				"EXTERNAL_CLOCK_10MHz_REF", 7,
			)
		}),
		with(trace("external_sample_rate", "External Sample Rate", "S/s", "UNDEFINED"), func(p *config.ParameterConfig) {
			p.Vals = &config.ValidatorConfig{Type: "multi", Options: []config.ValidatorConfig{
				*ints(f(1_000_000), f(125_000_000)),
				{Type: "enum", Values: []interface{}{"UNDEFINED"}},
			}}
		}),
		with(trace("sample_rate", "Internal Sample Rate", "S/s", 100_000_000), func(p *config.ParameterConfig) {
			p.ValMapping = mapping(
				1_000, 1,
				2_000, 2,
				5_000, 4,
				10_000, 8,
				20_000, 10,
				50_000, 12,
				100_000, 14,
				200_000, 16,
				500_000, 18,
				1_000_000, 20,
				2_000_000, 24,
				5_000_000, 26,
				10_000_000, 28,
				20_000_000, 30,
				50_000_000, 34,
				100_000_000, 36,
				125_000_000, 38,
				"EXTERNAL_CLOCK", 64,
				"UNDEFINED", "UNDEFINED",
			)
		}),
		with(trace("clock_edge", "Clock Edge", "", "CLOCK_EDGE_RISING"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping("CLOCK_EDGE_RISING", 0, "CLOCK_EDGE_FALLING", 1)
		}),
		with(trace("decimation", "Decimation", "", 1), func(p *config.ParameterConfig) {
			p.Vals = ints(f(1), f(100_000))
		}),
	}

	for _, ch := range []string{"1", "2"} {
		params = append(params,
			with(trace("coupling"+ch, "Coupling channel "+ch, "", "DC"), func(p *config.ParameterConfig) {
				p.ValMapping = mapping("AC", 1, "DC", 2)
			}),
			with(trace("channel_range"+ch, "Range channel "+ch, "V", 0.4), func(p *config.ParameterConfig) {
				p.ValMapping = mapping(0.4, 7)
			}),
			with(trace("impedance"+ch, "Impedance channel "+ch, "Ohm", 50), func(p *config.ParameterConfig) {
				p.ValMapping = mapping(50, 2)
			}),
			with(trace("bwlimit"+ch, "Bandwidth limit channel "+ch, "", "DISABLED"), func(p *config.ParameterConfig) {
				p.ValMapping = mapping("DISABLED", 0, "ENABLED", 1)
			}),
		)
	}

	params = append(params, with(trace("trigger_operation", "Trigger Operation", "", "TRIG_ENGINE_OP_J"), func(p *config.ParameterConfig) {
		p.ValMapping = mapping(
			"TRIG_ENGINE_OP_J", 0,
			"TRIG_ENGINE_OP_K", 1,
			"TRIG_ENGINE_OP_J_OR_K", 2,
			"TRIG_ENGINE_OP_J_AND_K", 3,
			"TRIG_ENGINE_OP_J_XOR_K", 4,
			"TRIG_ENGINE_OP_J_AND_NOT_K", 5,
			"TRIG_ENGINE_OP_NOT_J_AND_K", 6,
		)
	}))

	for _, eng := range []struct{ n, engine string }{{"1", "TRIG_ENGINE_J"}, {"2", "TRIG_ENGINE_K"}} {
		params = append(params,
			with(trace("trigger_engine"+eng.n, "Trigger Engine "+eng.n, "", eng.engine), func(p *config.ParameterConfig) {
				p.ValMapping = mapping("TRIG_ENGINE_J", 0, "TRIG_ENGINE_K", 1)
			}),
			with(trace("trigger_source"+eng.n, "Trigger Source "+eng.n, "", "EXTERNAL"), func(p *config.ParameterConfig) {
				p.ValMapping = mapping(
					"CHANNEL_A", 0,
					"CHANNEL_B", 1,
					"EXTERNAL", 2,
					"DISABLE", 3,
					"CHANNEL_C", 4,
					"CHANNEL_D", 5,
				)
			}),
			with(trace("trigger_slope"+eng.n, "Trigger Slope "+eng.n, "", "TRIG_SLOPE_POSITIVE"), func(p *config.ParameterConfig) {
				p.ValMapping = mapping("TRIG_SLOPE_POSITIVE", 1, "TRIG_SLOPE_NEGATIVE", 2)
			}),
			with(trace("trigger_level"+eng.n, "Trigger Level "+eng.n, "", 140), func(p *config.ParameterConfig) {
				p.Vals = ints(f(0), f(255))
			}),
		)
	}

	params = append(params,
		with(trace("external_trigger_coupling", "External Trigger Coupling", "", "DC"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping("AC", 1, "DC", 2)
		}),
		with(trace("external_trigger_range", "External Trigger Range", "", "ETR_5V"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping("ETR_5V", 0, "ETR_TTL", 2)
		}),
		with(trace("trigger_delay", "Trigger Delay", "Sample clock cycles", 0), func(p *config.ParameterConfig) {
			p.Vals = &config.ValidatorConfig{Type: "multiples", Divisor: 8, Min: f(0)}
		}),
		with(trace("timeout_ticks", "Timeout Ticks", "10 us", 0), func(p *config.ParameterConfig) {
			p.Vals = ints(f(0), nil)
		}),
		with(trace("aux_io_mode", "AUX I/O Mode", "", "AUX_IN_AUXILIARY"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping("AUX_OUT_TRIGGER", 0, "AUX_IN_TRIGGER_ENABLE", 1, "AUX_IN_AUXILIARY", 13)
		}),
		with(trace("aux_io_param", "AUX I/O Param", "", "NONE"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping("NONE", 0, "TRIG_SLOPE_POSITIVE", 1, "TRIG_SLOPE_NEGATIVE", 2)
		}),
	)

	enabled := func(bit int) []config.MappingConfig { return mapping("DISABLED", 0, "ENABLED", bit) }
	params = append(params,
		with(acquisition("mode", "Acquisition mode", "", "NPT"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping("NPT", 0x200, "TS", 0x400)
		}),
		with(acquisition("samples_per_record", "Samples per Record", "", 1024), func(p *config.ParameterConfig) {
			p.Vals = &config.ValidatorConfig{Type: "multiples", Divisor: SamplesDivisor, Min: f(256)}
		}),
		with(acquisition("records_per_buffer", "Records per Buffer", "", 10), func(p *config.ParameterConfig) {
			p.Vals = ints(f(0), nil)
		}),
		with(acquisition("buffers_per_acquisition", "Buffers per Acquisition", "", 10), func(p *config.ParameterConfig) {
			p.Vals = ints(f(0), nil)
		}),
		with(acquisition("channel_selection", "Channel Selection", "", "AB"), func(p *config.ParameterConfig) {
			p.ValMapping = mapping(
				"A", 1, "B", 2, "AB", 3, "C", 4, "AC", 5, "BC", 6,
				"D", 7, "AD", 8, "BD", 9, "CD", 10, "ABCD", 11,
			)
		}),
		with(acquisition("transfer_offset", "Transfer Offset", "Samples", 0), func(p *config.ParameterConfig) {
			p.Vals = ints(f(0), nil)
		}),
		with(acquisition("external_startcapture", "External Startcapture", "", "ENABLED"), func(p *config.ParameterConfig) {
			p.ValMapping = enabled(0x1)
		}),
		with(acquisition("enable_record_headers", "Enable Record Headers", "", "DISABLED"), func(p *config.ParameterConfig) {
			p.ValMapping = enabled(0x8)
		}),
		with(acquisition("alloc_buffers", "Alloc Buffers", "", "DISABLED"), func(p *config.ParameterConfig) {
			p.ValMapping = enabled(0x20)
		}),
		with(acquisition("fifo_only_streaming", "Fifo Only Streaming", "", "DISABLED"), func(p *config.ParameterConfig) {
			p.ValMapping = enabled(0x800)
		}),
		with(acquisition("interleave_samples", "Interleave Samples", "", "DISABLED"), func(p *config.ParameterConfig) {
			p.ValMapping = enabled(0x1000)
		}),
		with(acquisition("get_processed_data", "Get Processed Data", "", "DISABLED"), func(p *config.ParameterConfig) {
			p.ValMapping = enabled(0x2000)
		}),
		with(acquisition("allocated_buffers", "Allocated Buffers", "", 4), func(p *config.ParameterConfig) {
			p.Vals = ints(f(0), nil)
		}),
		with(acquisition("buffer_timeout", "Buffer Timeout", "ms", 1000), func(p *config.ParameterConfig) {
			p.Vals = ints(f(0), nil)
		}),
	)
	return params
}
