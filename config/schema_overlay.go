package config

const schemaModulePath = "cue.mod/module.cue"
const schemaOverlayPath = "cue.mod/pkg/qlab.dev/schema/schema.cue"

const schemaModuleContent = `module: "qlab.local/station"
language: {
    version: "v0.8.0"
}
`

// schemaOverlayContent lets CUE configurations import "qlab.dev/schema" and
// constrain their instruments with #Instrument.
const schemaOverlayContent = `package schema

#Config: {
    name?: string
    description?: string
    logging?: _
    telemetry?: _
    modules?: [...]
    hot_reload?: bool
    reload_interval?: string
    instruments?: [...#Instrument]
    ...
}

#Instrument: {
    name: string
    driver: string
    description?: string
    driver_settings?: _
    parameters?: [...#Parameter]
}

#Parameter: {
    name: string
    label?: string
    unit?: string
    register?: string
    get?: "driver" | "manual" | "none"
    set?: "driver" | "manual" | "none"
    scale?: number & !=0
    offset?: number
    val_mapping?: [...{value: _, raw: _}]
    on_off?: {on: _, off: _}
    get_parser?: string
    set_parser?: string
    max_val_age?: string
    initial_value?: _
    initial_cache_value?: _
    vals?: #Validator
}

#Validator: {
    type: "ints" | "numbers" | "enum" | "strings" | "bool" | "multiples" | "multi" | "expr"
    min?: number
    max?: number
    values?: [...]
    min_length?: int & >=0
    max_length?: int & >=0
    divisor?: int & >0
    expression?: string
    options?: [...#Validator]
}
`

func init() {
	RegisterDefaultOverlay(func() error {
		if err := RegisterOverlayString(schemaModulePath, schemaModuleContent); err != nil {
			return err
		}
		return RegisterOverlayString(schemaOverlayPath, schemaOverlayContent)
	})
}
