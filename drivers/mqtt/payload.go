package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/timzifer/qlab/internal/numeric"
)

var errUnsupportedEncoding = errors.New("mqtt: unsupported payload encoding")

// DecodePayload turns a message into a parameter raw value.
//
// JSON payloads are unmarshalled, optionally narrowed to the dotted Path and
// coerced to ValueType. Payloads that are not valid JSON are parsed as plain
// text according to ValueType, so a device publishing "12.5" works without
// any configuration.
func DecodePayload(cfg PayloadConversion, payload []byte) (interface{}, error) {
	switch strings.ToLower(cfg.Encoding) {
	case "", "json":
	case "string":
		return coerce(cfg.ValueType, string(payload))
	case "bytes", "binary":
		return append([]byte(nil), payload...), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedEncoding, cfg.Encoding)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		return coerce(cfg.ValueType, strings.TrimSpace(string(payload)))
	}
	if cfg.Path != "" {
		for _, segment := range strings.Split(cfg.Path, ".") {
			obj, ok := value.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("mqtt: path %s not present", cfg.Path)
			}
			if value, ok = obj[segment]; !ok {
				return nil, fmt.Errorf("mqtt: path %s not present", cfg.Path)
			}
		}
	}
	return coerce(cfg.ValueType, value)
}

func coerce(kind string, value interface{}) (interface{}, error) {
	text, isText := value.(string)
	switch strings.ToLower(kind) {
	case "", "any":
		return value, nil
	case "float", "double", "number":
		if isText {
			return strconv.ParseFloat(strings.TrimSpace(text), 64)
		}
		return numeric.Float(value)
	case "int", "integer":
		if isText {
			return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		}
		f, err := numeric.Float(value)
		if err != nil {
			return nil, err
		}
		return int64(f), nil
	case "bool", "boolean":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(v))
		}
		f, err := numeric.Float(value)
		if err != nil {
			return nil, fmt.Errorf("mqtt: cannot convert %T to boolean", value)
		}
		return f != 0, nil
	case "string", "text":
		return fmt.Sprint(value), nil
	default:
		return nil, fmt.Errorf("mqtt: unknown value type %q", kind)
	}
}

// EncodePayload renders a parameter raw value as message body.
func EncodePayload(cfg PayloadConversion, value interface{}) ([]byte, error) {
	switch strings.ToLower(cfg.Encoding) {
	case "", "json":
		if strings.EqualFold(cfg.ValueType, "string") {
			return json.Marshal(fmt.Sprint(value))
		}
		return json.Marshal(value)
	case "string":
		return []byte(fmt.Sprint(value)), nil
	case "bytes", "binary":
		if b, ok := value.([]byte); ok {
			return b, nil
		}
		return nil, fmt.Errorf("mqtt: value is not []byte, got %T", value)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedEncoding, cfg.Encoding)
	}
}
