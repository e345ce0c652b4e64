package mqtt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
)

// Settings is decoded from driver_settings.
type Settings struct {
	Connection  ConnectionSettings     `yaml:"connection"`
	DefaultQoS  *byte                  `yaml:"default_qos,omitempty"`
	Payload     *PayloadConversion     `yaml:"payload,omitempty"`
	ReadTimeout config.Duration        `yaml:"read_timeout,omitempty"`
	Registers   map[string]TopicConfig `yaml:"registers"`
}

// ConnectionSettings describe how to reach the broker.
type ConnectionSettings struct {
	Broker         string           `yaml:"broker"`
	ClientID       string           `yaml:"client_id,omitempty"`
	CleanSession   *bool            `yaml:"clean_session,omitempty"`
	KeepAlive      *config.Duration `yaml:"keep_alive,omitempty"`
	ConnectTimeout *config.Duration `yaml:"connect_timeout,omitempty"`
	AutoReconnect  *bool            `yaml:"auto_reconnect,omitempty"`
	MaxReconnect   *config.Duration `yaml:"max_reconnect_interval,omitempty"`
	Auth           *AuthSettings    `yaml:"auth,omitempty"`
	TLS            *TLSSettings     `yaml:"tls,omitempty"`
	Will           *WillSettings    `yaml:"will,omitempty"`
}

// AuthSettings capture username/password authentication.
type AuthSettings struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TLSSettings configure TLS connections.
type TLSSettings struct {
	Enabled            bool     `yaml:"enabled"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	CAFile             string   `yaml:"ca_file,omitempty"`
	CertFile           string   `yaml:"cert_file,omitempty"`
	KeyFile            string   `yaml:"key_file,omitempty"`
	ServerName         string   `yaml:"server_name,omitempty"`
	ALPN               []string `yaml:"alpn,omitempty"`
}

// WillSettings describe the last will message, published when the station
// drops off the broker.
type WillSettings struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     *byte  `yaml:"qos,omitempty"`
	Retain  *bool  `yaml:"retain,omitempty"`
}

// PayloadConversion defines how payloads are encoded or decoded.
type PayloadConversion struct {
	Encoding  string `yaml:"encoding,omitempty"`
	ValueType string `yaml:"value_type,omitempty"`
	Path      string `yaml:"path,omitempty"`
}

// TopicConfig binds a parameter register to a state topic, a command topic
// or both.
type TopicConfig struct {
	State   string             `yaml:"state,omitempty"`
	Command string             `yaml:"command,omitempty"`
	QoS     *byte              `yaml:"qos,omitempty"`
	Retain  *bool              `yaml:"retain,omitempty"`
	Payload *PayloadConversion `yaml:"payload,omitempty"`
}

func decodeSettings(node *yaml.Node) (Settings, error) {
	var settings Settings
	if node != nil {
		if err := node.Decode(&settings); err != nil {
			return Settings{}, fmt.Errorf("mqtt: decode settings: %w", err)
		}
	}
	if strings.TrimSpace(settings.Connection.Broker) == "" {
		return Settings{}, fmt.Errorf("mqtt: connection.broker is required")
	}
	for name, topic := range settings.Registers {
		if topic.State == "" && topic.Command == "" {
			return Settings{}, fmt.Errorf("mqtt: register %s needs a state or command topic", name)
		}
		if topic.QoS != nil && *topic.QoS > 2 {
			return Settings{}, fmt.Errorf("mqtt: register %s: qos %d out of range", name, *topic.QoS)
		}
	}
	return settings, nil
}

func (s Settings) qos(topic TopicConfig) byte {
	if topic.QoS != nil {
		return *topic.QoS
	}
	if s.DefaultQoS != nil {
		return *s.DefaultQoS
	}
	return 0
}

func (s Settings) payload(topic TopicConfig) PayloadConversion {
	if topic.Payload != nil {
		return *topic.Payload
	}
	if s.Payload != nil {
		return *s.Payload
	}
	return PayloadConversion{}
}
