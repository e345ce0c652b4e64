package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MessageHandler receives the payload published on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client is the subset of broker operations the transport needs.
type Client interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Publish(topic string, qos byte, retain bool, payload []byte) error
	Close() error
}

// ClientFactory connects to the broker described by settings.
type ClientFactory func(settings ConnectionSettings, logger zerolog.Logger) (Client, error)

const tokenTimeout = 10 * time.Second

type subscription struct {
	qos     byte
	handler MessageHandler
}

// pahoClient restores its subscriptions whenever the connection comes back.
type pahoClient struct {
	client paho.Client
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewPahoClientFactory returns a factory backed by the Eclipse Paho client.
func NewPahoClientFactory() ClientFactory {
	return func(settings ConnectionSettings, logger zerolog.Logger) (Client, error) {
		c := &pahoClient{logger: logger, subs: make(map[string]subscription)}
		client, err := buildClient(settings, logger, c.resubscribe)
		if err != nil {
			return nil, err
		}
		c.client = client
		return c, nil
	}
}

func (c *pahoClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return subscribe(c.client, topic, qos, handler)
}

func subscribe(client paho.Client, topic string, qos byte, handler MessageHandler) error {
	token := client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	return waitToken(token, "subscribe "+topic)
}

func (c *pahoClient) resubscribe(client paho.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()
	for topic, sub := range subs {
		if err := subscribe(client, topic, sub.qos, sub.handler); err != nil {
			c.logger.Warn().Err(err).Str("topic", topic).Msg("mqtt: resubscribe failed")
		}
	}
}

func (c *pahoClient) Publish(topic string, qos byte, retain bool, payload []byte) error {
	return waitToken(c.client.Publish(topic, qos, retain, payload), "publish "+topic)
}

func (c *pahoClient) Close() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	return nil
}

func waitToken(token paho.Token, op string) error {
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("mqtt: %s: timeout", op)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: %s: %w", op, err)
	}
	return nil
}

// buildClient configures a Paho client and waits for the first connection.
func buildClient(settings ConnectionSettings, logger zerolog.Logger, onConnect paho.OnConnectHandler) (paho.Client, error) {
	if settings.Broker == "" {
		return nil, errors.New("mqtt: broker address is required")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(settings.Broker)
	if settings.ClientID != "" {
		opts.SetClientID(settings.ClientID)
	}
	if settings.CleanSession != nil {
		opts.SetCleanSession(*settings.CleanSession)
	}
	if settings.Auth != nil {
		opts.SetUsername(settings.Auth.Username)
		opts.SetPassword(settings.Auth.Password)
	}
	if settings.KeepAlive != nil {
		opts.SetKeepAlive(settings.KeepAlive.Duration)
	}
	if settings.ConnectTimeout != nil {
		opts.SetConnectTimeout(settings.ConnectTimeout.Duration)
	}
	if settings.AutoReconnect != nil {
		opts.SetAutoReconnect(*settings.AutoReconnect)
	}
	if settings.MaxReconnect != nil {
		opts.SetMaxReconnectInterval(settings.MaxReconnect.Duration)
	}
	if settings.TLS != nil && settings.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(*settings.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	if will := settings.Will; will != nil && will.Topic != "" {
		var qos byte
		if will.QoS != nil {
			qos = *will.QoS
		}
		retain := will.Retain != nil && *will.Retain
		opts.SetBinaryWill(will.Topic, []byte(will.Payload), qos, retain)
	}
	if onConnect != nil {
		opts.SetOnConnectHandler(onConnect)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt: connection lost")
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		logger.Info().Msg("mqtt: reconnecting")
	})

	client := paho.NewClient(opts)
	if err := waitToken(client.Connect(), "connect "+settings.Broker); err != nil {
		return nil, err
	}
	return client, nil
}

func buildTLSConfig(settings TLSSettings) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: settings.InsecureSkipVerify, ServerName: settings.ServerName}
	if len(settings.ALPN) > 0 {
		cfg.NextProtos = append([]string(nil), settings.ALPN...)
	}
	if settings.CAFile != "" {
		ca, err := os.ReadFile(settings.CAFile)
		if err != nil {
			return nil, fmt.Errorf("mqtt: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("mqtt: parse ca file %s", settings.CAFile)
		}
		cfg.RootCAs = pool
	}
	if settings.CertFile != "" && settings.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(settings.CertFile, settings.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("mqtt: load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
