package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kmathy/carlink/core/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker                string `json:"broker"`
	ClientID              string `json:"client_id"`
	UseTLS                bool   `json:"use_tls"`
	CABundle              string `json:"ca_bundle"`
	QoS                   byte   `json:"qos"`
	KeepAliveSeconds      int    `json:"keepalive_seconds"`
	ReconnectDelaySeconds int    `json:"reconnect_delay_seconds"`

	TLSConfig *tls.Config `json:"-"`
}

// SetDefaults applies the broker's documented connection parameters.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "carlink-" + uuid.NewString()
	}
	if c.KeepAliveSeconds <= 0 {
		c.KeepAliveSeconds = 15
	}
	if c.ReconnectDelaySeconds <= 0 {
		c.ReconnectDelaySeconds = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	return nil
}

// TokenProvider supplies the session token used as the broker password.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// MessageHandler receives every raw message delivered on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client subscribes to every event topic of the session's vehicles and
// funnels raw messages into a single handler.
type Client struct {
	cli     pahoClient
	qos     byte
	filters []string
	handler MessageHandler
	log     logger.Logger
}

// NewClient connects to the broker and subscribes to the event topics of the
// given vehicles. The username is the account's user id, the password its
// current session token.
func NewClient(cfg Config, userID string, vins []string, tokens TokenProvider, handler MessageHandler, log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		qos:     cfg.QoS,
		filters: subscriptionFilters(userID, vins),
		handler: handler,
		log:     log,
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(userID).
		SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second).
		SetConnectRetryInterval(time.Duration(cfg.ReconnectDelaySeconds) * time.Second).
		SetAutoReconnect(true)

	// The broker authenticates with the short-lived session token, so it is
	// resolved on every (re)connect rather than fixed in the options.
	opts.SetCredentialsProvider(func() (string, string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		token, err := tokens.GetToken(ctx)
		if err != nil {
			log.Errorf("broker credentials: %v", err)
			return userID, ""
		}
		return userID, token
	})

	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnect = func(cli paho.Client) {
		log.Infof("broker connected")
		c.subscribeAll(cli)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("broker connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = cli
	return c, nil
}

func (c *Client) subscribeAll(cli paho.Client) {
	for _, filter := range c.filters {
		if token := cli.Subscribe(filter, c.qos, c.onMessage); token.Wait() && token.Error() != nil {
			c.log.Errorf("subscribe %s: %v", filter, token.Error())
		}
	}
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	c.handler(msg.Topic(), msg.Payload())
}

// LoadTLSConfig builds the TLS configuration, loading an optional CA bundle.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.CABundle != "" {
		caBytes, err := os.ReadFile(c.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("no certificates in %s", c.CABundle)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
