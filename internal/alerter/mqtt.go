package alerter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/komodore/core/internal/model"
)

// Mqtt publishes alerts as JSON to a broker/topic. The Alerter's Url
// holds "tcp://broker:1883/topic/path" — everything after the first "/"
// that follows the host is the publish topic ("topic/path"), the part
// before it is the broker address, matching the compact
// single-URL/single-token Alerter schema. Token, if set, holds
// "username:password".
type Mqtt struct {
	broker   string
	topic    string
	username string
	password string
}

func NewMqtt(rawURL, token string) *Mqtt {
	broker, topic := splitBrokerTopic(rawURL)
	username, password, _ := strings.Cut(token, ":")
	return &Mqtt{broker: broker, topic: topic, username: username, password: password}
}

func (m *Mqtt) Name() string { return "mqtt" }

func (m *Mqtt) Send(ctx context.Context, alert model.Alert) error {
	opts := mqtt.NewClientOptions().
		SetClientID("komodore-core").
		AddBroker(m.broker).
		SetConnectTimeout(10 * time.Second).
		SetWriteTimeout(10 * time.Second)
	if m.username != "" {
		opts.SetUsername(m.username)
		opts.SetPassword(m.password)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if tok.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", tok.Error())
	}
	defer client.Disconnect(250)

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal mqtt payload: %w", err)
	}

	pub := client.Publish(m.topic, 0, false, payload)
	if !pub.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt publish timeout")
	}
	return pub.Error()
}

func splitBrokerTopic(rawURL string) (broker, topic string) {
	// Don't split on the "//" in "tcp://host".
	hostStart := 0
	if schemeEnd := strings.Index(rawURL, "://"); schemeEnd >= 0 {
		hostStart = schemeEnd + 3
	}
	idx := strings.Index(rawURL[hostStart:], "/")
	if idx < 0 {
		return rawURL, ""
	}
	idx += hostStart
	return rawURL[:idx], rawURL[idx+1:]
}
