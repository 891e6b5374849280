// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/hazard_haptics/internal/config"
	"github.com/relabs-tech/hazard_haptics/internal/hazard"
)

var errPublishTimeout = errors.New("publish timed out")

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each fall event as JSON on a topic.
type MQTT struct {
	client  publisher
	topic   string
	qos     byte
	timeout time.Duration
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg config.MQTT) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("MQTT connect to %s: timed out after %s", cfg.Broker, cfg.Timeout)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", cfg.Broker, token.Error())
	}

	return newMQTT(client, cfg), nil
}

func newMQTT(client publisher, cfg config.MQTT) *MQTT {
	return &MQTT{client: client, topic: cfg.Topic, qos: cfg.QoS, timeout: cfg.Timeout}
}

func (m *MQTT) Notify(ctx context.Context, ev hazard.FallEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal fall event: %w", err)
	}

	token := m.client.Publish(m.topic, m.qos, false, payload)

	timeout := m.timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}

	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("MQTT publish to %s: %w", m.topic, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish to %s: %w", m.topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
