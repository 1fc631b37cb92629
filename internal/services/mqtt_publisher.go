package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Daneel-Li/feedback-back/internal/config"
	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publishClient MqttPublisher 只用到 Publish
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MqttPublisher 把反馈事件以 JSON 发布到 <prefix>/<kind>
type MqttPublisher struct {
	config   config.MqttConfig
	mqClient publishClient
	timeout  time.Duration
}

func NewMqttPublisher(cfg config.MqttConfig) *MqttPublisher {
	return &MqttPublisher{config: cfg, timeout: 5 * time.Second}
}

// Start 连接 broker，首次连接失败或超时直接返回错误，之后的断线由 paho 自动重连
func (p *MqttPublisher) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetUsername(p.config.Username)
	opts.SetPassword(p.config.Password)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(p.timeout)
	opts.SetMaxReconnectInterval(5 * time.Second) //最多隔5秒重试一次
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		slog.Debug("mqtt 连接成功！", "broker", p.config.Broker)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		slog.Warn("mqtt client disconnected. trying to reconnect...", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(p.timeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s timeout", p.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt client failed: %v", err)
	}
	p.mqClient = client
	return nil
}

// Stop 断开连接，最多等待250ms让未完成的发布结束
func (p *MqttPublisher) Stop() {
	if c, ok := p.mqClient.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}

func (p *MqttPublisher) topic(kind mxm.EventKind) string {
	prefix := strings.TrimRight(p.config.TopicPrefix, "/")
	if prefix == "" {
		return string(kind)
	}
	return prefix + "/" + string(kind)
}

func (p *MqttPublisher) publish(topic string, payload []byte) error {
	if p.mqClient == nil {
		return fmt.Errorf("mqtt client not initialized")
	}
	token := p.mqClient.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %v", err)
	}
	return nil
}

// Notify 实现 Notifier
func (p *MqttPublisher) Notify(event mxm.FeedbackEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal feedback event failed", "kind", event.Kind, "error", err)
		return
	}
	topic := p.topic(event.Kind)
	if err := p.publish(topic, payload); err != nil {
		slog.Error("mqtt publish failed", "topic", topic, "feedbackID", event.FeedbackID, "error", err)
		return
	}
	slog.Debug("mqtt published", "topic", topic, "feedbackID", event.FeedbackID)
}
