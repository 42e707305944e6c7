package display

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
)

// statusMessage MQTT发布的状态消息
type statusMessage struct {
	Step           int32   `json:"step"`
	T              float64 `json:"t"`
	RequestedSpeed float64 `json:"requested_speed"`
	ActuatedSpeed  float64 `json:"actuated_speed"`
	Acceleration   float64 `json:"acceleration"`
	Jerk           float64 `json:"jerk"`
	FollowerSpeed  float64 `json:"follower_speed"`
	Status         string  `json:"status"`
	FollowerStatus string  `json:"follower_status,omitempty"`
}

// MQTT 通过MQTT发布状态
// 功能：每步把状态序列化为JSON发布到指定主题
// 说明：发布不等待确认，上一条消息的发布错误在下一次Show时记录
type MQTT struct {
	client mqtt.Client
	topic  string
	last   mqtt.Token
}

// NewMQTT 连接MQTT代理并创建状态发布器
func NewMQTT(c config.MQTT) (*MQTT, error) {
	clientID := c.ClientID
	if clientID == "" {
		clientID = "safedrive-agent"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(c.Username)
	opts.SetPassword(c.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("mqtt connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", c.Broker, token.Error())
	}
	log.Infof("mqtt connected to %s, publishing on %s", c.Broker, c.Topic)
	return NewMQTTWithClient(client, c.Topic), nil
}

// NewMQTTWithClient 使用已连接的客户端创建状态发布器
func NewMQTTWithClient(client mqtt.Client, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

func (m *MQTT) Show(s entity.Status) {
	if m.last != nil {
		select {
		case <-m.last.Done():
			if err := m.last.Error(); err != nil {
				log.Warnf("mqtt publish failed: %v", err)
			}
		default:
		}
	}
	payload, err := json.Marshal(statusMessage{
		Step:           s.Step,
		T:              s.T,
		RequestedSpeed: s.RequestedSpeed,
		ActuatedSpeed:  s.ActuatedSpeed,
		Acceleration:   s.Acceleration,
		Jerk:           s.Jerk,
		FollowerSpeed:  s.FollowerSpeed,
		Status:         s.Text,
		FollowerStatus: s.FollowerText,
	})
	if err != nil {
		log.Errorf("marshal status: %v", err)
		return
	}
	m.last = m.client.Publish(m.topic, 0, false, payload)
}

// Close 断开连接
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
