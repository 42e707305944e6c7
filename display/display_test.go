package display_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safedrive-agent/display"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

type countDisplay struct {
	seen []entity.Status
}

func (c *countDisplay) Show(s entity.Status) {
	c.seen = append(c.seen, s)
}

func TestMulti(t *testing.T) {
	a, b := &countDisplay{}, &countDisplay{}
	m := display.Multi{a, b}
	m.Show(entity.Status{Step: 1})
	m.Show(entity.Status{Step: 2})
	assert.Len(t, a.seen, 2)
	assert.Equal(t, a.seen, b.seen)
}

func TestLogOnChange(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(level)

	l := display.NewLog(10)
	l.Show(entity.Status{Step: 1, Text: "Cruising"})
	l.Show(entity.Status{Step: 2, Text: "Cruising"})
	l.Show(entity.Status{Step: 3, Text: "Intersection: Red Light"})
	l.Show(entity.Status{Step: 10, Text: "Intersection: Red Light"})

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Contains(t, entries[1].Message, "Red Light")
	assert.Equal(t, logrus.DebugLevel, entries[2].Level)
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	mqtt.Client
	topics       []string
	payloads     [][]byte
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return newToken(c.err)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func TestMQTTPublishesJSON(t *testing.T) {
	c := &fakeClient{}
	m := display.NewMQTTWithClient(c, "safedrive/status")
	m.Show(entity.Status{Step: 7, T: 0.7, RequestedSpeed: 13, ActuatedSpeed: 0, FollowerSpeed: 9.5, Text: "Intersection: Red Light"})

	require.Len(t, c.payloads, 1)
	assert.Equal(t, "safedrive/status", c.topics[0])
	var msg map[string]any
	require.NoError(t, json.Unmarshal(c.payloads[0], &msg))
	assert.Equal(t, 7.0, msg["step"])
	assert.Equal(t, 9.5, msg["follower_speed"])
	assert.Equal(t, "Intersection: Red Light", msg["status"])
	assert.NotContains(t, msg, "follower_status")

	m.Close()
	assert.True(t, c.disconnected)
}

func TestMQTTPublishErrorIsLogged(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	c := &fakeClient{err: errors.New("not connected")}
	m := display.NewMQTTWithClient(c, "safedrive/status")
	m.Show(entity.Status{Step: 1})
	m.Show(entity.Status{Step: 2})

	assert.Len(t, c.payloads, 2)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "not connected")
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	r, err := display.NewRecorder(path, "ego", "pred")
	require.NoError(t, err)
	defer r.Close()

	r.Show(entity.Status{Step: 1, T: 0.1, RequestedSpeed: 13, ActuatedSpeed: 13, FollowerSpeed: -1, Text: "Cruising"})
	r.Show(entity.Status{Step: 2, T: 0.2, RequestedSpeed: 13, ActuatedSpeed: 0, Acceleration: -2.5, Jerk: -12, FollowerSpeed: 4, Text: "ACC: Following car"})

	var n int
	require.NoError(t, r.DB().QueryRow("SELECT COUNT(*) FROM steps WHERE run_id = ?", r.RunID()).Scan(&n))
	assert.Equal(t, 2, n)

	var status string
	var speed float64
	require.NoError(t, r.DB().QueryRow("SELECT status, actuated_speed FROM steps WHERE run_id = ? AND step = 2", r.RunID()).Scan(&status, &speed))
	assert.Equal(t, "ACC: Following car", status)
	assert.Equal(t, 0.0, speed)

	var acc, jerk float64
	require.NoError(t, r.DB().QueryRow("SELECT acceleration, jerk FROM steps WHERE run_id = ? AND step = 2", r.RunID()).Scan(&acc, &jerk))
	assert.Equal(t, -2.5, acc)
	assert.Equal(t, -12.0, jerk)

	var leader string
	require.NoError(t, r.DB().QueryRow("SELECT leader FROM runs WHERE run_id = ?", r.RunID()).Scan(&leader))
	assert.Equal(t, "ego", leader)
}
