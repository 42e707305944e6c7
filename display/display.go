package display

import (
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

// Multi 将状态分发给多个显示模块
type Multi []entity.IDisplay

func (m Multi) Show(status entity.Status) {
	for _, d := range m {
		d.Show(status)
	}
}

// Log 日志显示
// 功能：状态文本变化时立即输出，否则每interval步输出一次
type Log struct {
	interval int32
	last     string
	shown    bool
}

// NewLog 创建日志显示，interval<=0时只在状态变化时输出
func NewLog(interval int32) *Log {
	return &Log{interval: interval}
}

func (l *Log) Show(s entity.Status) {
	changed := !l.shown || s.Text != l.last
	l.last = s.Text
	l.shown = true
	line := "step %d t=%.1f user=%.1f m/s safe=%.1f m/s follower=%s | %s"
	follower := s.FollowerText
	if follower == "" {
		follower = "-"
	}
	switch {
	case changed:
		log.Infof(line, s.Step, s.T, s.RequestedSpeed, s.ActuatedSpeed, follower, s.Text)
	case l.interval > 0 && s.Step%l.interval == 0:
		log.Debugf(line, s.Step, s.T, s.RequestedSpeed, s.ActuatedSpeed, follower, s.Text)
	}
}
