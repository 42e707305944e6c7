package userinput

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
)

// None 无用户输入，期望速度保持不变
type None struct {
	driver *Driver
}

func NewNone(d *Driver) *None {
	return &None{driver: d}
}

func (s *None) Poll(step int32) entity.Intent {
	return s.driver.Apply(Frame{})
}

type scriptEvent struct {
	start, end int32 // 生效区间[start, end)
	key        Key
}

// Script 脚本化用户输入，用于无界面运行
// 功能：按步数回放按键时间线
// 说明：调速键在[step, step+steps)内视为按住；变道与退出只在step当步触发一次
type Script struct {
	driver *Driver
	events []scriptEvent
}

// NewScript 根据配置创建脚本输入
// 返回：未知按键时返回包装了entity.ErrConfiguration的错误
func NewScript(d *Driver, events []config.ScriptEvent) (*Script, error) {
	s := &Script{driver: d}
	for _, e := range events {
		k, err := ParseKey(e.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: user script: %v", entity.ErrConfiguration, err)
		}
		steps := e.Steps
		if steps <= 0 {
			steps = 1
		}
		s.events = append(s.events, scriptEvent{start: e.Step, end: e.Step + steps, key: k})
	}
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].start < s.events[j].start
	})
	return s, nil
}

func (s *Script) Poll(step int32) entity.Intent {
	var f Frame
	for _, e := range s.events {
		if e.start > step {
			break
		}
		switch e.key {
		case KeyUp, KeyDown:
			if step < e.end {
				f.press(e.key)
			}
		default:
			if step == e.start {
				f.press(e.key)
			}
		}
	}
	return s.driver.Apply(f)
}

// Stream 交互式输入
// 功能：后台协程逐行读取按键，控制循环每步非阻塞地取走已到达的全部按键
// 说明：每行一个按键，调速键只作用于取走它的那一步；读到EOF后不再产生按键
type Stream struct {
	driver *Driver
	keys   chan Key
}

// NewStream 创建交互式输入并启动读取协程
func NewStream(d *Driver, r io.Reader) *Stream {
	s := &Stream{driver: d, keys: make(chan Key, 64)}
	go s.read(r)
	return s
}

func (s *Stream) read(r io.Reader) {
	defer close(s.keys)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		k, err := ParseKey(line)
		if err != nil {
			log.Warnf("ignore input: %v", err)
			continue
		}
		s.keys <- k
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("input stream error: %v", err)
	}
}

func (s *Stream) Poll(step int32) entity.Intent {
	var f Frame
	for {
		select {
		case k, ok := <-s.keys:
			if !ok {
				return s.driver.Apply(f)
			}
			f.press(k)
		default:
			return s.driver.Apply(f)
		}
	}
}
