package feature

import (
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/container"
)

// Window 预测器输入窗口
// 功能：保存最近capacity条Record，从旧到新排列
// 说明：长度永远不超过容量；只有长度等于容量时才认为就绪，未就绪的窗口不能用于预测
type Window struct {
	ring *container.Ring[Record]
}

// NewWindow 创建输入窗口
// 参数：capacity-窗口长度，必须为正，否则panic
func NewWindow(capacity int) *Window {
	return &Window{ring: container.NewRing[Record](capacity)}
}

// Push 追加一条记录，满时淘汰最旧的记录
func (w *Window) Push(r Record) {
	if w == nil || w.ring == nil {
		log.Panic("window: push into uninitialized window")
	}
	w.ring.Push(r)
}

// Ready 窗口是否已满
func (w *Window) Ready() bool {
	return w.ring.Full()
}

// Len 当前记录数
func (w *Window) Len() int {
	return w.ring.Len()
}

// Cap 窗口长度
func (w *Window) Cap() int {
	return w.ring.Cap()
}

// Snapshot 按从旧到新的顺序复制出全部记录，不修改窗口
func (w *Window) Snapshot() []Record {
	return w.ring.Slice()
}
