package container

import (
	"fmt"
	"log"
)

// Ring 定长环形缓冲区
// 功能：按插入顺序保存最近的cap个元素，满时插入会覆盖最旧的元素（FIFO）
// 说明：底层数组在创建时一次性分配，Push为O(1)，不做并发保护，只能由单一协程使用
type Ring[T any] struct {
	data  []T // 底层数组，长度固定为容量
	start int // 最旧元素的下标
	size  int // 当前元素个数
}

// NewRing 创建环形缓冲区
// 功能：创建容量为capacity的环形缓冲区
// 参数：capacity-容量，必须为正
// 返回：环形缓冲区指针
// 说明：容量非正属于编程错误，直接panic
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		log.Panicf("ring capacity must be positive, got %d", capacity)
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Len 当前元素个数
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap 容量
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// Full 是否已满
func (r *Ring[T]) Full() bool {
	return len(r.data) > 0 && r.size == len(r.data)
}

// Push 追加元素
// 功能：在尾部追加新元素，若已满则先淘汰最旧的元素
// 参数：v-新元素
// 返回：evicted-被淘汰的元素，ok-是否发生了淘汰
// 算法说明：
// 1. 未满时写入start+size位置，size加1
// 2. 已满时覆盖start位置（即最旧元素），start后移一位
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if len(r.data) == 0 {
		log.Panic("push into uninitialized ring")
	}
	if r.size < len(r.data) {
		r.data[(r.start+r.size)%len(r.data)] = v
		r.size++
		return
	}
	evicted, ok = r.data[r.start], true
	r.data[r.start] = v
	r.start = (r.start + 1) % len(r.data)
	return
}

// At 按从旧到新的顺序获取第i个元素
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		log.Panicf("ring index %d out of range [0, %d)", i, r.size)
	}
	return r.data[(r.start+i)%len(r.data)]
}

// Slice 按从旧到新的顺序复制出所有元素
// 说明：返回的切片与缓冲区不共享内存，修改它不会影响缓冲区
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.At(i)
	}
	return out
}

func (r *Ring[T]) String() string {
	return fmt.Sprintf("Ring{Len:%v, Cap:%v, Data:%v}", r.size, len(r.data), r.Slice())
}
