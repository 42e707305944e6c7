package safety

// Cooldown 变道冷却计数器
// 功能：限制两次变道指令之间的最小步数间隔
// 说明：由头车的车辆状态持有，每步递减一次，变道成功后重置为固定长度，外部不能清零
type Cooldown struct {
	remaining int // 剩余冷却步数
	length    int // 变道后的冷却长度
}

// NewCooldown 创建冷却计数器，初始即可变道
func NewCooldown(length int) *Cooldown {
	if length < 0 {
		log.Panicf("cooldown length must not be negative, got %d", length)
	}
	return &Cooldown{length: length}
}

// Remaining 剩余冷却步数
func (c *Cooldown) Remaining() int {
	return c.remaining
}

// Length 冷却长度
func (c *Cooldown) Length() int {
	return c.length
}

// Ready 是否允许变道
func (c *Cooldown) Ready() bool {
	return c.remaining == 0
}

// tick 每步递减一次
func (c *Cooldown) tick() {
	if c.remaining > 0 {
		c.remaining--
	}
}

// reset 变道后重置
func (c *Cooldown) reset() {
	c.remaining = c.length
}
