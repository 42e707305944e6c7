package traci

import (
	"context"
	"fmt"
	"net"
	"os/exec"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
)

// DEFAULT_RETRIES 启动SUMO后连接的默认重试次数
const DEFAULT_RETRIES = 10

// Open 按配置连接SUMO
// 功能：配置了可执行文件时先以--remote-port启动SUMO，再连接TraCI端口
// 返回：客户端；启动或连接失败时返回包装了entity.ErrConfiguration的错误
func Open(ctx context.Context, c config.Traci) (*Client, error) {
	retries := c.Retries
	var proc *exec.Cmd
	if c.Binary != "" {
		_, port, err := net.SplitHostPort(c.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: traci address %q: %v", entity.ErrConfiguration, c.Address, err)
		}
		args := append(append([]string{}, c.Args...), "--remote-port", port)
		proc = exec.CommandContext(ctx, c.Binary, args...)
		if err := proc.Start(); err != nil {
			return nil, fmt.Errorf("%w: start %s: %v", entity.ErrConfiguration, c.Binary, err)
		}
		log.Infof("started %s %v (pid %d)", c.Binary, args, proc.Process.Pid)
		if retries == 0 {
			retries = DEFAULT_RETRIES
		}
	}
	client, err := Dial(ctx, c.Address, retries)
	if err != nil {
		if proc != nil {
			_ = proc.Process.Kill()
			_ = proc.Wait()
		}
		return nil, err
	}
	client.proc = proc
	return client, nil
}
