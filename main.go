package main

import (
	"context"
	"encoding/base64"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/safedrive-agent/display"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
	"github.com/tsinghua-fib-lab/safedrive-agent/normalize"
	"github.com/tsinghua-fib-lab/safedrive-agent/predictor"
	"github.com/tsinghua-fib-lab/safedrive-agent/sim/memsim"
	"github.com/tsinghua-fib-lab/safedrive-agent/sim/traci"
	"github.com/tsinghua-fib-lab/safedrive-agent/task"
	"github.com/tsinghua-fib-lab/safedrive-agent/userinput"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/input"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 任务名
	job = flag.String("job", "job0", "the name of the control task")
	// 本程序监听的RPC地址
	grpcAddr = flag.String("listen", ":51103", "RPC listening address")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// .env文件路径
	envPath = flag.String("env", ".env", "dotenv file overriding secrets in config")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "safedrive")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	c, err := config.Parse(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	config.LoadEnv(&c, *envPath)
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		log.Panicf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动前必须加载的模型数据，失败则不进入控制循环
	res, err := input.Init(ctx, rc.All)
	if err != nil {
		log.Panicf("%v", err)
	}
	shape := predictor.Shape{
		SeqLength: rc.C.Shape.SeqLength,
		Features:  feature.N_FEATURES,
		Horizon:   rc.C.Shape.PredHorizon,
		Targets:   rc.C.Shape.NTargets,
	}

	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)

	var model predictor.Predictor
	switch rc.All.Input.Predictor.Backend {
	case "linear":
		linear, err := predictor.NewLinear(*res.Linear)
		if err != nil {
			log.Panicf("%v", err)
		}
		if linear.Shape() != shape {
			log.Panicf("linear model shape %+v mismatches control.shape %+v", linear.Shape(), shape)
		}
		model = linear
		// 对外提供本进程加载的预测模型
		sidecar.Register(
			predictor.ServiceName,
			func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
				return predictor.NewHandler(linear, opts...)
			},
			syncer.WithNoLock(),
		)
	case "remote":
		addr := rc.All.Input.Predictor.Address
		if err := task.WaitForServerReady(addr, 10, time.Second); err != nil {
			log.Panicf("%v", err)
		}
		model = predictor.NewRemote(http.DefaultClient, addr)
	}
	gateway, err := predictor.NewGateway(model, normalize.New(res.Params), shape, predictor.GatewayOption{
		HorizonIndex: *rc.C.Shape.HorizonIndex,
		SpeedTarget:  *rc.C.Shape.SpeedTarget,
		MinSpeed:     rc.A.MinSpeed,
		MaxSpeed:     rc.A.MaxSpeed,
	})
	if err != nil {
		log.Panicf("%v", err)
	}

	// 仿真器
	var sim entity.ISimulator
	switch rc.All.Simulator.Backend {
	case "memory":
		sim, err = memsim.New(*rc.All.Simulator.Memory, rc.C.Step.Interval)
	case "traci":
		sim, err = traci.Open(ctx, *rc.All.Simulator.Traci)
	}
	if err != nil {
		log.Panicf("%v", err)
	}

	// 用户输入
	driver := userinput.NewDriver(rc.A.MinSpeed, rc.A.MaxSpeed)
	var source entity.IInputSource
	switch rc.All.User.Source {
	case "none":
		source = userinput.NewNone(driver)
	case "script":
		if source, err = userinput.NewScript(driver, rc.All.User.Script); err != nil {
			log.Panicf("%v", err)
		}
	case "stdin":
		log.Info("CONTROLS: up/down=speed, left/right=lane change, quit; one key per line")
		source = userinput.NewStream(driver, os.Stdin)
	}

	// 显示
	displays := display.Multi{display.NewLog(rc.All.Output.LogInterval)}
	if m := rc.All.Output.MQTT; m != nil {
		pub, err := display.NewMQTT(*m)
		if err != nil {
			log.Panicf("%v", err)
		}
		defer pub.Close()
		displays = append(displays, pub)
	}
	if path := rc.All.Output.SQLite; path != "" {
		rec, err := display.NewRecorder(path, rc.C.Leader, rc.C.Follower)
		if err != nil {
			log.Panicf("%v", err)
		}
		defer rec.Close()
		displays = append(displays, rec)
	}

	t := task.NewContext(
		*job,
		rc,
		task.Deps{
			Simulator: sim,
			Input:     source,
			Display:   displays,
			Gateway:   gateway,
		},
		sidecar,
		true,
	)
	if err := t.Run(ctx); err != nil {
		log.Errorf("control loop aborted: %v", err)
	}
}
