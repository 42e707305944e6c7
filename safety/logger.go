package safety

import "github.com/sirupsen/logrus"

// log 安全包络模块的日志记录器
var log = logrus.WithField("module", "safety")
