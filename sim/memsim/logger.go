package memsim

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "memsim")
