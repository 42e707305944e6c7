package display

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "display")
