package feature

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "feature")
