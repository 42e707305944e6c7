package userinput

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "userinput")
