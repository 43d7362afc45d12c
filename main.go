package main

import (
	"nts/internal/command"
	_ "nts/internal/dump"
	_ "nts/internal/ping"
	_ "nts/internal/scenario"
	_ "nts/internal/serve"

	"github.com/sirupsen/logrus"
)

func main() {
	err := command.Execute()
	if err != nil {
		logrus.WithError(err).Fatal("Fatal to command.Execute")
	}
}
