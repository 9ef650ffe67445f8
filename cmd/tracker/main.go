package main

import (
	"context"
	"os"

	"github.com/leolhan1425/bc-tracker/internal/cli"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
