package main

import (
	"fmt"
	"os"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/urfave/cli/v2"
)

// newApp returns the command line application. Commands read from the app
// reader and write to the app writer so that they can be combined into a
// pipeline:
//
//	idgov merge base.ptb intent.ptb | idgov view
func newApp() *cli.App {
	return &cli.App{
		Name:  "idgov",
		Usage: "inspect identity transaction fragments and run a local governance demo",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level, overrides IDGOV_LOG_LEVEL",
			},
		},
		Commands: []*cli.Command{
			viewCommand,
			mergeCommand,
			demoCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration from the environment and builds the logger.
func setup(c *cli.Context) (idgov.Config, log.Logger, error) {
	conf, err := idgov.LoadConfig()
	if err != nil {
		return conf, nil, errors.Wrap(err, "configuration")
	}
	if lvl := c.String("log-level"); lvl != "" {
		conf.LogLevel = lvl
	}
	allowed, err := log.AllowLevel(conf.LogLevel)
	if err != nil {
		return conf, nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	logger := log.NewTMLogger(log.NewSyncWriter(c.App.ErrWriter))
	return conf, log.NewFilter(logger, allowed), nil
}
