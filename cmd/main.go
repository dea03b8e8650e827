package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"forwardtester/cmd/engine"
	"forwardtester/cmd/ohlcv"
	"forwardtester/src/database"
	"forwardtester/src/repository"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Forwardtester CMD"
	app.Usage = "The forwardtester command line interface"

	app.Commands = []cli.Command{
		engineCMD,
		ohlcvCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	engineCMD = cli.Command{
		Name:        "engine",
		Usage:       "run the execution engine",
		Action:      engineAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the forward-testing execution engine`,
	}
	ohlcvCMD = cli.Command{
		Name:        "ohlcv",
		Usage:       "backfill OHLCV candles",
		Action:      ohlcvAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Backfill the OHLCV candle cache`,
	}
)

func engineAction(_ *cli.Context) error {
	logrus.Info("Starting engine CMD")

	e := &engine.Engine{}
	if err := e.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func ohlcvAction(_ *cli.Context) error {
	logrus.Info("Starting OHLCV backfill CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	backfill := &ohlcv.Backfill{
		Log:  logrus.WithField("cmd", "ohlcv"),
		Repo: repository.NewCandleRepository(),
	}

	if err := backfill.Start(); err != nil {
		logrus.WithError(err).Error("Starting OHLCV cmd")
		return err
	}

	return nil
}
