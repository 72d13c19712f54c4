// Command evloop runs a JavaScript file on the reactor event loop.
//
// The script gets setTimeout/setInterval/clearTimeout/clearInterval, the
// EventLoop native object (createTimer/deleteTimer/listenFd/requestExit),
// and a console. The process exits when the loop stops: on an explicit
// EventLoop.requestExit(), or once no timers and no watched descriptors
// remain.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-reactor"
	"github.com/joeycumines/go-reactor/gojareactor"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/urfave/cli"
)

var (
	logLevel  string
	maxTimers int
	maxFDs    int
)

func main() {
	app := cli.NewApp()
	app.Name = "evloop"
	app.Usage = "run a JavaScript file on the reactor event loop"
	app.ArgsUsage = "<script.js>"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "minimum log level (debug, info, warning, error)",
			Value:       "warning",
			Destination: &logLevel,
			EnvVar:      "EVLOOP_LOG_LEVEL",
		},
		cli.IntFlag{
			Name:        "max-timers",
			Usage:       "maximum number of concurrently pending timers",
			Value:       reactor.DefaultMaxTimers,
			Destination: &maxTimers,
		},
		cli.IntFlag{
			Name:        "max-fds",
			Usage:       "maximum number of watched descriptors",
			Value:       reactor.DefaultMaxDescriptors,
			Destination: &maxFDs,
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "evloop: %s\n", err.Error())
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	script := ctx.Args().First()
	if script == "" {
		return cli.ShowAppHelp(ctx)
	}

	src, err := os.ReadFile(script)
	if err != nil {
		return err
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	loop, err := reactor.New(
		reactor.WithLogger(logger),
		reactor.WithMaxTimers(maxTimers),
		reactor.WithMaxDescriptors(maxFDs),
	)
	if err != nil {
		return err
	}

	vm := goja.New()
	registry := new(require.Registry)
	registry.Enable(vm)
	console.Enable(vm)

	adapter, err := gojareactor.New(loop, vm)
	if err != nil {
		return err
	}
	if err := adapter.Bind(); err != nil {
		return err
	}

	if _, err := vm.RunScript(filepath.Base(script), string(src)); err != nil {
		return err
	}

	return loop.Run(context.Background())
}

func parseLevel(s string) (logiface.Level, error) {
	switch s {
	case "debug":
		return logiface.LevelDebug, nil
	case "info":
		return logiface.LevelInformational, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "error", "err":
		return logiface.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
