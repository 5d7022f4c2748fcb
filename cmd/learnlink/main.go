package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/learnlink-client/app"
	"github.com/jrsteele09/learnlink-client/internal/config"
	applog "github.com/jrsteele09/learnlink-client/internal/log"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		usage(os.Stdout)
		return
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		os.Exit(1)
	}
}

func run(name string, args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	var configDirs []string
	if dir := os.Getenv("LEARNLINK_CONFIG_DIR"); dir != "" {
		configDirs = append(configDirs, dir)
	}
	c, err := config.Load(configDirs...)
	if err != nil {
		log.Printf("Error loading config: %s\n", err)
		return err
	}
	logger := applog.New(c.GetLogLevel())
	if cmd.banner {
		displayAppname(c.GetAppName())
	}

	printer := newAlertPrinter(os.Stdout)
	a, err := app.New(c,
		app.WithLogger(logger),
		app.WithAlertHandler(printer.print),
		app.WithOpenBrowser(func(url string) error {
			fmt.Printf("Open this link to sign in with Google:\n\n  %s\n\n", url)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Error starting client: %s\n", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("could not save cookies")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Restore(ctx)
	if err := cmd.check(a); err != nil {
		a.Alerts.ShowError(err)
		return err
	}
	if err := cmd.run(ctx, a, args); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		a.Alerts.ShowError(err)
		return err
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
