package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"resimages/config"
)

const appName = "resimages"

// version is set by the linker.
var version = "dev"

type appEnv struct {
	Cfg *config.Config
	Log *zap.Logger
}

type envKey struct{}

func envFromContext(ctx context.Context) *appEnv {
	if env, ok := ctx.Value(envKey{}).(*appEnv); ok {
		return env
	}
	return &appEnv{Log: zap.NewNop()}
}

// initializeAppContext loads configuration and logging after the command
// line has been parsed.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	env := envFromContext(ctx)

	configFile := cmd.String("config")
	cfg, err := config.LoadConfiguration(configFile)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		cfg.Logging.ConsoleLogger.Level = "debug"
	}
	env.Cfg = cfg
	log, err := cfg.Logging.Prepare()
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.Log = log
	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", version), zap.String("runtime", runtime.Version()))
	if len(configFile) == 0 {
		env.Log.Debug("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, _ *cli.Command) error {
	env := envFromContext(ctx)
	if env.Log != nil {
		env.Log.Debug("Program ended")
		_ = env.Log.Sync()
	}
	return nil
}

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	envFromContext(ctx).Log.Error("Program ended with error", zap.Error(err))
}

func main() {
	ctx, stop := signal.NotifyContext(context.WithValue(context.Background(), envKey{}, &appEnv{Log: zap.NewNop()}), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            appName,
		Usage:           "selects viewport sized image URLs in HTML pages",
		Version:         version + " (" + runtime.Version() + ")",
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log every resolution decision"},
		},
		Commands: []*cli.Command{
			{
				Name:      "rewrite",
				Usage:     "Rewrites image URLs of an HTML page for a viewport",
				Action:    runRewrite,
				Flags:     append(viewportFlags(), optionFlags()...),
				ArgsUsage: "SOURCE [DESTINATION]",
			},
			{
				Name:   "layout",
				Usage:  "Prints the layout active for a viewport",
				Action: runLayout,
				Flags:  viewportFlags(),
			},
			{
				Name:   "serve",
				Usage:  "Runs the HTTP rewriting service",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen `ADDRESS`, e.g. :8081"},
				},
			},
			{
				Name:   "dumpconfig",
				Usage:  "Dumps either default or actual configuration (YAML)",
				Action: outputConfiguration,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default configuration"},
				},
				ArgsUsage: "DESTINATION",
			},
		},
	}

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}
