package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"resimages/config"
	"resimages/internal/proxy"
	"resimages/resimg"
)

func viewportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "width", Aliases: []string{"w"}, Usage: "viewport width in `PIXELS` (default from configuration)"},
		&cli.IntFlag{Name: "height", Usage: "viewport height in `PIXELS` (default from configuration)"},
		&cli.StringFlag{Name: "media", Usage: "media `TYPE` to emulate (screen, print)"},
		&cli.BoolFlag{Name: "chrome", Usage: "evaluate media queries with headless Chrome"},
	}
}

func optionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "selector", Aliases: []string{"s"}, Usage: "CSS `SELECTOR` of elements to bind"},
		&cli.StringFlag{Name: "attribute", Usage: "`ATTRIBUTE` written on images"},
		&cli.BoolFlag{Name: "fluid", Usage: "use fluid width mode for every element"},
		&cli.IntFlag{Name: "edge", Usage: "fluid mode edge in `PIXELS`"},
	}
}

// viewport combines configuration and command line values.
func viewport(cfg *config.Config, cmd *cli.Command) resimg.Viewport {
	vp := cfg.DefaultViewport()
	if w := cmd.Int("width"); w > 0 {
		vp.Width = int(w)
	}
	if h := cmd.Int("height"); h > 0 {
		vp.Height = int(h)
	}
	if m := cmd.String("media"); m != "" {
		vp.Type = m
	}
	return vp
}

// openEnv returns the environment to resolve against and a function
// releasing it.
func openEnv(ctx context.Context, env *appEnv, cmd *cli.Command) (resimg.Env, func(), error) {
	vp := viewport(env.Cfg, cmd)
	if !cmd.Bool("chrome") {
		return vp, func() {}, nil
	}
	chrome, err := resimg.NewChromeEnv(ctx, vp, env.Log)
	if err != nil {
		return nil, nil, err
	}
	return chrome, chrome.Close, nil
}

func runRewrite(ctx context.Context, cmd *cli.Command) (err error) {
	env := envFromContext(ctx)

	if cmd.Args().Len() == 0 {
		return errors.New("no SOURCE has been specified")
	}
	opts := env.Cfg.Images
	if v := cmd.String("attribute"); v != "" {
		opts.Attribute = v
	}
	if cmd.IsSet("fluid") {
		opts.Fluid.Mode = cmd.Bool("fluid")
	}
	if v := cmd.Int("edge"); v > 0 {
		opts.Fluid.Edge = int(v)
	}
	settings, err := resimg.NewSettings(opts)
	if err != nil {
		return fmt.Errorf("unable to prepare settings: %w", err)
	}
	selector := env.Cfg.Selector
	if v := cmd.String("selector"); v != "" {
		selector = v
	}

	in, err := os.Open(cmd.Args().Get(0))
	if err != nil {
		return fmt.Errorf("unable to open source: %w", err)
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if dst := cmd.Args().Get(1); dst != "" {
		f, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("unable to create destination: %w", err)
		}
		defer func() {
			if er := f.Close(); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to close destination: %w", er))
			}
		}()
		out = f
	}

	renv, release, err := openEnv(ctx, env, cmd)
	if err != nil {
		return err
	}
	defer release()

	n, err := resimg.RewriteHTML(in, out, renv, settings, selector, resimg.WithLogger(env.Log))
	if err != nil {
		return err
	}
	env.Log.Info("Page rewritten", zap.String("source", cmd.Args().Get(0)), zap.Int("bound", n))
	return nil
}

func runLayout(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	settings, err := env.Cfg.Settings()
	if err != nil {
		return err
	}
	renv, release, err := openEnv(ctx, env, cmd)
	if err != nil {
		return err
	}
	defer release()

	l, ok := resimg.ActiveLayout(renv, settings.Layouts)
	if !ok {
		fmt.Fprintln(os.Stdout, "no active layout")
		return nil
	}
	width := "original"
	if l.Width != resimg.Original {
		width = fmt.Sprint(l.Width)
	}
	fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", l.Name, width, l.Media)
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) (err error) {
	env := envFromContext(ctx)
	cfg := env.Cfg
	cfg.ApplyEnv()
	if v := cmd.String("addr"); v != "" {
		cfg.Server.Addr = v
	}

	handler := proxy.New(proxy.Config{
		Images:     cfg.Images,
		Selector:   cfg.Selector,
		Viewport:   cfg.DefaultViewport(),
		SitesDir:   cfg.Server.SitesDir,
		SessionTTL: cfg.Server.SessionTTL,
		MaxBodyKB:  cfg.Server.MaxBodyKB,
		Logger:     env.Log,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(env.Log),
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen error on %s: %w", cfg.Server.Addr, err)
	}
	env.Log.Info("Listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
	}
	env.Log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) {
		err = multierr.Append(err, serveErr)
	}
	return err
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) (err error) {
	env := envFromContext(ctx)

	cfg := env.Cfg
	if cmd.Bool("default") {
		cfg = config.Default()
	}
	data, err := config.Dump(cfg)
	if err != nil {
		return err
	}

	fname := cmd.Args().Get(0)
	if len(fname) == 0 {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	env.Log.Info("Configuration written", zap.String("file", fname))
	return nil
}
