// Command uldb runs uldb requests from a .uldb script or an interactive
// prompt.
//
// Usage:
//
//	uldb [flags] [script.uldb]
//
// Without a script, requests are read one per line from stdin until quit,
// q or end of file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/MikhailWahib/uldb"
	"github.com/MikhailWahib/uldb/internal/config"
	"github.com/MikhailWahib/uldb/internal/interp"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const prompt = "uldb:: "

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "uldb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "YAML configuration file")
	dbDir := flag.String("db", "", "Database directory to open before running")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	flag.Parse()
	if flag.NArg() > 1 {
		return fmt.Errorf("unknown arguments: %v", flag.Args()[1:])
	}

	if *version {
		printVersion()
		return nil
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(level)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
	cfg.Logger = logger

	in := interp.New(func(path string) (interp.DB, error) {
		return uldb.Open(path, cfg)
	}, logger)
	defer func() {
		if err := in.Close(); err != nil {
			slog.Error("failed to close database", "err", err)
		}
	}()
	if *dbDir != "" {
		if _, err := in.Exec(fmt.Sprintf("open(%s)", *dbDir)); err != nil {
			return err
		}
	}

	out := newRenderer(os.Stdout)
	if flag.NArg() == 1 {
		return runScript(ctx, in, flag.Arg(0), out)
	}
	return interactive(ctx, in, os.Stdin, out, isatty.IsTerminal(os.Stdin.Fd()))
}

func runScript(ctx context.Context, in *interp.Interpreter, path string, out *renderer) error {
	if filepath.Ext(path) != ".uldb" {
		return fmt.Errorf("script %s must have the .uldb extension", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	slog.Debug("running script", "path", path)
	if err := in.RunScript(ctx, f, out.result); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// interactive reads requests from r until quit, q or EOF. Errors are
// printed and the loop goes on.
func interactive(ctx context.Context, in *interp.Interpreter, r io.Reader, out *renderer, tty bool) error {
	sc := interp.NewScanner(r)
	for {
		if tty {
			out.prompt()
		}
		if !sc.Scan() {
			if tty {
				out.newline()
			}
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "quit" || line == "q" {
			return nil
		}
		if interp.Skip(line) {
			continue
		}
		res, err := in.Exec(line)
		if err != nil {
			out.error(err)
			continue
		}
		out.result(res)
	}
}

func printVersion() {
	version, goVersion := "dev", "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			version = v
		}
		goVersion = info.GoVersion
	}
	fmt.Printf("uldb %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
}
