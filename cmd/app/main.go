package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"vfi-client/internal/bootstrap"
	"vfi-client/internal/config"
	"vfi-client/internal/logging"
)

const usage = `usage: vfi <command> [flags] [args]

commands:
  extract   upload a video and receive its frames
  generate  generate frames between a start and an end image
  ease      ease motion over uploaded frames or a previous extraction
  export    download a frame, a zip of all frames or a rendered video
  serve     run the local HTTP control surface
  diagnose  check settings, server reachability and the output directory
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "vfi:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}

	commands := map[string]func(context.Context, *cli, []string) error{
		"extract":  runExtract,
		"generate": runGenerate,
		"ease":     runEase,
		"export":   runExport,
		"serve":    runServe,
		"diagnose": runDiagnose,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}

	return cmd(ctx, &cli{name: args[0]}, args[1:])
}

// cli carries the flags every command shares and the app built from them.
type cli struct {
	name       string
	configPath string
	app        *bootstrap.App
	logger     zerolog.Logger
}

func (c *cli) flags() *flag.FlagSet {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.StringVar(&c.configPath, "config", config.DefaultSettingsPath(), "settings file")
	return fs
}

// open loads settings and wires the app. The log level comes from settings,
// so the logger starts permissive and is narrowed once they are known.
func (c *cli) open() error {
	config.LoadDotEnv()
	c.logger = logging.New(zerolog.LevelTraceValue, os.Stderr)

	app, err := bootstrap.NewWithStore(config.NewJSONStore(c.configPath), c.logger)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(logging.ParseLevel(app.GetSettings().LogLevel))
	c.app = app
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
}
