package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/tutorcore/pkg/config"
	"github.com/harunnryd/tutorcore/pkg/tutor"
)

const usage = `usage: tutorcore [-config path] <command> [flags]

commands:
  chat        reply to a prompt, or run an interactive session on stdin
  analyze     summarize a transcript into action items
  upload      store an audio file and print its object key
  transcribe  submit a stored object for recognition
  poll        check once for an async transcription result
  watch       poll until the job resolves, serving /metrics meanwhile
`

type command func(ctx context.Context, app *app, args []string) error

var commands = map[string]command{
	"chat":       runChat,
	"analyze":    runAnalyze,
	"upload":     runUpload,
	"transcribe": runTranscribe,
	"poll":       runPoll,
	"watch":      runWatch,
}

type app struct {
	engine *tutor.Engine
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "tutorcore:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tutorcore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", os.Getenv("TUTORCORE_CONFIG"), "path to the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	engine, err := tutor.New(tutor.Options{Config: cfg, LogOutput: stderr})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd(ctx, &app{engine: engine, stdin: stdin, stdout: stdout}, fs.Args()[1:])
}
