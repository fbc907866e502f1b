package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/llm"
	"github.com/harunnryd/tutorcore/pkg/runner"
	"github.com/harunnryd/tutorcore/pkg/transcribe"
)

func runChat(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	prompt := fs.String("prompt", "", "single message to send; reads stdin lines when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client := a.engine.Chat()
	if *prompt != "" {
		reply, _ := client.Reply(ctx, nil, *prompt)
		fmt.Fprintln(a.stdout, reply)
		return nil
	}

	var history llm.History
	scanner := bufio.NewScanner(a.stdin)
	fmt.Fprint(a.stdout, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(a.stdout, "> ")
			continue
		}
		var reply string
		reply, history = client.Reply(ctx, history, line)
		fmt.Fprintf(a.stdout, "%s\n> ", reply)
		if ctx.Err() != nil {
			break
		}
	}
	fmt.Fprintln(a.stdout)
	return scanner.Err()
}

func runAnalyze(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	file := fs.String("file", "", "transcript file; reads stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	transcript, err := readInput(*file, a.stdin)
	if err != nil {
		return err
	}
	res, err := a.engine.Analyzer().Analyze(ctx, string(transcript))
	if err != nil {
		return err
	}
	if res.Degraded() {
		a.engine.Logger().Warn("analysis_degraded_result", "outcome", res.Outcome)
	}
	return writeJSON(a.stdout, res)
}

func runUpload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	file := fs.String("file", "", "audio file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("upload: -file is required")
	}
	body, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	orch, err := a.engine.Transcriber()
	if err != nil {
		return err
	}
	key, err := orch.Upload(ctx, filepath.Base(*file), body)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, key)
	return nil
}

func runTranscribe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	key := fs.String("key", "", "object key of the uploaded audio")
	lang := fs.String("lang", "", "recognition language")
	mode := fs.String("mode", string(a.engine.TranscriptionMode()), "sync or async")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("transcribe: -key is required")
	}
	orch, err := a.engine.Transcriber()
	if err != nil {
		return err
	}
	m := gateway.CompletionMode(strings.ToLower(*mode))
	if m != gateway.ModeSync && m != gateway.ModeAsync {
		return fmt.Errorf("transcribe: unknown mode %q", *mode)
	}
	job := transcribe.NewJob(*key, *lang, m)
	if err := orch.Submit(ctx, job); err != nil {
		return err
	}
	return writeJSON(a.stdout, jobView(job))
}

func runPoll(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	key := fs.String("key", "", "object key of the submitted audio")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("poll: -key is required")
	}
	orch, err := a.engine.Transcriber()
	if err != nil {
		return err
	}
	res := orch.PollResult(ctx, *key)
	return writeJSON(a.stdout, map[string]any{
		"object_key": *key,
		"status":     res.Status,
		"transcript": res.Transcript,
		"message":    res.Message,
	})
}

func runWatch(ctx context.Context, a *app, args []string) error {
	cfg := a.engine.Config()
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	key := fs.String("key", "", "object key of the submitted audio")
	interval := fs.Duration("interval", cfg.Transcription.PollInterval(), "poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("watch: -key is required")
	}
	if *interval <= 0 {
		*interval = 5 * time.Second
	}
	orch, err := a.engine.Transcriber()
	if err != nil {
		return err
	}
	log := a.engine.Logger()
	job := transcribe.NewJob(*key, "", gateway.ModeAsync)
	if err := job.Apply(transcribe.Poll{Status: transcribe.StatusPending}); err != nil {
		return err
	}

	var server *http.Server
	if h := a.engine.MetricsHandler(); h != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		server = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	finished := make(chan struct{})
	lr := runner.NewLifecycleRunner(runner.DrainerFunc(func() error {
		if server == nil {
			return nil
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return server.Shutdown(shutdownCtx)
	}), runner.Hooks{
		OnStart: func(ctx context.Context) {
			if server != nil {
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("metrics_server_failed", "error", err)
					}
				}()
			}
			log.Info("watch_started", "object_key", *key, "interval", interval.String())
			go func() {
				defer close(finished)
				watchJob(ctx, orch, job, *interval, cancel)
			}()
		},
	}, 10*time.Second)
	lr.SetBanner(os.Stderr)

	if err := lr.Run(runCtx); err != nil {
		return err
	}
	<-finished
	log.Info("watch_stopped", "object_key", *key, "status", job.Status)
	return writeJSON(a.stdout, jobView(job))
}

// watchJob refreshes job on every tick until it reaches a terminal state,
// then calls done.
func watchJob(ctx context.Context, orch *transcribe.Orchestrator, job *transcribe.Job, interval time.Duration, done func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := orch.Refresh(ctx, job); err != nil || job.Status.Terminal() {
			done()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func jobView(job *transcribe.Job) map[string]any {
	return map[string]any{
		"id":         job.ID,
		"object_key": job.ObjectKey,
		"mode":       job.Mode,
		"status":     job.Status,
		"token":      job.Token,
		"transcript": job.Transcript,
		"message":    job.Message,
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
