package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/mysh/internal/config"
	"github.com/kazz187/mysh/internal/shell"
	"github.com/kazz187/mysh/internal/statusserver"
	"github.com/kazz187/mysh/pkg/clog"
	"github.com/kazz187/mysh/pkg/storage"
)

var (
	app         = kingpin.New("mysh", "A POSIX-like interactive shell with job control")
	historyFlag = app.Flag("history-file", "Path to the history file").Default(defaultHistoryFile()).String()
)

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return shell.DefaultHistoryFile
	}
	return filepath.Join(home, shell.DefaultHistoryFile)
}

func defaultStartupFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, shell.DefaultStartupFile)
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(env.SlogLevel()))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: env.SlogLevel()})
	}
	logger := slog.New(clog.NewAttributesHandler(handler))
	slog.SetDefault(logger)

	store, err := newStorage(env)
	if err != nil {
		slog.Error("failed to set up storage", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()
	ctx = clog.ContextWithSlog(ctx)

	persist := shell.NewPersistence(store, *historyFlag, logger)
	sh := shell.NewShell(persist, logger)

	if startupPath := defaultStartupFile(); startupPath != "" {
		if err := shell.LoadStartupFile(startupPath, sh.Env); err != nil {
			logger.Warn("failed to load startup file", "error", err)
		}
	}
	if err := persist.LoadAll(ctx, sh.History, sh.Env); err != nil {
		logger.Warn("failed to load shell history/config", "error", err)
	}

	if addr := env.StatusAddr(); addr != "" {
		srv := statusserver.New(addr, sh)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
				logger.Error("status server error", "error", err)
			}
		}()
	}

	// SIGTERM cancels ctx: persist state and exit without waiting for the
	// read loop, which stays blocked on stdin.
	go func() {
		<-ctx.Done()
		if err := persist.SaveAll(context.Background(), sh.History, sh.Env); err != nil {
			logger.Warn("failed to save shell history/config", "error", err)
		}
		os.Exit(0)
	}()

	code := sh.Run(ctx, stdinReader())
	os.Exit(code)
}

func newStorage(env *config.Env) (storage.Storage, error) {
	switch env.StorageEnv.Type {
	case "s3":
		return storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
	default:
		baseDir := env.StorageEnv.BaseDir
		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				home = "."
			}
			baseDir = home
		}
		return storage.NewLocalStorage(baseDir)
	}
}

// stdinReader adapts a bufio.Scanner over stdin to shell.ReadLineFunc,
// printing the prompt before each read the way an interactive terminal
// session expects.
func stdinReader() shell.ReadLineFunc {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return func(prompt string) (string, bool) {
		fmt.Fprint(os.Stdout, prompt)
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}
}
