package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/RichardoC/aip-chat/internal/app"
	"github.com/RichardoC/aip-chat/internal/config"
	"go.uber.org/zap"
)

var (
	mockLogin = flag.String("mock-login", "", "Sign in locally as this email, skipping the backend")
	useOIDC   = flag.Bool("oidc", false, "Sign in through Keycloak in the browser")
)

func main() {
	flag.Parse()
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open app", zap.Error(err))
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		logger.Error("Failed to restore sign-in", zap.Error(err))
	}

	r := newREPL(a, bufio.NewScanner(os.Stdin), os.Stdout)

	switch {
	case a.Auth().IsAuthenticated():
	case *mockLogin != "":
		err = a.Auth().MockLogin(ctx, *mockLogin)
	case *useOIDC:
		err = oidcLogin(ctx, a.OIDC(), a.Auth(), r.out)
	}

	for err == nil {
		if !a.Auth().IsAuthenticated() {
			if err = r.signIn(ctx); err != nil {
				break
			}
		}
		if !r.chatLoop(ctx) {
			return
		}
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, r.errorf("Sign-in failed: %v", err))
		os.Exit(1)
	}
}

// newLogger writes to a file in the cache directory so log lines do not
// interleave with the conversation.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
		return nil, err
	}
	zc.OutputPaths = []string{filepath.Join(cfg.CacheDir, "client.log")}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
