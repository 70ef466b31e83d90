package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/RichardoC/aip-chat/internal/auth"
	"github.com/RichardoC/aip-chat/internal/models"
)

const oidcLoginTimeout = 5 * time.Minute

// oidcLogin signs in through the browser. It serves the redirect URL
// locally, waits for the authorization code and exchanges it for tokens.
func oidcLogin(ctx context.Context, o *auth.OIDC, session *auth.Session, out io.Writer) error {
	redirect, err := url.Parse(o.RedirectURL())
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen for the redirect: %w", err)
	}

	state := models.NewID()
	authURL, verifier := o.AuthCodeURL(state)

	path := redirect.Path
	if path == "" {
		path = "/"
	}

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			select {
			case errs <- fmt.Errorf("sign-in refused: %s", q.Get("error")):
			default:
			}
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			select {
			case codes <- q.Get("code"):
			default:
			}
		}
		fmt.Fprintln(w, "You can close this window and return to the terminal.")
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	defer srv.Close()

	fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\n", authURL)

	ctx, cancel := context.WithTimeout(ctx, oidcLoginTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("timed out waiting for the browser sign-in")
		}
		return ctx.Err()
	case err := <-errs:
		return err
	case code := <-codes:
		tokens, err := o.Exchange(ctx, code, verifier)
		if err != nil {
			return err
		}
		return session.Login(ctx, tokens)
	}
}
