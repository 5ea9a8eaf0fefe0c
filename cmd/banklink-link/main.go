// Command banklink-link links a bank account from the terminal: it serves the
// callback on APP_ORIGIN, opens the authorization page in the system browser
// and stores the tokens once the provider hands control back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"

	"banklink/internal/cli"
	"banklink/internal/core"
	"banklink/internal/linking"
	"banklink/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	tokenFile := flag.String("token-file", "", "also write the tokens to this file as an OAuth2 token")
	noBrowser := flag.Bool("no-browser", false, "only print the authorization URL")
	flag.Parse()

	cli.LoadEnvFile()
	bootLogger := cli.SetupLogger("info", log.ComponentLinking)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentLinking)

	if cfg.Provider != core.ProviderTrueLayer.String() {
		logger.Error("Terminal linking needs the redirect handshake; use the web dashboard for Plaid Link", log.FieldProvider, cfg.Provider)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg)
	defer res.Cleanup()
	spending, closeCache := cli.NewSpendingService(logger, cfg, res)
	defer closeCache()

	callback := linking.NewCallbackHandler(linking.CallbackConfig{
		Backend:  res.Provider.Auth,
		Sessions: res.Sessions,
		Relay:    res.Relay,
		Origin:   cfg.AppOrigin,
		Logger:   logger,
	})

	failures := make(chan string, 1)
	srv, err := callbackServer(cfg.AppOrigin, callback, failures)
	if err != nil {
		logger.Error("Invalid APP_ORIGIN", log.FieldError, err)
		return 1
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server error", log.FieldError, err, "addr", srv.Addr)
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	initiator := linking.NewInitiator(linking.InitiatorConfig{
		Backend:  res.Provider.Auth,
		Sessions: res.Sessions,
		Relay:    res.Relay,
		Opener:   terminalOpener(logger, *noBrowser),
		Sink:     spending,
		Origin:   cfg.AppOrigin,
		Logger:   logger,
	})

	attempt, err := initiator.BeginLink(ctx, linking.ModePopup)
	if err != nil {
		logger.Error("Link initiation failed", log.FieldError, err)
		return 1
	}
	defer attempt.Pending.Close()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.LinkTimeout)
	defer cancel()

	tokens, err := awaitLink(waitCtx, attempt.Pending, failures)
	var failed *linkFailure
	switch {
	case errors.As(err, &failed):
		logger.Error("Linking failed", log.FieldError, err)
		fmt.Fprintln(os.Stderr, failed.message)
		return 1
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error(linking.MsgLinkTimedOut, "timeout", cfg.LinkTimeout)
		return 1
	case errors.Is(err, context.Canceled):
		logger.Warn("Interrupted")
		return 1
	case err != nil:
		logger.Error("Linking failed", log.FieldError, err)
		return 1
	}

	fmt.Println("Bank account linked.")
	if *tokenFile != "" {
		if err := writeToken(*tokenFile, tokens); err != nil {
			logger.Error("Failed to write token file", log.FieldError, err)
			return 1
		}
		fmt.Printf("Saved token to %s\n", *tokenFile)
	}
	return 0
}

// linkFailure is a callback that concluded the attempt without tokens.
type linkFailure struct {
	message string
}

func (e *linkFailure) Error() string { return "callback failed: " + e.message }

// awaitLink waits for the relayed tokens and stops at the first callback failure.
func awaitLink(ctx context.Context, p *linking.Pending, failures <-chan string) (core.AuthTokens, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		tokens core.AuthTokens
		err    error
	}
	done := make(chan result, 1)
	go func() {
		tokens, err := p.Wait(ctx)
		done <- result{tokens, err}
	}()

	select {
	case r := <-done:
		return r.tokens, r.err
	case msg := <-failures:
		cancel()
		<-done
		return core.AuthTokens{}, &linkFailure{message: msg}
	}
}

// terminalOpener always prints the URL so the user can open it by hand when
// no browser can be launched.
func terminalOpener(logger *log.Logger, noBrowser bool) linking.Opener {
	browser := linking.SystemBrowser{}
	return linking.OpenerFunc(func(ctx context.Context, u string) error {
		fmt.Printf("Open this URL to authorize:\n%s\n", u)
		if noBrowser {
			return nil
		}
		if err := browser.Open(ctx, u); err != nil {
			logger.Warn("Could not open a browser", log.FieldError, err, log.FieldTextCode, linking.TextPopupBlocked)
		}
		return nil
	})
}

// callbackServer serves the provider redirect. Failed callbacks are reported
// on failures without blocking.
func callbackServer(origin string, h *linking.CallbackHandler, failures chan<- string) (*http.Server, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("origin %q has no host", origin)
	}
	addr := u.Host
	if u.Port() == "" {
		addr += ":80"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Referrer-Policy", "no-referrer")
		res := h.HandleReturn(r.Context(), r.URL.Query(), linking.ModePopup)
		switch res.Outcome {
		case linking.OutcomeSuccess:
			fmt.Fprintf(w, "%s You may close this window and return to the terminal.\n", res.Message)
		case linking.OutcomeError:
			select {
			case failures <- res.Message:
			default:
			}
			http.Error(w, res.Message, http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}, nil
}

func writeToken(path string, t core.AuthTokens) error {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
