package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/DukeRupert/ohscentric/internal/entitlement"
)

// ReturnListener is a loopback HTTP server that receives the browser when
// hosted checkout finishes.
type ReturnListener struct {
	ln      net.Listener
	srv     *http.Server
	results chan entitlement.CheckoutResult
	logger  *slog.Logger
}

// ListenForCheckoutReturn starts a ReturnListener on a random loopback port.
func ListenForCheckoutReturn(logger *slog.Logger) (*ReturnListener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for checkout return: %w", err)
	}

	l := &ReturnListener{
		ln:      ln,
		results: make(chan entitlement.CheckoutResult, 1),
		logger:  logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+string(entitlement.CheckoutSuccess), l.handle(entitlement.CheckoutSuccess,
		"Payment received. You can close this tab and return to the terminal."))
	mux.HandleFunc("GET "+string(entitlement.CheckoutCancel), l.handle(entitlement.CheckoutCancel,
		"Checkout cancelled. You can close this tab and return to the terminal."))
	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("checkout return listener failed", "error", err)
		}
	}()
	return l, nil
}

func (l *ReturnListener) handle(result entitlement.CheckoutResult, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.results <- result:
		default:
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, message)
	}
}

// SuccessURL is the address hosted checkout returns to on payment.
func (l *ReturnListener) SuccessURL() string {
	return "http://" + l.ln.Addr().String() + string(entitlement.CheckoutSuccess)
}

// CancelURL is the address hosted checkout returns to on cancel.
func (l *ReturnListener) CancelURL() string {
	return "http://" + l.ln.Addr().String() + string(entitlement.CheckoutCancel)
}

// Wait blocks until the browser returns or ctx is done.
func (l *ReturnListener) Wait(ctx context.Context) (entitlement.CheckoutResult, error) {
	select {
	case r := <-l.results:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close shuts the listener down.
func (l *ReturnListener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.srv.Shutdown(ctx)
}
