// Package errreport forwards panics and server errors to Rollbar.
package errreport

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
)

// Reporter receives errors worth paging someone about.
type Reporter interface {
	Error(ctx context.Context, err error, extras map[string]any)
	Panic(r *http.Request, recovered any)
}

// Nop discards every report. It is used when no Rollbar token is configured.
type Nop struct{}

// Error does nothing.
func (Nop) Error(context.Context, error, map[string]any) {}

// Panic does nothing.
func (Nop) Panic(*http.Request, any) {}

// Config holds Rollbar settings.
type Config struct {
	Token       string
	Environment string
	Version     string
}

// Rollbar reports to rollbar.com.
type Rollbar struct {
	client *rollbar.Client
}

// New returns a Rollbar reporter, or Nop when cfg has no token.
func New(cfg Config) Reporter {
	if cfg.Token == "" {
		return Nop{}
	}
	host, _ := os.Hostname()
	client := rollbar.New(cfg.Token, cfg.Environment, cfg.Version, host, "")
	client.SetStackTracer(rollbarerrors.StackTracer)
	return &Rollbar{client: client}
}

// Error reports err at error level.
func (r *Rollbar) Error(_ context.Context, err error, extras map[string]any) {
	r.client.ErrorWithExtras(rollbar.ERR, err, extras)
}

// Panic reports a recovered panic along with the request that caused it.
func (r *Rollbar) Panic(req *http.Request, recovered any) {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	r.client.RequestError(rollbar.CRIT, req, err)
}

// Close flushes queued reports.
func (r *Rollbar) Close() error {
	return r.client.Close()
}
