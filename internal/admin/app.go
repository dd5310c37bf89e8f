package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/config"
	"github.com/dmitrijs2005/extsession/internal/server/cookies"
	"github.com/dmitrijs2005/extsession/internal/server/kvstore"
	"github.com/dmitrijs2005/extsession/internal/server/session"
)

const redacted = "***"

type App struct {
	config   *config.Config
	store    kvstore.Store
	sessions *session.Storage
	sweeper  *kvstore.Sweeper
	reader   *bufio.Reader
	out      io.Writer
}

// NewApp opens the configured store. Migrations run as part of opening.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stderr, c.LogLevel)

	kvstore.SetMigrationLogger(logger)
	store, err := kvstore.Open(ctx, c.StorageDriver, c.DatabaseDSN, c.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	return newApp(c, store, logger, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, store kvstore.Store, logger logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		config:   c,
		store:    store,
		sessions: session.NewStorage(store, logger),
		sweeper:  kvstore.NewSweeper(store, c.SweepInterval, logger),
		reader:   bufio.NewReader(in),
		out:      out,
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.store.Close()

	fmt.Fprintln(a.out, "sessionctl (type 'help' for commands)")
	runREPL(ctx, a, a.reader, a.out)
}

// Show prints the stored record of a session with its token material redacted.
func (a *App) Show(ctx context.Context, id string) error {
	sess, err := a.sessions.Load(ctx, id)
	if err != nil {
		return a.report(err)
	}
	if sess == nil {
		fmt.Fprintln(a.out, "Session not found")
		return nil
	}

	rec := sess.ToRecord()
	if rec.AccessToken != nil {
		rec.AccessToken = session.StringPtr(redacted)
	}
	if rec.RefreshToken != nil {
		rec.RefreshToken = session.StringPtr(redacted)
	}
	if rec.State != nil {
		rec.State = session.StringPtr(redacted)
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Session %s\n%s\n", id, b)
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.sessions.Delete(ctx, id); err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Session %s deleted\n", id)
	return nil
}

// Sweep removes expired rows once, outside the server's schedule.
func (a *App) Sweep(ctx context.Context) error {
	n, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Removed %d expired entries\n", n)
	return nil
}

// Verify checks a cookie value for a company and shows the session it names.
// The secret is prompted for when the configuration carries none.
func (a *App) Verify(ctx context.Context) error {
	companyID, err := GetSimpleText(a.reader, "Company id", a.out)
	if err != nil {
		return a.report(err)
	}
	value, err := GetSimpleText(a.reader, "Cookie value", a.out)
	if err != nil {
		return a.report(err)
	}

	secret := a.config.SecretKey
	if secret == "" {
		b, err := GetSecret("Secret key", a.out)
		if err != nil {
			return a.report(err)
		}
		secret = string(b)
		clear(b)
	}

	codec, err := cookies.NewCodec(secret)
	if err != nil {
		return a.report(err)
	}

	id, err := codec.Verify(value, companyID)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Cookie is valid for session %s\n", id)
	return a.Show(ctx, id)
}

func (a *App) report(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintln(a.out, "Error: storage timed out")
		return err
	}
	fmt.Fprintln(a.out, "Error:", err.Error())
	return err
}
