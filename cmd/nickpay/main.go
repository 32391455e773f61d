package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IlyasAtabaev731/nickpay/internal/api"
	"github.com/IlyasAtabaev731/nickpay/internal/config"
	"github.com/IlyasAtabaev731/nickpay/internal/feed"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger/sl"
	"github.com/IlyasAtabaev731/nickpay/internal/session"
	"github.com/IlyasAtabaev731/nickpay/internal/storage/sqlite"
	"github.com/IlyasAtabaev731/nickpay/internal/wallet"
)

const usage = `Usage: nickpay [-config file] <command> [flags]

Commands:
  signup    create an account and sign in
  login     sign in
  logout    sign out and forget the stored session
  whoami    show the signed-in user (-share prints an invite message)
  balance   show the current balance
  feed      list recent transactions (-pages N)
  show      show one transaction by id
  send      send money (-to nickname -amount value [-description text])
`

var errUsage = errors.New("unknown command")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *sqlite.Storage
	session *session.Manager
	wallet  *wallet.Service
	feed    *feed.Loader

	in  *prompter
	out io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("nickpay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	configPath := fs.String("config", "", "path to config file (defaults to $CONFIG_PATH)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger.Setup(cfg.Env, stderr), stdin, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	a.session.Restore(ctx)

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "signup":
		return a.signup(ctx, cmdArgs)
	case "login":
		return a.login(ctx, cmdArgs)
	case "logout":
		return a.logout(ctx, cmdArgs)
	case "whoami":
		return a.whoami(cmdArgs)
	case "balance":
		return a.balance(ctx, cmdArgs)
	case "feed":
		return a.showFeed(ctx, cmdArgs)
	case "show":
		return a.show(ctx, cmdArgs)
	case "send":
		return a.send(ctx, cmdArgs)
	default:
		fs.Usage()
		return fmt.Errorf("%w: %s", errUsage, cmd)
	}
}

func newApp(cfg *config.Config, log *slog.Logger, stdin io.Reader, stdout io.Writer) (*app, error) {
	key, err := sqlite.LoadOrCreateKey(cfg.Store.KeyPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Store.Path, key)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.API, log)

	var opts []session.Option
	if cfg.DevAuth.Enabled {
		log.Warn("dev auth is enabled, sign-in will not contact the API")
		opts = append(opts, session.WithDevAuth(cfg.DevAuth.Secret))
	}
	sessions := session.New(client, store, log, opts...)

	w := wallet.New(client, sessions, log)
	loader := feed.New(client, sessions, log,
		feed.WithPageSize(cfg.Feed.PageSize),
		feed.WithBalance(w),
	)

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		session: sessions,
		wallet:  w,
		feed:    loader,
		in:      newPrompter(stdin, stdout),
		out:     stdout,
	}, nil
}

func (a *app) close() {
	if err := a.store.Stop(); err != nil {
		a.log.Error("failed to close store", sl.Err(err))
	}
}
