// Command console is the operator terminal for the marketplace portals: it renders
// list views over any record collection and walks users through the form wizards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"marketplace/internal/client"
	"marketplace/internal/config"
	"marketplace/internal/logger"
	"marketplace/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app carries what every subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *session.Provider
	client  *client.Client
	in      io.Reader
	out     io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"list":   {"list [flags] <resource>", runList},
	"delete": {"delete [-yes] <resource> <id>", runDelete},
	"login":  {"login -email <email> [-password <password>]", runLogin},
	"logout": {"logout", runLogout},
	"whoami": {"whoami", runWhoami},
	"wizard": {"wizard [-def <name> | -file <path>] [-edit <resource>/<id>]", runWizard},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: console <command> [arguments]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage(os.Stderr)
		os.Exit(2)
	}

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Log.Level, "stderr")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.ValidateConsole(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	store, closeStore := newSessionStore(cfg, log)
	defer closeStore()

	provider := session.NewProvider(store, log)
	c, err := client.New(cfg.Backend.BaseURL, provider, log, client.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		log.Fatal("Failed to create backend client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: log, session: provider, client: c, in: os.Stdin, out: os.Stdout}
	if err := cmd.run(ctx, a, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		log.Debug("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

// newSessionStore keeps the login in Redis between runs, or in memory for a single run.
func newSessionStore(cfg *config.Config, log *zap.Logger) (session.Store, func()) {
	if cfg.Session.Store != "redis" {
		return session.NewMemoryStore(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Debug("Using redis session store", zap.String("addr", cfg.Redis.Addr()), zap.String("key", cfg.Session.Key))
	return session.NewRedisStore(rdb, cfg.Session.Key, 0), func() { _ = rdb.Close() }
}
