// Command auth manages the API keys the gateway accepts.
//
// Usage:
//
//	auth [-config file] [-store sqlite|postgres] [-sqlite path] create -name app [-rate-limit 100] [-admin] [-expires-in 720h]
//	auth [-config file] revoke -id <key id>
//	auth [-config file] list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth: %v\n", err)
	}
	os.Exit(apperrors.ExitCode(err))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("auth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	configPath := fs.String("config", "", "path to config file")
	store := fs.String("store", "", "key store: sqlite or postgres (overrides gateway.keyStore)")
	sqlitePath := fs.String("sqlite", "", "sqlite database path (overrides sqlite.path)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return fmt.Errorf("%w: missing command", apperrors.ErrInvalidInput)
	}
	logger.SetupWriter(stderr, "warn", "text")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *store != "" {
		cfg.Gateway.KeyStore = *store
	}
	if *sqlitePath != "" {
		cfg.SQLite.Path = *sqlitePath
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "create", "revoke", "list":
	default:
		usage(stderr)
		return fmt.Errorf("%w: unknown command %q", apperrors.ErrInvalidInput, cmd)
	}

	db, closeDB, err := database.Open(ctx, cfg, cfg.Gateway.KeyStore)
	if err != nil {
		return err
	}
	defer closeDB()
	keys, err := apikey.NewStore(db, cfg.Gateway.KeyStore)
	if err != nil {
		return err
	}
	if err := keys.EnsureSchema(ctx); err != nil {
		return err
	}

	switch cmd {
	case "create":
		return cmdCreate(ctx, keys, rest, stdout, stderr)
	case "revoke":
		return cmdRevoke(ctx, keys, rest, stdout, stderr)
	default:
		return cmdList(ctx, keys, stdout)
	}
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}

func cmdCreate(ctx context.Context, keys *apikey.Store, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	name := fs.String("name", "", "name for the key")
	rateLimit := fs.Int("rate-limit", 100, "requests per minute, 0 for unlimited")
	admin := fs.Bool("admin", false, "allow the key to manage other keys")
	expiresIn := fs.Duration("expires-in", 0, "lifetime of the key, e.g. 720h; 0 never expires")
	if err := parse(fs, args); err != nil {
		return err
	}
	nk := apikey.NewKey{Name: *name, RateLimit: *rateLimit, Admin: *admin}
	if *expiresIn < 0 {
		return fmt.Errorf("%w: negative -expires-in", apperrors.ErrInvalidInput)
	}
	if *expiresIn > 0 {
		t := time.Now().Add(*expiresIn).UTC().Truncate(time.Second)
		nk.ExpiresAt = &t
	}
	raw, info, err := keys.Create(ctx, nk)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "API key created. It is shown only once.")
	fmt.Fprintf(stdout, "  key:        %s\n", raw)
	fmt.Fprintf(stdout, "  id:         %s\n", info.ID)
	fmt.Fprintf(stdout, "  name:       %s\n", info.Name)
	fmt.Fprintf(stdout, "  rate limit: %s\n", limitString(info.RateLimit))
	fmt.Fprintf(stdout, "  admin:      %t\n", info.Admin)
	fmt.Fprintf(stdout, "  expires:    %s\n", expiryString(info.ExpiresAt))
	return nil
}

func cmdRevoke(ctx context.Context, keys *apikey.Store, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("id", "", "id of the key to revoke")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", apperrors.ErrInvalidInput)
	}
	if err := keys.Revoke(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "API key %s revoked.\n", *id)
	return nil
}

func cmdList(ctx context.Context, keys *apikey.Store, stdout io.Writer) error {
	list, err := keys.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(stdout, "No active API keys.")
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRATE LIMIT\tADMIN\tEXPIRES")
	for _, k := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", k.ID, k.Name, limitString(k.RateLimit), k.Admin, expiryString(k.ExpiresAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n%d active key(s)\n", len(list))
	return nil
}

func limitString(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d/min", n)
}

func expiryString(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: auth [-config file] [-store sqlite|postgres] [-sqlite path] <command> [flags]

Commands:
  create   create a key: -name app [-rate-limit 100] [-admin] [-expires-in 720h]
  revoke   deactivate a key: -id <key id>
  list     list active keys
`)
}
