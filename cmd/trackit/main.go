// Command trackit polls an IMAP mailbox for package-tracking numbers.
//
// It scans new messages against vendor-defined pattern rules, keeps its
// progress and match cache in a local SQLite database, and optionally
// forwards each new tracking number to a webhook.
//
//	trackit -config ~/.config/trackit/config.yaml
//	trackit -once            # run a single scan cycle and exit
//	trackit -set-password    # store the IMAP password in the OS keyring
//
// While running, SIGUSR1 triggers an immediate rescan; requests arriving
// mid-cycle are coalesced into one follow-up cycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"go.uber.org/zap"

	"github.com/nhle/trackit/internal/credential"
	"github.com/nhle/trackit/internal/forward"
	"github.com/nhle/trackit/internal/mailbox"
	"github.com/nhle/trackit/internal/model"
	"github.com/nhle/trackit/internal/scan"
	"github.com/nhle/trackit/internal/store"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the configuration file")
	once := flag.Bool("once", false, "run a single scan cycle and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	setPassword := flag.Bool("set-password", false, "prompt for the IMAP password, store it in the OS keyring, and exit")
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "initializing logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Fatalw("loading configuration failed", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	if *setPassword {
		if err := storePassword(cfg.IMAP.Username); err != nil {
			log.Fatalw("storing password failed", "error", err)
		}
		log.Infow("password stored in keyring", "username", cfg.IMAP.Username)
		return
	}

	if cfg.IMAP.Password == "" {
		password, err := credential.Get(passwordKey(cfg.IMAP.Username))
		if err != nil {
			log.Fatalw("no password in config and keyring lookup failed", "error", err)
		}
		cfg.IMAP.Password = password
	}

	rules, dropped, err := model.LoadVendorRules(cfg)
	if err != nil {
		log.Fatalw("loading vendor rules failed", "error", err)
	}
	for _, name := range dropped {
		log.Warnw("vendor rule has no regex and can never match, dropped", "vendor", name)
	}
	if len(rules) == 0 {
		log.Fatalw("no usable vendor rules configured")
	}
	log.Infow("vendor rules loaded", "count", len(rules))

	st, err := store.NewSQLiteStore(cfg.StateDB)
	if err != nil {
		log.Fatalw("opening state database failed", "path", cfg.StateDB, "error", err)
	}
	defer st.Close()

	gw := mailbox.New(mailbox.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Security: cfg.IMAP.Security,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		Mailbox:  cfg.IMAP.Mailbox,
	})

	var fwd scan.Forwarder
	if cfg.Forward.URL != "" {
		fwd = forward.NewWebhook(cfg.Forward.URL, cfg.Forward.Data)
		log.Infow("forwarding enabled", "url", cfg.Forward.URL)
	}

	scanner := scan.New(gw, st, fwd, rules, scan.Options{
		AccountID:  cfg.AccountID(),
		WindowDays: cfg.Scan.WindowDays,
		UnseenOnly: cfg.Scan.UnseenOnly,
		MaxMatches: cfg.Scan.MaxMatches,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := scanner.RunCycle(ctx); err != nil {
			os.Exit(1)
		}
		status := scanner.Status()
		log.Infow("status",
			"watermark", status.Watermark,
			"cached_matches", status.CachedMatches,
			"last_success", status.LastSuccess)
		return
	}

	poller := scan.NewPoller(scanner, cfg.Interval(), log)

	rescanCh := make(chan os.Signal, 1)
	signal.Notify(rescanCh, syscall.SIGUSR1)
	go func() {
		for range rescanCh {
			poller.Rescan()
		}
	}()

	log.Infow("trackit started",
		"account", cfg.AccountID(),
		"interval", cfg.Interval(),
		"window_days", cfg.Scan.WindowDays)
	poller.Run(ctx)
	log.Infow("trackit stopped")
}

// newLogger builds the process logger.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// storePassword prompts on the terminal and writes the password to the OS
// keyring.
func storePassword(username string) error {
	fmt.Fprintf(os.Stderr, "IMAP password for %s: ", username)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	return credential.Set(passwordKey(username), string(password))
}

// passwordKey is the keyring key for an account's IMAP password.
func passwordKey(username string) string {
	return "imap:" + username
}
