package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pairlink/internal/app"
)

var (
	cfgFile    string
	home       string
	passphrase string
	relayKind  string
	relayURL   string
	logLevel   string

	cfg *app.Config
)

// Execute runs the CLI until it completes or ctx is cancelled.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:          "pairlink",
		Short:        "Pair with a peer over a relay and negotiate scoped sessions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := app.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			for key, name := range map[string]string{
				"home":       "home",
				"passphrase": "passphrase",
				"relay":      "relay",
				"relay_url":  "relay-url",
				"log_level":  "log-level",
			} {
				if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
					return err
				}
			}
			cfg, err = app.ParseConfig(v)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.StringVar(&home, "home", "", "state dir (default ~/.pairlink)")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the keychain")
	pf.StringVar(&relayKind, "relay", "http", "relay transport: http or libp2p")
	pf.StringVar(&relayURL, "relay-url", "http://127.0.0.1:8080", "http relay base URL")
	pf.StringVar(&logLevel, "log-level", "info", "log level")

	root.AddCommand(
		createCmd(),
		activateCmd(),
		pairingsCmd(),
		deleteCmd(),
		pingCmd(),
		proposeCmd(),
		listenCmd(),
		sessionsCmd(),
		disconnectCmd(),
	)
	return root.ExecuteContext(ctx)
}

// openApp builds and initializes the engines for role.
func openApp(ctx context.Context, role app.Role) (*app.App, error) {
	w, err := app.NewWire(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, w, role)
}

// openWire builds the stores without starting any engine.
func openWire() (*app.Wire, error) {
	return app.NewWire(cfg)
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		fmt.Println("warning: relay stop:", err)
	}
}

func expiresIn(unix int64) string {
	return time.Until(time.Unix(unix, 0)).Round(time.Minute).String()
}
