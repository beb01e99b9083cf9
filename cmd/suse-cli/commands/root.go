package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"suseapi/lib/configutil"
	"suseapi/lib/scrapers/bugzilla"
	"suseapi/lib/sessionstore"
)

var rootCmd = &cobra.Command{
	Use:   "suse-cli",
	Short: "suse-cli queries and updates the SUSE bugzilla over its web interface.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Config is read from suseapi.json5, searched upwards from the working
// directory (a .local variant overrides it).
type Config struct {
	User     string `json:"user"`
	Password string `json:"password"`
	BaseUrl  string `json:"base_url"`
	// Transport may be "cloudflare" to enable the bypass roundtripper.
	Transport string `json:"transport"`
	Readonly  bool   `json:"readonly"`
	// SessionFile is a sqlite path for cookie persistence between runs.
	SessionFile string `json:"session_file"`
}

func newClient(ctx context.Context) (*bugzilla.Client, error) {
	config, err := configutil.ReadRecursively[Config]("suseapi.json5")
	if err != nil {
		return nil, err
	}

	var store sessionstore.Store
	if config.SessionFile != "" {
		store, err = sessionstore.NewSqlite(config.SessionFile, time.Hour*8)
		if err != nil {
			return nil, err
		}
	}

	return bugzilla.NewClient(ctx, bugzilla.ClientOptions{
		User:          config.User,
		Password:      config.Password,
		BaseURL:       config.BaseUrl,
		ForceReadonly: config.Readonly,
		Transport:     bugzilla.Transport(config.Transport),
		Store:         store,
	})
}
