// OneHUD Registrar - device registration for OneHUD boards.
//
// onehud-register reads the factory MAC address of an ESP32 board attached
// over USB serial, pairs it with the owner's email and delivers the pair to
// the support chat. It runs either as a one-shot command (register) or as a
// small local web panel (serve).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.date=$(date +%s)"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = ""        // Build time, Unix seconds or RFC 3339
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// configEnv overrides defaultConfigPath
	configEnv = "ONEHUD_CONFIG"
)

func main() {
	// Cancel on Ctrl+C and SIGTERM so a registration in flight releases
	// the serial port before exit.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string

	// explicit is set when the path came from --config or ONEHUD_CONFIG,
	// in which case a missing file is an error.
	explicit bool
}

// newRootCmd builds the command tree. Streams are parameters so tests can
// capture output.
func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "onehud-register",
		Short: "Register OneHUD devices by MAC address",
		Long: `onehud-register reads the MAC address of a OneHUD board connected over
USB serial and sends it, together with the owner's email, to the OneHUD
support channel.

Credentials are read from the environment (ONEHUD_NOTIFIER_BOT_TOKEN,
ONEHUD_NOTIFIER_CHAT_ID) or from the configuration file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          printUsage,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if f := cmd.Flag("config"); f != nil && f.Changed {
				opts.explicit = true
			}
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	configPath, fromEnv := getConfigPath()
	opts.explicit = fromEnv
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", configPath,
		"path to the YAML configuration file (env "+configEnv+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRegisterCmd(opts),
		newServeCmd(opts),
		newPortsCmd(opts),
		newReceiptsCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// getConfigPath returns the configuration file path and whether it came
// from ONEHUD_CONFIG.
func getConfigPath() (string, bool) {
	if path := os.Getenv(configEnv); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// printUsage prints usage without error, for commands that only group
// subcommands.
func printUsage(c *cobra.Command, _ []string) error {
	return c.Usage()
}

// must panics on errors that can only come from a programming mistake,
// such as marking a flag required before it is defined.
func must(err error) {
	if err != nil {
		panic("PROGRAMMING ERROR: " + err.Error())
	}
}
