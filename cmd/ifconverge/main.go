// ifconverge - Linux interface convergence tool
//
// Reads a desired-state manifest of interfaces (ethernet, bonding, vlan,
// loopback) and routes, compares it with what ip(8) and /sys/class/net
// report, and issues the commands that close the gap:
//   - Dry-run by default (preview changes, require -x to execute)
//   - Local host or a remote one over SSH (--host)
//   - Audit logging of every converged resource
//
// Examples:
//
//	ifconverge show                                  # Discovered interfaces
//	ifconverge show bond0 --json                     # One interface as JSON
//	ifconverge apply -f /etc/ifconverge/net.yaml     # Preview
//	ifconverge apply -f /etc/ifconverge/net.yaml -x  # Execute
//	ifconverge --host 192.0.2.5 --ssh-user root apply -f net.yaml -x
//	ifconverge destroy bond0.100 -x
//	ifconverge route show 0.0.0.0/0
package main

import (
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/ifconverge/pkg/audit"
	"github.com/newtron-network/ifconverge/pkg/cli"
	"github.com/newtron-network/ifconverge/pkg/host"
	"github.com/newtron-network/ifconverge/pkg/settings"
	"github.com/newtron-network/ifconverge/pkg/util"
	"github.com/newtron-network/ifconverge/pkg/version"
)

var (
	// Target flags
	hostAddr   string // --host
	sshUser    string
	sshKey     string
	knownHosts string
	askPass    bool

	// Global option flags
	verbose bool
	logFile string

	// Per-command flags shared through addWriteFlags/addOutputFlags
	executeMode bool
	jsonOutput  bool

	// Global state
	userSettings *settings.Settings
	logCloser    io.Closer
)

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "ifconverge",
	Short:             "Linux interface convergence tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `ifconverge converges Linux network interfaces and routes to the state
described in a YAML manifest.

Write commands preview changes by default. Use -x to execute.

  ifconverge [--host <addr>] apply -f <manifest> [-x]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set log level: quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Apply defaults from settings
		if sshUser == "" {
			sshUser = userSettings.SSHUser
		}
		if sshKey == "" {
			sshKey = userSettings.SSHKey
		}
		if knownHosts == "" {
			knownHosts = userSettings.KnownHosts
		}
		if logFile == "" {
			logFile = userSettings.LogFile
		}
		if logFile != "" {
			logCloser = util.SetLogFile(logFile)
		}

		if _, err := audit.Init(userSettings.GetAuditLog(), 10, 10); err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hostAddr, "host", "", "Remote host to converge over SSH (default: local machine)")
	rootCmd.PersistentFlags().StringVar(&sshUser, "ssh-user", "", "SSH user")
	rootCmd.PersistentFlags().StringVar(&sshKey, "ssh-key", "", "SSH private key file")
	rootCmd.PersistentFlags().StringVar(&knownHosts, "known-hosts", "", "known_hosts file for host key verification")
	rootCmd.PersistentFlags().BoolVar(&askPass, "ask-pass", false, "Prompt for the SSH password")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")

	for _, cmd := range []*cobra.Command{applyCmd, destroyCmd} {
		addWriteFlags(cmd)
	}
	for _, cmd := range []*cobra.Command{showCmd, applyCmd, destroyCmd, routeCmd, auditCmd} {
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Inspection:"},
		&cobra.Group{ID: "mutate", Title: "Convergence:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)
	for _, cmd := range []*cobra.Command{showCmd, routeCmd, classifyCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{applyCmd, destroyCmd} {
		cmd.GroupID = "mutate"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), "ifconverge")
	},
}

func printVersion(w io.Writer, tool string) {
	if version.Version == "dev" {
		fmt.Fprintf(w, "%s dev build (no version info)\n", tool)
	} else {
		fmt.Fprintf(w, "%s %s (%s)\n", tool, version.Version, version.GitCommit)
	}
}

// ============================================================================
// Target Helpers
// ============================================================================

// openHost connects to the target selected by --host, or the local machine.
func openHost() (*host.Host, error) {
	if hostAddr == "" {
		return host.Local(), nil
	}

	cfg := host.SSHConfig{
		Addr:           hostAddr,
		User:           sshUser,
		KeyFile:        sshKey,
		KnownHostsFile: knownHosts,
	}
	if cfg.User == "" {
		cfg.User = currentUser()
	}
	if askPass {
		fmt.Fprintf(os.Stderr, "%s@%s password: ", cfg.User, hostAddr)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		cfg.Password = string(pw)
	}

	h, err := host.DialSSH(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", hostAddr, err)
	}
	return h, nil
}

// targetName labels change sets and audit events.
func targetName() string {
	if hostAddr != "" {
		return hostAddr
	}
	name, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return name
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// ============================================================================
// Flag Helpers
// ============================================================================

// isSettingsOrHelp checks whether cmd (or any ancestor) needs no settings
// or audit log.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings", "classify":
			return true
		}
	}
	return false
}

// addWriteFlags registers -x/--execute as a local flag.
func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
}

// addOutputFlags registers --json as a local flag.
// For noun-group parent commands, this is a PersistentFlag so subcommands inherit.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&jsonOutput, "json", false, "JSON output")
}

// printDryRunNotice reminds the user nothing was applied.
func printDryRunNotice(w io.Writer) {
	if !executeMode {
		fmt.Fprintln(w, "\n"+cli.Yellow("DRY-RUN: No changes applied. Use -x to execute."))
	}
}
