package main

import (
	"fmt"
	"os"

	"github.com/powervm-tools/hvcsadmin/internal/config"
	"github.com/powervm-tools/hvcsadmin/internal/db"
	"github.com/powervm-tools/hvcsadmin/internal/hvcs"
	"github.com/powervm-tools/hvcsadmin/internal/platform"
	"github.com/powervm-tools/hvcsadmin/internal/sysfs"
	"github.com/powervm-tools/hvcsadmin/internal/verbose"
	"github.com/powervm-tools/hvcsadmin/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	noisy   int
)

var rootCmd = &cobra.Command{
	Use:   "hvcsadmin",
	Short: "vty-server adapter management for pSeries LPARs",
	Long: `hvcsadmin manages hvcs vty-server adapter connections through the
vio bus sysfs interface. It can report adapter status, map device nodes
and partition consoles to adapters, disconnect one or all adapters, and
trigger a driver rescan of partner information.`,
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "hvcsadmin: %v\n", err)
	os.Exit(1)
}

// setup loads the config, enforces the platform gate and assembles an
// Admin against the live system. The journal is best-effort: failing to
// open it never blocks an operation.
func setup() *hvcs.Admin {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fatal(fmt.Errorf("loading config: %w", err))
	}
	if cfg.CheckPlatform() {
		if err := platform.RequireLPAR(); err != nil {
			fatal(err)
		}
	}
	log := verbose.New(noisy)
	log.Tracef("executing in verbose mode\n")

	journal, err := db.Open(cfg.Database)
	if err != nil {
		log.Tracef("journal unavailable: %v\n", err)
		journal = nil
	}
	return hvcs.New(cfg, sysfs.Host{}, log, journal)
}

// preflight checks the systool and driver preconditions shared by every
// adapter operation.
func preflight(admin *hvcs.Admin) {
	if err := admin.CheckSystool(); err != nil {
		fatal(err)
	}
	if err := admin.CheckDriver(); err != nil {
		fatal(err)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List every vty-server adapter with its device node and connection state",
	Run: func(cmd *cobra.Command, args []string) {
		admin := setup()
		preflight(admin)
		if err := admin.Status(); err != nil {
			fatal(err)
		}
	},
}

var closeCmd = &cobra.Command{
	Use:   "close [/dev/hvcs*]",
	Short: "Close vty-server adapter connections",
	Long: `Close the vty-server adapter connection for the given device node,
or every connected adapter with --all. Bulk closure is best-effort: an
adapter whose device node is held open by an application fails to close
without stopping the sweep.`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			fmt.Fprintln(os.Stderr, "hvcsadmin: close takes a device node or --all")
			os.Exit(1)
		}
		admin := setup()
		preflight(admin)

		if all {
			results, err := admin.CloseAll()
			if err != nil {
				fatal(err)
			}
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(os.Stderr, "hvcsadmin: failed to close vty-server@%s: %v\n", r.Device, r.Err)
				}
			}
			return
		}
		if err := admin.Close(args[0]); err != nil {
			fatal(err)
		}
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console <partition>",
	Short: "Show which device node provides the console for a partition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		admin := setup()
		preflight(admin)
		if err := admin.QueryConsole(args[0]); err != nil {
			fatal(err)
		}
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node </dev/hvcs*>",
	Short: "Show which vty-server adapter is mapped to a device node",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		admin := setup()
		preflight(admin)
		if err := admin.QueryNode(args[0]); err != nil {
			fatal(err)
		}
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Direct the driver to rescan partner info for all adapters",
	Run: func(cmd *cobra.Command, args []string) {
		admin := setup()
		preflight(admin)
		if err := admin.Rescan(); err != nil {
			fatal(err)
		}
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recently journaled adapter operations",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fatal(fmt.Errorf("loading config: %w", err))
		}
		journal, err := db.Open(cfg.Database)
		if err != nil {
			fatal(fmt.Errorf("opening journal: %w", err))
		}
		defer journal.Close()

		events, err := journal.RecentEvents(limit)
		if err != nil {
			fatal(err)
		}
		for _, e := range events {
			line := fmt.Sprintf("%s %-9s %s %s",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Operation, e.Device, e.Outcome)
			if e.Detail != "" {
				line += " (" + e.Detail + ")"
			}
			fmt.Println(line)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hvcsadmin version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hvcsadmin version %s\n", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/hvcsadmin/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&noisy, "noisy", "n", "stackable verbosity: -n for status output, -nn for trace")

	closeCmd.Flags().Bool("all", false, "close all open vty-server adapter connections")
	eventsCmd.Flags().Int("limit", 20, "number of journal entries to show")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(rescanCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
