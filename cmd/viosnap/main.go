package main

import (
	"fmt"
	"os"

	"github.com/powervm-tools/hvcsadmin/internal/config"
	"github.com/powervm-tools/hvcsadmin/internal/platform"
	"github.com/powervm-tools/hvcsadmin/internal/snap"
	"github.com/powervm-tools/hvcsadmin/internal/sysfs"
	"github.com/powervm-tools/hvcsadmin/internal/verbose"
	"github.com/spf13/cobra"
)

// Exit codes: 0 snapshot captured, 1 invalid command line, 2 fatal error.

var (
	cfgFile   string
	allData   bool
	stageDir  string
	output    string
	timestamp bool
	verboseF  bool
)

var rootCmd = &cobra.Command{
	Use:   "viosnap",
	Short: "Snapshot system configuration for support",
	Long: `viosnap collects platform configuration files and command output
into a staging directory and packs them into a tar archive for support.
The detailed manifest (-a) additionally captures device-tree and firmware
inventory data.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "viosnap: %v\n", err)
			os.Exit(2)
		}
		if cfg.CheckPlatform() {
			if err := platform.RequireLPAR(); err != nil {
				fmt.Fprintf(os.Stderr, "viosnap: %v\n", err)
				os.Exit(1)
			}
			if err := platform.CheckDistro(); err != nil {
				fmt.Fprintf(os.Stderr, "viosnap: %v\n", err)
				os.Exit(1)
			}
		}

		opts := snap.Options{
			All:       allData,
			Dir:       cfg.Snapshot.Dir,
			Output:    cfg.Snapshot.Output,
			Timestamp: timestamp,
		}
		if stageDir != "" {
			opts.Dir = stageDir
		}
		if output != "" {
			opts.Output = output
		}

		level := verbose.Quiet
		if verboseF {
			level = verbose.Status
		}
		archive, err := snap.Run(sysfs.Host{}, opts, verbose.New(level))
		if err != nil {
			fmt.Fprintf(os.Stderr, "viosnap: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("snap data saved to %s\n", archive)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is /etc/hvcsadmin/config.yaml)")
	rootCmd.Flags().BoolVarP(&allData, "all", "a", false, "collect detailed information (more files and output)")
	rootCmd.Flags().StringVarP(&stageDir, "dir", "d", "", "directory where files and output are collected (default /tmp/ibmsupt)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output file, .tar required, .gz optional (default snap.tar.gz)")
	rootCmd.Flags().BoolVarP(&timestamp, "timestamp", "t", false, "add hostname and timestamp to the output filename")
	rootCmd.Flags().BoolVarP(&verboseF, "verbose", "v", false, "verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
