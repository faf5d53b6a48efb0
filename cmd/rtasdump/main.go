package main

import (
	"fmt"
	"io"
	"os"

	"github.com/powervm-tools/hvcsadmin/internal/config"
	"github.com/powervm-tools/hvcsadmin/internal/platform"
	"github.com/powervm-tools/hvcsadmin/internal/rtas"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	debug    bool
	filename string
	eventNo  int
	width    int
	verboseN int
)

var rootCmd = &cobra.Command{
	Use:   "rtasdump",
	Short: "Dump the contents of RTAS events",
	Long: `rtasdump reads RTAS events from stdin (or a file with -f), frames
each one, and pipes it to rtas_event_decode for decoding. The decoder
path comes from the config file or the RTAS_EVENT_DECODE environment
variable.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rtasdump: %v\n", err)
			os.Exit(1)
		}
		if cfg.CheckPlatform() {
			if err := platform.RequirePSeries(); err != nil {
				fmt.Fprintf(os.Stderr, "rtasdump: %v\n", err)
				os.Exit(1)
			}
		}

		var in io.Reader = os.Stdin
		if filename != "" {
			f, err := os.Open(filename)
			if err != nil {
				fmt.Fprintf(os.Stderr, "rtasdump: file %s does not exist\n", filename)
				os.Exit(1)
			}
			defer f.Close()
			in = f
		}

		opts := rtas.Options{
			Debug:   debug,
			Verbose: verboseN,
			Width:   width,
			EventNo: eventNo,
			Decoder: cfg.Decoder,
		}
		if err := rtas.Dump(in, os.Stdout, os.Stderr, opts); err != nil {
			fmt.Fprintf(os.Stderr, "rtasdump: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is /etc/hvcsadmin/config.yaml)")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "debug flag, passed through to rtas_event_decode")
	rootCmd.Flags().StringVarP(&filename, "file", "f", "", "dump the RTAS events from FILE instead of stdin")
	rootCmd.Flags().IntVarP(&eventNo, "number", "n", -1, "only dump the RTAS event with this number")
	rootCmd.Flags().IntVarP(&width, "width", "w", 0, "set the output character width")
	rootCmd.Flags().CountVarP(&verboseN, "verbose", "v", "dump the entire RTAS event, not just the header")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
