// Command tcal is a diagnostic CLI over the Trajectory Cache & Access
// Layer: a single persistent cobra root with subcommands for opening a
// topology/trajectory pair and driving the Frame Cache directly.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "tcal",
	Short: "Inspect and drive a TCAL trajectory cache from the command line",
	Long:  "tcal opens a topology/trajectory pair through the Format Registry and exercises the Frame Cache and Trajectory Façade directly, for debugging and benchmarking without a GUI attached.",
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			log.SetLevel(logrus.DebugLevel)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
