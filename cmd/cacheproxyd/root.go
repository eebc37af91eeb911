package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SiestaCat/dep-cache-proxy-server/version"
)

var showVersion bool

func init() {
	RootCmd.AddCommand(ServeCmd)
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
}

// RootCmd is the main command for the cacheproxyd binary.
var RootCmd = &cobra.Command{
	Use:   "cacheproxyd",
	Short: "`cacheproxyd` caches installed dependency trees for reproducible reuse",
	Long:  "`cacheproxyd` caches installed dependency trees for reproducible reuse.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.PrintVersion()
			return
		}
		// nolint:errcheck
		cmd.Usage()
	},
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
