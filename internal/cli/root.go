package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/centraunit/dikernel"
)

var (
	// Global flags
	configFile string
	envFile    string
	debug      bool

	cfg *dikernel.Config
)

var rootCmd = &cobra.Command{
	Use:   "kernelctl",
	Short: "kernelctl - inspect and exercise a dikernel container",
	Long: `kernelctl loads a dikernel configuration and runs tools against a kernel
built from it: print the effective configuration, benchmark resolution
throughput and serve the component diagnostics endpoint.`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := dikernel.LoadConfig(dikernel.ConfigPaths{File: configFile, EnvFile: envFile})
		if err != nil {
			return err
		}
		if debug {
			loaded.Log.Level = "debug"
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func newKernel() *dikernel.Kernel {
	logger := dikernel.NewLogger(cfg.Log, os.Stderr)
	return dikernel.New(dikernel.WithConfig(*cfg), dikernel.WithLogger(logger))
}
