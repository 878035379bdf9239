package main

import (
	"fmt"
	"os"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/oxygene76/hpgravity/pkg/utils"
)

const (
	appName = "hpgravity"
	version = "v0.1.0"
)

var (
	// Configuration
	cfgFile  string
	logLevel string
	logJSON  bool

	scenario *utils.Config
	logger   log.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "High-precision N-body gravity simulator",
	Long: `hpgravity advances a set of bodies under mutual Newtonian gravity with
arbitrary-precision arithmetic, so that bodies separated by astronomical
distances keep sub-millimetre positional detail.

Scenarios are YAML files listing bodies, their masses and radii, and either
an explicit state or Keplerian elements relative to another body.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "version", "help":
			return nil
		}
		if err := initConfig(cmd); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		return nil
	},
}

// initCmd writes the default scenario
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default Sun, Earth and Moon scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path := cfgFile
		if path == "" {
			var err error
			if path, err = utils.GetConfigPath(); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := utils.SaveConfig(utils.DefaultConfig(), path); err != nil {
			return err
		}

		fmt.Printf("Scenario written to: %s\n", path)
		fmt.Println("\nNext steps:")
		fmt.Println("1. Edit bodies, precision and cadence in the scenario file")
		fmt.Printf("2. Check it: %s validate --config %s\n", appName, path)
		fmt.Printf("3. Run it:   %s run --config %s --steps 1000\n", appName, path)
		return nil
	},
}

// validateCmd loads and configures a scenario without stepping it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario and print its bodies",
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, err := scenario.BuildSystem(logger)
		if err != nil {
			return fmt.Errorf("scenario rejected: %w", err)
		}

		frame, ok := sys.ReferenceFrame()
		if !ok {
			frame = "(none)"
		}
		fmt.Printf("Precision:       %d bits\n", sys.Context().Precision())
		fmt.Printf("Integrator:      %s\n", sys.Integrator().Name())
		fmt.Printf("Reference frame: %s (%s)\n", frame, sys.FrameMode())
		fmt.Printf("Bodies:          %d\n\n", len(sys.IDs()))

		fmt.Printf("%-12s %-14s %-14s %-14s\n", "ID", "MASS", "RADIUS", "ORBIT RADIUS")
		for _, id := range sys.IDs() {
			s, err := sys.PhysicalSummary(id)
			if err != nil {
				return err
			}
			fmt.Printf("%-12s %-14s %-14s %-14.4g\n", s.ID, s.Mass.Text('g', 6), s.EstimatedRadius.Text('g', 6), s.OrbitRadius())
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", appName, version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "scenario file (default is $HOME/.hpgravity/scenario.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the scenario log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(driftCmd)

	initCmd.Flags().Bool("force", false, "overwrite an existing scenario")
}

func initConfig(cmd *cobra.Command) error {
	cfg, err := utils.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = logJSON
	}

	l, err := utils.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	scenario = cfg
	logger = l.With("module", appName)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
