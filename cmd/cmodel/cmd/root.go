package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abramin/cmodel/internal/config"
)

var (
	cfgFile    string
	projectDir string
	verbose    bool
	quiet      bool

	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cmodel",
	Short: "cmodel - Build a structured type model from C/C++ sources",
	Long: `cmodel parses C and C++ source trees without a compiler front end and
builds a model of files, types, functions, macros and globals.

Anonymous structs, unions and enums are given stable names, typedef chains
are resolved, and configurable rename/remove containers rewrite the model
before it is emitted as JSON and stored in .cmodel/index.db.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger()

		// index takes the project directory as its argument
		if cmd.Name() == "index" && len(args) > 0 {
			projectDir = args[0]
		}

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(projectDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func newLogger() *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "cmodel",
	})
	switch {
	case verbose:
		l.SetLevel(log.DebugLevel)
	case quiet:
		l.SetLevel(log.WarnLevel)
	}
	return l
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is cmodel.yaml in the project directory)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

func GetConfig() *config.Config {
	return cfg
}

// outputDir resolves the configured output directory against the project.
func outputDir() string {
	if filepath.IsAbs(cfg.OutputDir) {
		return cfg.OutputDir
	}
	return filepath.Join(projectDir, cfg.OutputDir)
}
