package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/tmscope/tokenize"
)

var initGrammars []string

// initCmd: tmscope init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		if err := initConfigurationFile(cfgFile, initGrammars); err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Configuration file created: %s\n", cfgFile)
	},
}

func init() {
	initCmd.Flags().StringSliceVar(&initGrammars, "grammar", nil, "Grammar to register, as ext=path (repeatable)")
}

func initConfigurationFile(configurationPath string, grammars []string) error {
	if configurationPath == "" {
		configurationPath = tokenize.DefaultConfigFile
	}

	config := tokenize.DefaultConfig()
	for _, g := range grammars {
		ext, path, ok := strings.Cut(g, "=")
		if !ok || ext == "" || path == "" {
			return fmt.Errorf("invalid grammar %q, want ext=path", g)
		}
		config.Grammars[ext] = path
	}
	return tokenize.WriteConfig(configurationPath, config)
}
