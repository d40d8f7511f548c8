package graphfuse

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "graphfuse",
		Short: "GraphFuse: knowledge graph consolidation",
		Long: `GraphFuse turns the intermediate files of an entity extraction run into a
knowledge graph. It extracts relations among the entities of every chunk,
links body entities to the references they cite, removes duplicate relations,
fuses entity records that share an identity and imports the result into Neo4j.

Every stage reads the files written by the stage before it, so stages can be
run one at a time or all together with "graphfuse run".`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.graphfuse.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("data-dir", "", "root directory of the intermediate files")
	rootCmd.PersistentFlags().Int("concurrency", 0, "oracle calls in flight per stage")
	rootCmd.PersistentFlags().String("db-driver", "", "graph store driver (neo4j, memory)")
	rootCmd.PersistentFlags().String("db-uri", "", "graph store URI")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("paths.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("pipeline.concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	viper.BindPFlag("database.uri", rootCmd.PersistentFlags().Lookup("db-uri"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".graphfuse" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".graphfuse")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
