package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/swarmcoord/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "swarmcoord",
	Short: "Multi-agent file-claim coordinator",
	Long: `Swarmcoord coordinates a swarm of coding agents working on a shared
codebase. Agents declare the files they intend to touch, conflicts are
resolved into an ordered batch schedule, and an exclusive claim registry
with a full audit trail keeps two agents from editing the same file at
the same time.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is "+config.ConfigFile()+")")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/swarmcoord")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SWARMCOORD")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SWARMCOORD_SESSION_REMEDIATION for session.remediation
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
