package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foodscope/foodscope/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `   __                _
  / _| ___   ___   __| |___  ___ ___  _ __   ___
 | |_ / _ \ / _ \ / _` + "`" + ` / __|/ __/ _ \| '_ \ / _ \
 |  _| (_) | (_) | (_| \__ \ (_| (_) | |_) |  __/
 |_|  \___/ \___/ \__,_|___/\___\___/| .__/ \___|
                                     |_|
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "foodscope",
	Short: "A multi-source food product resolver with local caching.",
	Long: LOGO + `foodscope looks up food products by barcode or name across FatSecret and
Open Food Facts, normalizes their nutrition data to a per-100g basis, computes
a Nutri-grade, and caches everything in a local sqlite database.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.foodscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("dbpath", "", "foodscope.sqlite", "Path to SQLite cache file")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".foodscope")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.foodscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("fatsecret.client_id", "")
	viper.SetDefault("fatsecret.client_secret", "")
	viper.SetDefault("fatsecret.premier", false)
	viper.SetDefault("openfoodfacts.base_url", "")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
