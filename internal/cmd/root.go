package cmd

import (
	"fmt"

	"github.com/jnieblas/openai-response-api-demo/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   string
	BuildTime string
	cfgFile   string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "responses-demo",
	Short: "OpenAI Responses API demo server and CLI",
	Long: `responses-demo wraps the OpenAI Responses API with format validation,
retry handling and response normalization. It serves a small web UI and JSON
API by default, and can generate from the command line.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().String("data-dir", "./data", "data directory")
	rootCmd.PersistentFlags().String("log-dir", "./logs", "log directory")
	rootCmd.PersistentFlags().String("base-url", "https://api.openai.com/v1", "Responses API base URL")
	rootCmd.PersistentFlags().Int("max-retries", 3, "retries after the first attempt")

	// serve flags also work on the bare command
	addServeFlags(rootCmd)

	viper.BindPFlag("storage.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("storage.logs_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("openai.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag("openai.max_retries", rootCmd.PersistentFlags().Lookup("max-retries"))
}

func initConfig() {
	// a missing .env is fine; real environment variables still win
	if err := godotenv.Load(envFile); err == nil {
		fmt.Println("Loaded environment from", envFile)
	}

	config.Setup(cfgFile)

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile == "" {
			viper.SetConfigFile("./config.yaml")
		}
	} else {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
