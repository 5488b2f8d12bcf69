package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spigell/skill-mapper/internal/storage"
	"github.com/spigell/skill-mapper/internal/taxonomy/cache"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "skill-mapper"
	envPrefix = "SKILL_MAPPER"
)

type Config struct {
	AI        *AIConfig        `mapstructure:"ai"`
	Taxonomy  *TaxonomyConfig  `mapstructure:"taxonomy"`
	Framework *FrameworkConfig `mapstructure:"framework"`
	Storage   *storage.Config  `mapstructure:"storage"`
	Interview *InterviewConfig `mapstructure:"interview"`
	Metrics   *MetricsConfig   `mapstructure:"metrics"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api-key" json:"-"`
	APIKeyFile   string        `mapstructure:"api-key-file"`
	MaxRetries   int           `mapstructure:"max-retries"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type TaxonomyConfig struct {
	Provider  string        `mapstructure:"provider"`
	URL       string        `mapstructure:"url"`
	Language  string        `mapstructure:"language"`
	TopK      int           `mapstructure:"top-k"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate-limit"`
	Burst     int           `mapstructure:"burst"`
	UserAgent string        `mapstructure:"user-agent"`
	Cache     *CacheConfig  `mapstructure:"cache"`
}

type CacheConfig struct {
	Redis *cache.Config `mapstructure:"redis"`
}

type FrameworkConfig struct {
	Name      string  `mapstructure:"name"`
	File      string  `mapstructure:"file"`
	Threshold float64 `mapstructure:"threshold"`
}

type InterviewConfig struct {
	User          string         `mapstructure:"user"`
	Parallelism   int            `mapstructure:"parallelism"`
	HistoryWindow int            `mapstructure:"history-window"`
	MinTurns      map[string]int `mapstructure:"min-turns"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "skill-mapper interviews a person about their experience and maps the skills to ESCO or a local competency framework",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is skill-mapper.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.model", "gemini-2.5-flash")
	viper.SetDefault("ai.max-retries", 3)
	viper.SetDefault("ai.max-log-length", 2000)
	viper.SetDefault("ai.timeout", 30*time.Second)

	viper.SetDefault("taxonomy.provider", "none")
	viper.SetDefault("taxonomy.language", "en")
	viper.SetDefault("taxonomy.top-k", 20)
	viper.SetDefault("taxonomy.timeout", 10*time.Second)
	viper.SetDefault("taxonomy.rate-limit", 5)

	viper.SetDefault("framework.name", "ESCO")
	viper.SetDefault("framework.threshold", 0.5)

	viper.SetDefault("storage.driver", storage.DriverSQLite)
	viper.SetDefault("storage.dsn", "file:skill-mapper.db?_pragma=foreign_keys(1)")

	viper.SetDefault("interview.user", "local")
	viper.SetDefault("interview.parallelism", 4)
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine, every setting has a default.
	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
