package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spigell/skill-mapper/internal/framework"
	"github.com/spigell/skill-mapper/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var mapCmd = &cobra.Command{
	Use:   "map [description]",
	Short: "Map a free-text skill description onto a competency framework",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runMap(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().String("framework", "", "framework to map onto (default is framework.name from config)")
	mapCmd.Flags().Float64("threshold", -1, "minimum similarity (default is framework.threshold from config)")
	mapCmd.Flags().String("category", "", "category used to score the description")
	mapCmd.Flags().String("framework-file", "", "an additional framework definition in yaml")
}

func runMap(cmd *cobra.Command, description string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	fw := frameworkConfig(cmd, config)
	registry, err := loadFrameworks(fw)
	if err != nil {
		logger.Fatal("loading frameworks", zap.Error(err))
	}

	threshold := fw.Threshold
	if t, _ := cmd.Flags().GetFloat64("threshold"); t >= 0 {
		threshold = t
	}

	var opts []framework.MapOption
	if category := cmd.Flag("category").Value.String(); category != "" {
		opts = append(opts, framework.WithCategory(category))
	}

	service := framework.NewMappingService(registry, logger)
	mapped, err := service.MapToFramework(description, fw.Name, threshold, opts...)
	if err != nil {
		logger.Fatal("mapping description", zap.Error(err))
	}

	for _, m := range mapped {
		if err := service.ValidateMapping(m); err != nil {
			logger.Warn("invalid mapping", zap.String("title", m.Title), zap.Error(err))
		}
	}

	logger.Info("description mapped",
		zap.String("framework", fw.Name),
		zap.Float64("threshold", threshold),
		zap.Int("found", len(mapped)),
	)

	if err := printJSON(mapped); err != nil {
		logger.Fatal("rendering result", zap.Error(err))
	}
}

// frameworkConfig merges the framework flags of cmd into the configured values.
func frameworkConfig(cmd *cobra.Command, config *Config) *FrameworkConfig {
	fw := &FrameworkConfig{Name: "ESCO"}
	if config != nil && config.Framework != nil {
		*fw = *config.Framework
	}
	if f := cmd.Flag("framework"); f != nil && f.Value.String() != "" {
		fw.Name = f.Value.String()
	}
	if f := cmd.Flag("framework-file"); f != nil && f.Value.String() != "" {
		fw.File = f.Value.String()
	}
	return fw
}

func printJSON(v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
