package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spigell/skill-mapper/internal/framework"
	"github.com/spigell/skill-mapper/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var frameworksCmd = &cobra.Command{
	Use:   "frameworks",
	Short: "Inspect the available competency frameworks",
	Run: func(cmd *cobra.Command, _ []string) {
		runFrameworks(cmd)
	},
}

func init() {
	rootCmd.AddCommand(frameworksCmd)

	frameworksCmd.Flags().String("framework", "", "show the competencies of this framework")
	frameworksCmd.Flags().String("framework-file", "", "an additional framework definition in yaml")
	frameworksCmd.Flags().String("category", "", "only competencies of this category")
	frameworksCmd.Flags().String("similar", "", "show competencies similar to this competency id")
	frameworksCmd.Flags().Float64("threshold", 0.3, "minimum similarity for --similar")
	frameworksCmd.Flags().StringToString("suggest", nil, "suggest competencies for a context, e.g. role=nurse")
}

func runFrameworks(cmd *cobra.Command) {
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

	var out any
	switch {
	case cmd.Flag("similar").Value.String() != "":
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		service := framework.NewMappingService(registry, logger)
		out, err = service.FindSimilar(cmd.Flag("similar").Value.String(), fw.Name, threshold)
	case cmd.Flags().Changed("suggest"):
		suggest, _ := cmd.Flags().GetStringToString("suggest")
		service := framework.NewMappingService(registry, logger)
		out, err = service.Suggest(suggest, fw.Name, 0)
	case cmd.Flags().Changed("framework"):
		out, err = listCompetencies(registry, fw.Name, cmd.Flag("category").Value.String())
	default:
		stats := make([]framework.Statistics, 0, len(registry))
		for _, name := range registry.Names() {
			stats = append(stats, registry[name].Statistics())
		}
		out = stats
	}
	if err != nil {
		logger.Fatal("inspecting frameworks", zap.Error(err))
	}

	if err := printJSON(out); err != nil {
		logger.Fatal("rendering result", zap.Error(err))
	}
}

func listCompetencies(registry framework.Registry, name, category string) ([]*framework.Competency, error) {
	f, err := registry.Get(name)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return f.Competencies(), nil
	}
	found := f.ByCategory(category)
	if len(found) == 0 {
		return nil, fmt.Errorf("no competencies in category %q, known: %s", category, strings.Join(f.Categories(), ", "))
	}
	return found, nil
}
