package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spigell/skill-mapper/internal/conversation"
	"github.com/spigell/skill-mapper/internal/framework"
	"github.com/spigell/skill-mapper/internal/interview"
	"github.com/spigell/skill-mapper/internal/logger"
	"github.com/spigell/skill-mapper/internal/metrics"
	"github.com/spigell/skill-mapper/internal/skills"
	"github.com/spigell/skill-mapper/internal/storage"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptGuided = "Guided interview"
	PromptFree   = "Free conversation"

	CommandQuit   = "/quit"
	CommandReport = "/report"
	CommandDone   = "/done"

	metaMode = "mode"
)

var errExit = errors.New("exit requested")

var modePrompt = promptui.Select{
	Label: "How would you like to talk about your experience?",
	Items: []string{PromptGuided, PromptFree},
}

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Start or resume an interactive skill interview",
	Run: func(cmd *cobra.Command, _ []string) {
		runInterview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().String("resume", "", "id of a paused assessment to continue")
	interviewCmd.Flags().String("framework", "", "framework to map onto when no taxonomy is configured")
	interviewCmd.Flags().String("mode", "", "interview mode: guided or free. Asked interactively when unset.")
}

func runInterview(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the skill-mapper interview", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	collector := metrics.NewCollector(metrics.DefaultNamespace, prometheus.NewRegistry(), logger)
	if config.Metrics != nil && config.Metrics.Addr != "" {
		go func() {
			if err := collector.Serve(ctx, config.Metrics.Addr); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	if name := cmd.Flag("framework").Value.String(); name != "" {
		if config.Framework == nil {
			config.Framework = &FrameworkConfig{}
		}
		config.Framework.Name = name
	}
	if config.Framework == nil {
		config.Framework = &FrameworkConfig{Name: "ESCO"}
	}
	if config.Storage == nil {
		logger.Fatal("storage configuration is required")
	}

	registry, err := loadFrameworks(config.Framework)
	if err != nil {
		logger.Fatal("loading frameworks", zap.Error(err))
	}

	if offline(config) && cmd.Flag("framework").Value.String() == "" && cmd.Flag("resume").Value.String() == "" {
		name, err := chooseFramework(registry)
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		config.Framework.Name = name
	}

	model, err := newModel(ctx, config.AI, collector, logger)
	if err != nil {
		logger.Fatal("building language model client", zap.Error(err))
	}

	resolver, closeResolver, err := newResolver(config, model, registry, collector, logger)
	if err != nil {
		logger.Fatal("building skill resolver", zap.Error(err))
	}
	defer closeResolver()

	repo, err := storage.Open(*config.Storage, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer repo.Close()

	turns, err := minTurns(config.Interview)
	if err != nil {
		logger.Fatal("reading interview settings", zap.Error(err))
	}

	machine := conversation.NewMachine(logger, func(from, to conversation.State) {
		collector.RecordTransition(from.String(), to.String())
	})

	assessment, err := loadOrCreateAssessment(ctx, cmd, repo, config, resolver.Name())
	if err != nil {
		logger.Fatal("preparing assessment", zap.Error(err))
	}

	mode, err := chooseMode(cmd, assessment)
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	checks := interview.DefaultChecks()
	if mode == PromptFree {
		interview.DisableByName(checks, "phase_keywords", "free conversation mode")
	}

	var extractOpts []skills.ExtractorOption
	maxLogLength := 0
	if config.AI != nil {
		extractOpts = append(extractOpts, skills.WithExtractionTimeout(config.AI.Timeout))
		maxLogLength = config.AI.MaxLogLength
	}

	engineCfg := interview.Config{MaxLogLength: maxLogLength}
	if config.AI != nil {
		engineCfg.ReplyTimeout = config.AI.Timeout
	}
	if config.Interview != nil {
		engineCfg.Parallelism = config.Interview.Parallelism
		engineCfg.HistoryWindow = config.Interview.HistoryWindow
	}

	engine, err := interview.NewEngine(interview.Deps{
		Model:     model,
		Extractor: skills.NewExtractor(model, logger, maxLogLength, extractOpts...),
		Resolver:  resolver,
		Repo:      repo,
		Strategy:  conversation.NewGuidedStrategy(turns),
		Machine:   machine,
		Checks:    checks,
		Recorder:  collector,
		Logger:    logger,
	}, engineCfg)
	if err != nil {
		logger.Fatal("building interview engine", zap.Error(err))
	}

	for _, status := range interview.DescribeChecks(checks) {
		logger.Debug("validation check",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
		)
	}

	if assessment.Status == conversation.StatusNotStarted {
		question, err := engine.Start(ctx, assessment)
		if err != nil {
			logger.Fatal("starting assessment", zap.Error(err))
		}
		assessment.Conversation.SetMetadata(metaMode, mode)
		fmt.Printf("\n%s\n\n", question)
	} else if last := assessment.Conversation.LastMessages(1); len(last) == 1 {
		fmt.Printf("\n%s\n\n", last[0].Content)
	}

	if err := converse(ctx, engine, assessment, logger); err != nil && !errors.Is(err, errExit) {
		logger.Error("interview interrupted", zap.Error(err))
	}

	if assessment.Status == conversation.StatusInProgress {
		if err := assessment.Pause(); err == nil {
			logger.Info("assessment paused", zap.String("hint", "continue with --resume "+assessment.ID))
		}
	}
	if err := repo.SaveAssessment(context.Background(), assessment); err != nil {
		logger.Error("saving assessment", zap.Error(err))
	}

	printReport(engine.Report(assessment), logger)
}

func loadOrCreateAssessment(ctx context.Context, cmd *cobra.Command, repo *storage.Repository, config *Config, frameworkName string) (*conversation.Assessment, error) {
	id := strings.TrimSpace(cmd.Flag("resume").Value.String())
	if id == "" {
		user := "local"
		if config.Interview != nil && config.Interview.User != "" {
			user = config.Interview.User
		}
		return conversation.NewAssessment(user, frameworkName)
	}

	a, err := repo.LoadAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("assessment %s not found", id)
	}
	if a.Conversation == nil {
		return nil, fmt.Errorf("assessment %s has no conversation", id)
	}
	if a.Status == conversation.StatusPaused {
		if err := a.Resume(); err != nil {
			return nil, err
		}
	}
	if a.Status != conversation.StatusInProgress {
		return nil, fmt.Errorf("assessment %s is %s", id, a.Status)
	}
	return a, nil
}

func offline(config *Config) bool {
	return config.Taxonomy == nil || config.Taxonomy.Provider == "" || strings.EqualFold(config.Taxonomy.Provider, providerNone)
}

func chooseFramework(registry framework.Registry) (string, error) {
	names := registry.Names()
	if len(names) == 1 {
		return names[0], nil
	}
	prompt := promptui.Select{
		Label: "Which framework should your skills be mapped to?",
		Items: names,
	}
	_, name, err := prompt.Run()
	return name, err
}

func chooseMode(cmd *cobra.Command, a *conversation.Assessment) (string, error) {
	if a.Conversation != nil {
		if mode, ok := a.Conversation.Metadata(metaMode); ok {
			if s, ok := mode.(string); ok && s != "" {
				return s, nil
			}
		}
	}

	switch strings.ToLower(strings.TrimSpace(cmd.Flag("mode").Value.String())) {
	case "guided":
		return PromptGuided, nil
	case "free":
		return PromptFree, nil
	case "":
	default:
		return "", fmt.Errorf("unknown interview mode %q", cmd.Flag("mode").Value.String())
	}

	_, mode, err := modePrompt.Run()
	return mode, err
}

func converse(ctx context.Context, engine *interview.Engine, a *conversation.Assessment, logger *zap.Logger) error {
	input := promptui.Prompt{Label: "You"}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		text, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return errExit
			}
			return err
		}

		switch strings.TrimSpace(text) {
		case "":
			continue
		case CommandQuit:
			return errExit
		case CommandReport:
			printReport(engine.Report(a), logger)
			continue
		case CommandDone:
			if err := engine.Complete(ctx, a); err != nil {
				return err
			}
			return errExit
		}

		res, err := engine.HandleMessage(ctx, a.Conversation, text)
		if res == nil {
			if errors.Is(err, interview.ErrConversationCompleted) {
				return errExit
			}
			return err
		}
		if err != nil {
			logger.Warn("turn was not fully saved", zap.Error(err))
		}

		fmt.Printf("\n%s\n\n", res.Reply)
		for _, m := range res.Mapped {
			fmt.Printf("  + %s (%s, %s)\n", m.Title, m.ConfidenceLevel(), m.TaxonomyURI)
		}
		if len(res.Mapped) > 0 {
			fmt.Println()
		}
		for _, f := range res.Failures {
			logger.Debug("claim not mapped", zap.String("claim", f.Claim.Name), zap.Error(f.Err))
		}

		if res.State == conversation.StateCompleted {
			if err := engine.Complete(ctx, a); err != nil && !errors.Is(err, conversation.ErrInvalidStatus) {
				return err
			}
			return errExit
		}
	}
}

func printReport(report interview.Report, logger *zap.Logger) {
	pretty, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("rendering report", zap.Error(err))
		return
	}
	logger.Info(string(pretty), zap.String("phase", report.Phase))
}
