package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wheel-screener/config"
	"wheel-screener/interfaces"
	"wheel-screener/models"
	"wheel-screener/services"
)

var rootCmd = &cobra.Command{
	Use:           "wheel-screener",
	Short:         "Screen cash-secured PUTs for the wheel strategy",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "optional .env file to load")
	rootCmd.PersistentFlags().String("criteria-file", "", "YAML file with default screening criteria")
	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("Error: %v", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built from config
type app struct {
	cfg       *config.Config
	screening *services.ScreeningService
}

func loadApp(cmd *cobra.Command) (*app, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, fmt.Errorf("error getting env-file: %w", err)
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	log.SetLevel(cfg.LogLevel)
	services.SetLogLevel(cfg.LogLevel)

	criteriaFile, err := cmd.Flags().GetString("criteria-file")
	if err != nil {
		return nil, fmt.Errorf("error getting criteria-file: %w", err)
	}
	if criteriaFile == "" {
		criteriaFile = cfg.CriteriaFile
	}
	criteria, err := config.LoadCriteria(criteriaFile)
	if err != nil {
		return nil, err
	}

	defaultSource, err := services.ParseSourceMode(cfg.DefaultSource)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		screening: newScreeningService(cfg, criteria, defaultSource),
	}, nil
}

func newScreeningService(cfg *config.Config, criteria models.ScreeningCriteria, defaultSource services.SourceMode) *services.ScreeningService {
	var (
		broker     interfaces.OptionChainSource
		live       interfaces.OptionChainSource
		underlying interfaces.DataService
	)

	if cfg.PolygonConfigured() {
		polygonService := services.NewPolygonOptionsDataService(cfg.PolygonAPIKey)
		live = services.NewCachedChainSource(polygonService, cfg.QuoteCacheTTL)
		underlying = polygonService
	} else {
		log.Info("POLYGON_API_KEY not set, live quotes disabled")
	}

	if cfg.AlpacaConfigured() {
		alpacaService := services.NewAlpacaOptionsDataService(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.AlpacaDataURL)
		broker = alpacaService
		underlying = alpacaService
	} else {
		log.Info("Alpaca credentials not set, broker feed disabled")
	}

	synthetic := services.NewSyntheticSource(cfg.SyntheticSeed, underlying, cfg.HVFallback)
	provider := services.NewDataProvider(synthetic, live, broker, cfg.HVFallback)

	return services.NewScreeningService(provider, services.NewScreener(), defaultSource, criteria, cfg.QuoteCacheTTL)
}
