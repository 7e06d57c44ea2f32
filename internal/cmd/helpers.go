package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/plxgio/sakura-launcher/internal/config"
	"github.com/plxgio/sakura-launcher/internal/logging"
	"github.com/plxgio/sakura-launcher/internal/output"
)

// logLevel applies the --verbose and --quiet overrides to level.
func logLevel(level string) string {
	switch {
	case verbose:
		return log.DebugLevel.String()
	case quiet:
		return log.ErrorLevel.String()
	default:
		return level
	}
}

// loadConfig resolves the launcher config and sets up logging from it.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.Resolve(configPath)
	if err != nil {
		if path != "" {
			return nil, path, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	if err := logging.Setup(logLevel(cfg.LogLevel), cfg.LogFile); err != nil {
		return nil, path, err
	}
	if path != "" {
		log.Debugf("loaded config from %s", path)
	} else {
		log.Debug("no config file found, using defaults")
	}
	return cfg, path, nil
}

// setupToolLogging configures logging for commands that do not touch an
// installation (package, serve).
func setupToolLogging() error {
	return logging.Setup(logLevel(config.DefaultLogLevel), logging.Console)
}

func outputWriter() (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(os.Stdout, format), nil
}
