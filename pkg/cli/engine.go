package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"runqueue/internal/app"
	"runqueue/internal/config"
	"runqueue/internal/service/queue"
)

// buildService wires a queue service from the resolved environment, exactly
// as the server does. Logs go to stderr so table and JSON output stay clean.
func buildService(cmd *cobra.Command) (*queue.Service, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	application, err := app.New(cmd.Context(), app.Deps{Cfg: cfg, Logger: logger})
	if err != nil {
		return nil, err
	}
	if application.DevMode && cfg.HasBucket() {
		logger.Warn("launch backend not configured, using local stub")
	}
	return application.Queues, nil
}

// parseParams turns repeated key=value flags into a param map.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
