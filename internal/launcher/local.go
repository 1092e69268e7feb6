package launcher

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"runqueue/internal/domain"
)

// Compile-time check: LocalLauncher implements the launcher port.
var _ domain.Launcher = (*LocalLauncher)(nil)

// LocalLauncher fabricates execution references without touching any
// backend. It backs dev mode, where the app runs without GCP configuration.
type LocalLauncher struct {
	logger *slog.Logger
}

// NewLocalLauncher creates a dev-mode launcher.
func NewLocalLauncher(logger *slog.Logger) *LocalLauncher {
	return &LocalLauncher{logger: logger}
}

// Launch pretends the job started and returns a synthetic execution ref.
func (l *LocalLauncher) Launch(ctx context.Context, entryID string, params map[string]string) (string, error) {
	ref := "local/" + uuid.NewString()
	l.logger.Info("local launch (no backend configured)", "entry", entryID, "execution_ref", ref, "args", ContainerArgs(params))
	return ref, nil
}
