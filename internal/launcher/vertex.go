package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"runqueue/internal/domain"
)

// Params every producer may set to override the launcher defaults for one
// entry. All other params are forwarded verbatim to the training container.
const (
	ParamImage       = "image"
	ParamMachineType = "machineType"
	ParamDisplayName = "displayName"
)

// Compile-time check: VertexLauncher implements the launcher port.
var _ domain.Launcher = (*VertexLauncher)(nil)

// VertexConfig holds the launch target for training jobs.
type VertexConfig struct {
	Project     string
	Region      string
	Image       string // default training container image
	MachineType string // default machine type, e.g. n1-standard-8
}

// VertexLauncher submits one Vertex AI custom training job per Launch call.
// It never retries: a retry must be preceded by a durable PENDING fallback
// written by the tick engine, so every attempt is externally visible.
type VertexLauncher struct {
	jobs   *aiplatform.ProjectsLocationsCustomJobsService
	cfg    VertexConfig
	policy *Policy
	logger *slog.Logger
}

// NewVertexLauncher creates a launcher against the regional Vertex AI
// endpoint. Credentials come from the environment unless overridden in opts.
func NewVertexLauncher(ctx context.Context, cfg VertexConfig, policy *Policy, logger *slog.Logger, opts ...option.ClientOption) (*VertexLauncher, error) {
	if cfg.Project == "" || cfg.Region == "" {
		return nil, fmt.Errorf("project and region are required")
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	endpoint := fmt.Sprintf("https://%s-aiplatform.googleapis.com/", cfg.Region)
	svc, err := aiplatform.NewService(ctx, append([]option.ClientOption{option.WithEndpoint(endpoint)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create aiplatform client: %w", err)
	}
	if cfg.MachineType == "" {
		cfg.MachineType = "n1-standard-4"
	}
	return &VertexLauncher{
		jobs:   svc.Projects.Locations.CustomJobs,
		cfg:    cfg,
		policy: policy,
		logger: logger,
	}, nil
}

// Launch submits a custom job built from the entry's params and returns the
// backend's job resource name as the execution reference.
func (l *VertexLauncher) Launch(ctx context.Context, entryID string, params map[string]string) (string, error) {
	job := l.buildJob(entryID, params)
	parent := fmt.Sprintf("projects/%s/locations/%s", l.cfg.Project, l.cfg.Region)

	created, err := l.jobs.Create(parent, job).Context(ctx).Do()
	if err != nil {
		return "", classifyLaunchError(err, l.policy)
	}
	if created.Name == "" {
		return "", domain.ErrLaunch(false, "backend returned a job without a resource name")
	}
	l.logger.Info("launched training job", "entry", entryID, "execution_ref", created.Name)
	return created.Name, nil
}

func (l *VertexLauncher) buildJob(entryID string, params map[string]string) *aiplatform.GoogleCloudAiplatformV1CustomJob {
	image := l.cfg.Image
	machine := l.cfg.MachineType
	displayName := "runqueue-" + entryID
	if v := params[ParamImage]; v != "" {
		image = v
	}
	if v := params[ParamMachineType]; v != "" {
		machine = v
	}
	if v := params[ParamDisplayName]; v != "" {
		displayName = v
	}

	return &aiplatform.GoogleCloudAiplatformV1CustomJob{
		DisplayName: displayName,
		Labels:      map[string]string{"runqueue-entry": entryID},
		JobSpec: &aiplatform.GoogleCloudAiplatformV1CustomJobSpec{
			WorkerPoolSpecs: []*aiplatform.GoogleCloudAiplatformV1WorkerPoolSpec{
				{
					ReplicaCount: 1,
					MachineSpec: &aiplatform.GoogleCloudAiplatformV1MachineSpec{
						MachineType: machine,
					},
					ContainerSpec: &aiplatform.GoogleCloudAiplatformV1ContainerSpec{
						ImageUri: image,
						Args:     ContainerArgs(params),
					},
				},
			},
		},
	}
}

// ContainerArgs renders producer params as deterministic --key=value args,
// skipping the launcher-reserved keys.
func ContainerArgs(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamImage || k == ParamMachineType || k == ParamDisplayName {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--%s=%s", k, params[k]))
	}
	return args
}

// classifyLaunchError translates a backend failure into a LaunchError.
// Transport-level failures without an API status are retryable; a timed-out
// call is classified per the policy since the backend may or may not have
// accepted the job.
func classifyLaunchError(err error, policy *Policy) *domain.LaunchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrLaunch(policy.RetryTimeouts, "launch timed out: %v", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrLaunch(true, "launch cancelled: %v", err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return domain.ErrLaunch(policy.RetryableCode(gerr.Code), "backend rejected launch (HTTP %d): %v", gerr.Code, err)
	}
	return domain.ErrLaunch(true, "launch transport error: %v", err)
}
