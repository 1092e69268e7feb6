package launcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"runqueue/internal/domain"
)

func TestContainerArgs(t *testing.T) {
	args := ContainerArgs(map[string]string{
		"dataset":        "gs://data/train.csv",
		"run":            "r-42",
		"alpha":          "0.3",
		ParamImage:       "gcr.io/p/train:v2",
		ParamDisplayName: "custom",
	})
	// Deterministic order, reserved keys excluded.
	assert.Equal(t, []string{"--alpha=0.3", "--dataset=gs://data/train.csv", "--run=r-42"}, args)

	assert.Empty(t, ContainerArgs(nil))
}

func TestBuildJob_ParamOverrides(t *testing.T) {
	l := &VertexLauncher{cfg: VertexConfig{
		Project:     "p",
		Region:      "europe-west1",
		Image:       "gcr.io/p/train:v1",
		MachineType: "n1-standard-4",
	}}

	job := l.buildJob("e1", map[string]string{
		ParamImage:       "gcr.io/p/train:v9",
		ParamMachineType: "n1-highmem-16",
		"run":            "r-1",
	})

	require.Len(t, job.JobSpec.WorkerPoolSpecs, 1)
	pool := job.JobSpec.WorkerPoolSpecs[0]
	assert.Equal(t, "gcr.io/p/train:v9", pool.ContainerSpec.ImageUri)
	assert.Equal(t, "n1-highmem-16", pool.MachineSpec.MachineType)
	assert.Equal(t, []string{"--run=r-1"}, pool.ContainerSpec.Args)
	assert.Equal(t, "runqueue-e1", job.DisplayName)
	assert.Equal(t, "e1", job.Labels["runqueue-entry"])
}

func TestClassifyLaunchError(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"quota", &googleapi.Error{Code: 429}, true},
		{"server", &googleapi.Error{Code: 503}, true},
		{"permission", &googleapi.Error{Code: 403}, false},
		{"not_found", &googleapi.Error{Code: 404}, false},
		{"wrapped_api_error", fmt.Errorf("create job: %w", &googleapi.Error{Code: 400}), false},
		{"timeout", context.DeadlineExceeded, true},
		{"transport", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lerr := classifyLaunchError(tt.err, p)
			var asLaunch *domain.LaunchError
			require.ErrorAs(t, lerr, &asLaunch)
			assert.Equal(t, tt.retryable, asLaunch.Retryable)
			assert.NotEmpty(t, asLaunch.Message)
		})
	}
}

func TestClassifyLaunchError_TimeoutPolicyOverride(t *testing.T) {
	p := DefaultPolicy()
	p.RetryTimeouts = false
	lerr := classifyLaunchError(context.DeadlineExceeded, p)
	assert.False(t, lerr.Retryable)
}
