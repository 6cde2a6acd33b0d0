package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

func TestRoot_BuilderReceivesGlobalFlags(t *testing.T) {
	var opts Options
	svc := &Services{Extraction: &mockBatchRunner{}, Pipeline: testPipeline()}

	_, err := execute(t, svc, &opts,
		"--backend", "local", "--root", "projects", "--config-dir", "/tmp/arch", "-v", "extract")

	require.NoError(t, err)
	assert.Equal(t, "local", opts.Backend)
	assert.Equal(t, "projects", opts.RootFolderID)
	assert.Equal(t, "/tmp/arch", opts.ConfigDir)
	assert.True(t, opts.Verbose)
	assert.True(t, opts.Pipeline)
}

func TestRoot_StatusDoesNotNeedPipeline(t *testing.T) {
	var opts Options
	svc := &Services{Tasks: &mockTaskStatus{}}

	_, err := execute(t, svc, &opts, "status")

	require.NoError(t, err)
	assert.False(t, opts.Pipeline)
}

func TestRoot_ClosesServices(t *testing.T) {
	closed := false
	svc := &Services{
		Extraction: &mockBatchRunner{},
		Pipeline:   testPipeline(),
		Close: func() error {
			closed = true
			return nil
		},
	}

	_, err := execute(t, svc, nil, "extract")

	require.NoError(t, err)
	assert.True(t, closed)
	assert.Nil(t, services)
}

func TestRoot_BuilderError(t *testing.T) {
	_, err := executeWith(t, func(context.Context, Options) (*Services, error) {
		return nil, errors.New("no credentials")
	}, "extract")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialise: no credentials")
}

func TestRoot_NoBuilder(t *testing.T) {
	_, err := executeWith(t, nil, "status")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "services not configured")
}

func TestRunCmd_StopsOnCancel(t *testing.T) {
	sched := &mockScheduler{startErr: context.Canceled}
	svc := &Services{Scheduler: sched, Pipeline: testPipeline()}

	_, err := execute(t, svc, nil, "run")

	require.NoError(t, err)
	assert.True(t, sched.started)
	assert.True(t, sched.stopped)
}

func TestRunCmd_StartError(t *testing.T) {
	sched := &mockScheduler{startErr: domain.ErrStoreUnavailable}
	svc := &Services{Scheduler: sched, Pipeline: testPipeline()}

	_, err := execute(t, svc, nil, "run")

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, sched.stopped)
}
