package algorithm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/model"
)

type echoAlgorithm struct {
	fail bool
}

func (a *echoAlgorithm) ID() string          { return "echo" }
func (a *echoAlgorithm) Version() string     { return "1.0.0" }
func (a *echoAlgorithm) Description() string { return "echoes params.extra back as payload" }
func (a *echoAlgorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if a.fail {
		return nil, errors.New("boom")
	}
	return map[string]any{"echoed": params.Extra}, nil
}

func TestRegistry_RegisterGetLatestBySemver(t *testing.T) {
	r := algorithm.NewRegistry(nil)
	require.NoError(t, r.Register(&echoAlgorithm{}))
	old := &echoAlgorithm{}
	require.NoError(t, r.Register(algorithmWithVersion{old, "0.9.0"}))

	got, err := r.Get("echo", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Version())

	got, err = r.Get("echo", "0.9.0")
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", got.Version())
}

func TestRegistry_GetUnregisteredReturnsError(t *testing.T) {
	r := algorithm.NewRegistry(nil)
	_, err := r.Get("nonexistent", "")
	require.Error(t, err)
}

func TestRegistry_FreezeRejectsFurtherRegistration(t *testing.T) {
	r := algorithm.NewRegistry(nil)
	r.Freeze()
	err := r.Register(&echoAlgorithm{})
	require.Error(t, err)
}

func TestRun_SuccessProducesConsistentHashes(t *testing.T) {
	alg := &echoAlgorithm{}
	params := model.AlgorithmParams{CaseID: 1, TenantID: 1, Extra: map[string]any{"x": float64(1)}}

	result, err := algorithm.Run(algorithm.Context{}, alg, params, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.ParamsHash)
	assert.NotEmpty(t, result.ResultHash)
	assert.NotEmpty(t, result.IntegrityCheck)
	assert.NotEqual(t, result.ResultHash, result.IntegrityCheck)
}

func TestRun_DeterministicAcrossInvocations(t *testing.T) {
	alg := &echoAlgorithm{}
	params := model.AlgorithmParams{CaseID: 1, TenantID: 1, Extra: map[string]any{"a": float64(1), "b": float64(2)}}

	r1, err := algorithm.Run(algorithm.Context{}, alg, params, nil)
	require.NoError(t, err)
	r2, err := algorithm.Run(algorithm.Context{}, alg, params, nil)
	require.NoError(t, err)

	assert.Equal(t, r1.ParamsHash, r2.ParamsHash)
	assert.Equal(t, r1.ResultHash, r2.ResultHash)
	// run_id and timestamps legitimately differ; everything content-derived must not.
	assert.NotEqual(t, r1.RunID, r2.RunID)
}

func TestRun_FailureSetsSuccessFalseAndError(t *testing.T) {
	alg := &echoAlgorithm{fail: true}
	result, err := algorithm.Run(algorithm.Context{}, alg, model.AlgorithmParams{}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
}

type algorithmWithVersion struct {
	*echoAlgorithm
	version string
}

func (a algorithmWithVersion) Version() string { return a.version }
