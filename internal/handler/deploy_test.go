package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusforge/launchpad/internal/config"
	"github.com/stylusforge/launchpad/internal/deployer"
	"github.com/stylusforge/launchpad/internal/ethereum"
)

type fakePipeline struct {
	lastReq deployer.Request
	outcome deployer.Outcome
	called  bool
}

func (f *fakePipeline) Launch(_ context.Context, req deployer.Request) <-chan deployer.Outcome {
	f.called = true
	f.lastReq = req
	out := make(chan deployer.Outcome, 1)
	out <- f.outcome
	return out
}

func testDeployerConfig() config.DeployerConfig {
	return config.DeployerConfig{
		PrivateKey:  "0xkey",
		RPCEndpoint: "http://localhost:8547",
	}
}

func successOutcome(t *testing.T) deployer.Outcome {
	t.Helper()
	addr, err := ethereum.DecodeAddress("0xAbCdEf0123456789abcdef0123456789ABCDEF01")
	require.NoError(t, err)
	return deployer.Outcome{
		TokenAddress:    addr,
		RawTokenAddress: "0xAbCdEf0123456789abcdef0123456789ABCDEF01",
		Success:         true,
		Steps: []deployer.StepResult{
			{Stage: deployer.StageDeploy, Stdout: "deployed", Succeeded: true},
			{Stage: deployer.StageRegister, Stdout: "registered", Succeeded: true},
		},
	}
}

func doDeploy(t *testing.T, h *DeploymentHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, h, NewHealthHandler())

	req := httptest.NewRequest(http.MethodPost, "/deploy-token", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestDeploySuccess(t *testing.T) {
	pipeline := &fakePipeline{outcome: successOutcome(t)}
	h := NewDeploymentHandler(testDeployerConfig(), pipeline, nil)

	rec := doDeploy(t, h, `{"name":"Test","symbol":"TST","initialSupply":1000}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DeployTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	// Address case is preserved from the tool output.
	assert.Equal(t, "0xAbCdEf0123456789abcdef0123456789ABCDEF01", resp.TokenAddress)
	assert.NotEmpty(t, resp.DeploymentID)
	assert.Equal(t, "deployed", resp.DeployOutput)
	assert.Equal(t, "registered", resp.RegisterOutput)

	require.True(t, pipeline.called)
	assert.Equal(t, "Test", pipeline.lastReq.Name)
	assert.Equal(t, big.NewInt(1000), pipeline.lastReq.InitialSupply)
}

func TestDeployAcceptsStringSupply(t *testing.T) {
	pipeline := &fakePipeline{outcome: successOutcome(t)}
	h := NewDeploymentHandler(testDeployerConfig(), pipeline, nil)

	rec := doDeploy(t, h, `{"name":"Test","symbol":"TST","initialSupply":"123456789012345678901234567890"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	want, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	assert.Equal(t, want, pipeline.lastReq.InitialSupply)
}

func TestDeployUsesDefaultFactory(t *testing.T) {
	pipeline := &fakePipeline{outcome: successOutcome(t)}
	h := NewDeploymentHandler(testDeployerConfig(), pipeline, nil)

	rec := doDeploy(t, h, `{"name":"Test","symbol":"TST","initialSupply":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.DefaultFactoryAddress, pipeline.lastReq.FactoryAddress.Hex())
}

func TestDeployRequestFactoryOverridesConfig(t *testing.T) {
	pipeline := &fakePipeline{outcome: successOutcome(t)}
	cfg := testDeployerConfig()
	cfg.FactoryAddress = "0x2222222222222222222222222222222222222222"
	h := NewDeploymentHandler(cfg, pipeline, nil)

	rec := doDeploy(t, h, `{"name":"Test","symbol":"TST","initialSupply":1,"factoryAddress":"0x3333333333333333333333333333333333333333"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", pipeline.lastReq.FactoryAddress.Hex())
}

func TestDeployValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"symbol":"TST","initialSupply":1000}`},
		{"missing symbol", `{"name":"Test","initialSupply":1000}`},
		{"missing supply", `{"name":"Test","symbol":"TST"}`},
		{"zero supply", `{"name":"Test","symbol":"TST","initialSupply":0}`},
		{"negative supply", `{"name":"Test","symbol":"TST","initialSupply":-5}`},
		{"fractional supply", `{"name":"Test","symbol":"TST","initialSupply":1.5}`},
		{"bad factory", `{"name":"Test","symbol":"TST","initialSupply":1,"factoryAddress":"0x123"}`},
		{"malformed json", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &fakePipeline{outcome: successOutcome(t)}
			h := NewDeploymentHandler(testDeployerConfig(), pipeline, nil)

			rec := doDeploy(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, pipeline.called, "pipeline must not run for invalid input")

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDeployMissingConfigurationIs500(t *testing.T) {
	pipeline := &fakePipeline{outcome: successOutcome(t)}
	h := NewDeploymentHandler(config.DeployerConfig{}, pipeline, nil)

	rec := doDeploy(t, h, `{"name":"Test","symbol":"TST","initialSupply":1000}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, pipeline.called)
}

func TestDeployPipelineFailure(t *testing.T) {
	pipeline := &fakePipeline{outcome: deployer.Outcome{
		Failure: &deployer.PipelineError{
			Stage:   deployer.StageActivate,
			Kind:    deployer.FaultExecution,
			Message: "activation failed",
			Stdout:  "some output",
			Stderr:  "insufficient funds",
		},
	}}
	h := NewDeploymentHandler(testDeployerConfig(), pipeline, nil)

	rec := doDeploy(t, h, `{"name":"Test","symbol":"TST","initialSupply":1000}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Error   string         `json:"error"`
		Details FailureDetails `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Deployment flow failed", body.Error)
	assert.Equal(t, "activation failed", body.Details.Message)
	assert.Equal(t, "insufficient funds", body.Details.Stderr)
	assert.Equal(t, "activate", body.Details.Stage)
}

func TestHealth(t *testing.T) {
	r := chi.NewRouter()
	pipeline := &fakePipeline{}
	RegisterRoutes(r, NewDeploymentHandler(testDeployerConfig(), pipeline, nil), NewHealthHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	ts, err := time.Parse(time.RFC3339, resp.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}
