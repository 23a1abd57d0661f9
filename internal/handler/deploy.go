// Package handler wires the HTTP surface: request decoding and
// validation, factory address resolution, and mapping pipeline
// outcomes onto the wire contract.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stylusforge/launchpad/internal/config"
	"github.com/stylusforge/launchpad/internal/deployer"
	"github.com/stylusforge/launchpad/internal/ethereum"
	"github.com/stylusforge/launchpad/internal/middleware"
	apierrors "github.com/stylusforge/launchpad/internal/pkg/errors"
	"github.com/stylusforge/launchpad/internal/pkg/response"
)

// Pipeline is the part of the orchestrator the HTTP layer uses. The
// channel-based entry point keeps every in-flight run registered with
// the orchestrator's shutdown drain.
type Pipeline interface {
	Launch(ctx context.Context, req deployer.Request) <-chan deployer.Outcome
}

// DeploymentHandler handles token deployment requests.
type DeploymentHandler struct {
	cfg      config.DeployerConfig
	pipeline Pipeline
	validate *validator.Validate
	logger   *slog.Logger
}

// NewDeploymentHandler creates a deployment handler.
func NewDeploymentHandler(cfg config.DeployerConfig, pipeline Pipeline, logger *slog.Logger) *DeploymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeploymentHandler{
		cfg:      cfg,
		pipeline: pipeline,
		validate: validator.New(),
		logger:   logger,
	}
}

// Deploy handles POST /deploy-token. Validation and configuration problems
// are rejected before any external process is spawned; only a request
// that passes both reaches the pipeline.
func (h *DeploymentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req DeployTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON in request body: "+err.Error())
		return
	}

	if err := h.validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			response.ValidationError(w, verrs[0].Field(), validationMessage(verrs[0]))
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	supply := req.InitialSupply.Value()
	if supply == nil || supply.Sign() <= 0 {
		response.ValidationError(w, "InitialSupply", "initial supply must be a positive whole number")
		return
	}

	factory, err := h.resolveFactory(req.FactoryAddress)
	if err != nil {
		response.ValidationError(w, "FactoryAddress", err.Error())
		return
	}

	if err := h.cfg.Validate(); err != nil {
		h.logger.Error("deployment rejected, server misconfigured", slog.String("error", err.Error()))
		response.Error(w, apierrors.NewConfigurationError("Server is not configured for deployments: "+err.Error()))
		return
	}

	deploymentID := uuid.NewString()
	logger := h.logger.With(
		slog.String("deployment_id", deploymentID),
		slog.String("symbol", req.Symbol),
	)
	logger.Info("deployment started")

	start := time.Now()
	outcome := <-h.pipeline.Launch(r.Context(), deployer.Request{
		Name:           req.Name,
		Symbol:         req.Symbol,
		InitialSupply:  supply,
		FactoryAddress: factory,
	})
	middleware.RecordDeployment(outcome.Success, time.Since(start))

	if !outcome.Success {
		h.writeFailure(w, logger, outcome)
		return
	}

	logger.Info("deployment succeeded",
		slog.String("token_address", outcome.TokenAddress.Hex()),
		slog.Duration("duration", time.Since(start)),
	)
	// The address goes out exactly as the deploy tool printed it.
	tokenAddress := outcome.RawTokenAddress
	if tokenAddress == "" {
		tokenAddress = outcome.TokenAddress.Hex()
	}
	response.OK(w, DeployTokenResponse{
		Success:        true,
		TokenAddress:   tokenAddress,
		Message:        "Token deployed and registered successfully",
		DeploymentID:   deploymentID,
		DeployOutput:   outcome.StepOutput(deployer.StageDeploy),
		ActivateOutput: outcome.StepOutput(deployer.StageActivate),
		CacheOutput:    outcome.StepOutput(deployer.StageCacheBid),
		InitOutput:     outcome.StepOutput(deployer.StageInitialize),
		RegisterOutput: outcome.StepOutput(deployer.StageRegister),
	})
}

// resolveFactory picks the factory address: request value first, then
// the configured one, then the compiled-in default.
func (h *DeploymentHandler) resolveFactory(requested string) (ethereum.Address, error) {
	raw := requested
	if raw == "" {
		raw = h.cfg.FactoryAddress
	}
	if raw == "" {
		raw = config.DefaultFactoryAddress
	}
	return ethereum.DecodeAddress(raw)
}

func (h *DeploymentHandler) writeFailure(w http.ResponseWriter, logger *slog.Logger, outcome deployer.Outcome) {
	perr := outcome.Failure
	logger.Error("deployment failed",
		slog.String("stage", perr.Stage.String()),
		slog.String("fault", string(perr.Kind)),
	)
	middleware.RecordStepFailure(perr.Stage.String())

	response.Error(w, apierrors.ErrInternal.
		WithMessage("Deployment flow failed").
		WithDetails(FailureDetails{
			Message: perr.Message,
			Stdout:  perr.Stdout,
			Stderr:  perr.Stderr,
			Stage:   perr.Stage.String(),
		}))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "len", "startswith":
		return fe.Field() + " must be a 0x-prefixed 40-hex-digit address"
	}
	return fe.Field() + " is invalid"
}
