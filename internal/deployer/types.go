// Package deployer implements the token deployment pipeline: it
// sequences the external contract tools, interprets their text output,
// and turns a validated request into a deployed, initialized, and
// factory-registered token.
package deployer

import (
	"fmt"
	"math/big"
	"time"

	"github.com/stylusforge/launchpad/internal/ethereum"
)

// Stage identifies one step of the deployment pipeline.
type Stage string

const (
	StageValidate        Stage = "validate"
	StageDeploy          Stage = "deploy"
	StageActivate        Stage = "activate"
	StageCacheBid        Stage = "cache_bid"
	StageInitialize      Stage = "initialize"
	StageFactoryActivate Stage = "factory_activate"
	StageFactoryVerify   Stage = "factory_verify"
	StageTokenVerify     Stage = "token_verify"
	StageRegister        Stage = "register"
	StageComplete        Stage = "complete"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// Config carries everything the pipeline needs that does not come from
// the request: secrets, tool locations, and per-step time bounds. It
// is passed in at construction so the pipeline never reads ambient
// global state.
type Config struct {
	PrivateKey  string
	RPCEndpoint string

	ContractDir string
	ScratchDir  string

	CargoBin string
	CastBin  string

	MaxFeeGwei  int
	CacheBidWei string

	ProbeTimeout   time.Duration
	SendTimeout    time.Duration
	ConfirmTimeout time.Duration
}

// Request is a validated deployment request. FactoryAddress is already
// resolved (request value, else environment default, else the
// compiled-in fallback) by the caller.
type Request struct {
	Name           string
	Symbol         string
	InitialSupply  *big.Int // whole token units
	FactoryAddress ethereum.Address
}

// Validate enforces the request invariants that must hold before any
// step runs.
func (r Request) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("token name is required")
	}
	if r.Symbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if r.InitialSupply == nil || r.InitialSupply.Sign() <= 0 {
		return fmt.Errorf("initial supply must be a positive integer")
	}
	if r.FactoryAddress.IsZero() {
		return fmt.Errorf("factory address is the zero address")
	}
	return nil
}

// StepResult captures one executed step. Immutable after creation and
// owned by the pipeline run that produced it.
type StepResult struct {
	Stage     Stage  `json:"stage"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Succeeded bool   `json:"succeeded"`

	// IgnoredReason is set when the step failed but the failure was
	// classified benign and absorbed.
	IgnoredReason string `json:"ignoredReason,omitempty"`
}

// Outcome is the final result of one pipeline run. Created once per
// request and never mutated after it is returned.
type Outcome struct {
	TokenAddress ethereum.Address

	// RawTokenAddress is the address exactly as the deploy tool
	// printed it, case preserved for the response body.
	RawTokenAddress string

	Steps   []StepResult
	Success bool
	Failure *PipelineError
}

// StepOutput returns the combined captured output of the named stage,
// or empty when the stage never ran or was absorbed as benign.
func (o Outcome) StepOutput(stage Stage) string {
	for _, s := range o.Steps {
		if s.Stage == stage {
			if s.Stdout != "" && s.Stderr != "" {
				return s.Stdout + "\n" + s.Stderr
			}
			return s.Stdout + s.Stderr
		}
	}
	return ""
}

// FaultKind classifies fatal pipeline failures.
type FaultKind string

const (
	// FaultExecution covers spawn failures, non-zero exits with no
	// benign classification, and output-capture overflow.
	FaultExecution FaultKind = "execution"

	// FaultPrecondition covers explicitly checked preconditions:
	// missing factory or token code, zero addresses, invalid request
	// state discovered mid-pipeline.
	FaultPrecondition FaultKind = "precondition"

	// FaultTimeout marks a step that exceeded its allotted time.
	// Never silently retried: re-sending a signed transaction risks a
	// double submission.
	FaultTimeout FaultKind = "timeout"

	// FaultDuplicateRegistration marks an attempt to register a token
	// the factory already knows about.
	FaultDuplicateRegistration FaultKind = "duplicate_registration"
)

// PipelineError is the single aggregated failure surfaced when a run
// aborts: the failing stage, the fault class, and the raw captured
// streams of the failing step.
type PipelineError struct {
	Stage   Stage
	Kind    FaultKind
	Message string
	Stdout  string
	Stderr  string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s step failed: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *PipelineError) Unwrap() error {
	return e.Err
}
