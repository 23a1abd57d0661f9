package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stylusforge/launchpad/internal/ethereum"
	"github.com/stylusforge/launchpad/internal/pkg/ulid"
)

// Orchestrator drives a deployment request through the pipeline. It is
// safe for concurrent use; each Run gets its own scratch directory and
// step state.
type Orchestrator struct {
	cfg     Config
	runner  Runner
	builder *Builder
	dial    ProberDialer
	logger  *slog.Logger

	wg sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithProberDialer replaces how chain probers are opened.
func WithProberDialer(d ProberDialer) Option {
	return func(o *Orchestrator) { o.dial = d }
}

// NewOrchestrator creates a pipeline orchestrator for the given
// configuration.
func NewOrchestrator(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		builder: NewBuilder(cfg),
		dial:    DialProber,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = NewRunner(o.logger)
	}
	return o
}

// Close waits for any detached background work (factory activation)
// to drain. Call during shutdown.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

// Launch runs the pipeline on its own goroutine and delivers the
// outcome on the returned channel.
func (o *Orchestrator) Launch(ctx context.Context, req Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		out <- o.Run(ctx, req)
	}()
	return out
}

// Run executes the full pipeline for one request: deploy the contract
// artifact, activate it, place the cache bid, initialize the token,
// verify factory and token code, and register the token with the
// factory. The returned Outcome carries every executed step's captured
// output; on failure, Outcome.Failure identifies the stage and fault.
func (o *Orchestrator) Run(ctx context.Context, req Request) Outcome {
	run := &pipelineRun{
		o:      o,
		req:    req,
		logger: o.logger.With(slog.String("token", req.Symbol)),
	}

	if err := req.Validate(); err != nil {
		return run.fail(&PipelineError{
			Stage:   StageValidate,
			Kind:    FaultPrecondition,
			Message: err.Error(),
			Err:     err,
		})
	}

	workdir, err := o.makeWorkdir()
	if err != nil {
		return run.fail(&PipelineError{
			Stage:   StageValidate,
			Kind:    FaultPrecondition,
			Message: fmt.Sprintf("create scratch directory: %v", err),
			Err:     err,
		})
	}
	defer os.RemoveAll(workdir)
	run.workdir = workdir

	if prober, err := o.openProber(ctx); err != nil {
		run.logger.Warn("chain prober unavailable, structured probes skipped",
			slog.String("error", err.Error()))
	} else {
		run.prober = prober
		defer prober.Close()
	}

	return run.execute(ctx)
}

func (o *Orchestrator) makeWorkdir() (string, error) {
	base := o.cfg.ScratchDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "launchpad-"+ulid.New())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (o *Orchestrator) openProber(ctx context.Context) (ChainProber, error) {
	dialCtx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()
	return o.dial(dialCtx, o.cfg.RPCEndpoint)
}

// pipelineRun holds the per-request state of one pipeline execution.
type pipelineRun struct {
	o       *Orchestrator
	req     Request
	logger  *slog.Logger
	workdir string
	prober  ChainProber

	steps    []StepResult
	token    ethereum.Address
	rawToken string
}

func (r *pipelineRun) execute(ctx context.Context) Outcome {
	type stepFn func(context.Context) *PipelineError
	for _, fn := range []stepFn{
		r.deploy,
		r.activate,
		r.cacheBid,
		r.initialize,
		r.activateFactory,
		r.verifyFactory,
		r.verifyToken,
		r.register,
	} {
		if perr := fn(ctx); perr != nil {
			return r.fail(perr)
		}
	}

	r.logger.Info("deployment complete", slog.String("address", r.token.Hex()))
	return Outcome{
		TokenAddress:    r.token,
		RawTokenAddress: r.rawToken,
		Steps:           r.steps,
		Success:         true,
	}
}

func (r *pipelineRun) fail(perr *PipelineError) Outcome {
	r.logger.Error("deployment failed",
		slog.String("stage", perr.Stage.String()),
		slog.String("fault", string(perr.Kind)),
		slog.String("message", perr.Message),
	)
	return Outcome{
		TokenAddress:    r.token,
		RawTokenAddress: r.rawToken,
		Steps:           r.steps,
		Failure:         perr,
	}
}

// runStep executes one command under the given timeout and records the
// step. The returned PipelineError is nil on success; a benign failure
// is NOT absorbed here, callers classify.
func (r *pipelineRun) runStep(ctx context.Context, stage Stage, spec CommandSpec, timeout time.Duration) (StepResult, *PipelineError) {
	if spec.Dir == "" {
		spec.Dir = r.workdir
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := r.o.runner.Run(stepCtx, spec)
	step := StepResult{
		Stage:     stage,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Succeeded: err == nil,
	}
	if err == nil {
		r.steps = append(r.steps, step)
		return step, nil
	}

	kind := FaultExecution
	if errors.Is(err, context.DeadlineExceeded) {
		kind = FaultTimeout
	}
	r.steps = append(r.steps, step)
	return step, &PipelineError{
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
		Err:     err,
	}
}

// absorbBenign rewrites a failed step as ignored when its stderr
// matches a known benign pattern for the stage. Returns true when the
// failure was absorbed.
func (r *pipelineRun) absorbBenign(stage Stage, step StepResult) bool {
	verdict := Classify(stage, step.Stderr)
	if !verdict.Benign {
		return false
	}
	// An absorbed step contributes no output downstream; the tool was
	// reporting "already done", not doing work.
	for i := len(r.steps) - 1; i >= 0; i-- {
		if r.steps[i].Stage == stage {
			r.steps[i].Succeeded = true
			r.steps[i].IgnoredReason = verdict.Reason
			r.steps[i].Stdout = ""
			r.steps[i].Stderr = ""
			break
		}
	}
	r.logger.Info("step failure absorbed",
		slog.String("stage", stage.String()),
		slog.String("reason", verdict.Reason),
	)
	return true
}

// deploy runs the contract deployment and extracts the new contract
// address. The address in the tool output is the authoritative success
// signal; a zero exit without an address is still a failure.
func (r *pipelineRun) deploy(ctx context.Context) *PipelineError {
	step, perr := r.runStep(ctx, StageDeploy, r.o.builder.Deploy(), r.o.cfg.SendTimeout)
	if perr != nil {
		return perr
	}

	raw, ok := ExtractAddress(step.Stdout + "\n" + step.Stderr)
	if !ok {
		return &PipelineError{
			Stage:   StageDeploy,
			Kind:    FaultExecution,
			Message: "no contract address found in deployer output",
			Stdout:  step.Stdout,
			Stderr:  step.Stderr,
		}
	}
	addr, err := ethereum.DecodeAddress(raw)
	if err != nil || addr.IsZero() {
		return &PipelineError{
			Stage:   StageDeploy,
			Kind:    FaultPrecondition,
			Message: fmt.Sprintf("deployer reported unusable address %s", raw),
			Stdout:  step.Stdout,
			Stderr:  step.Stderr,
			Err:     err,
		}
	}
	r.token = addr
	r.rawToken = raw
	r.logger.Info("contract deployed", slog.String("address", addr.Hex()))
	return nil
}

func (r *pipelineRun) activate(ctx context.Context) *PipelineError {
	step, perr := r.runStep(ctx, StageActivate, r.o.builder.Activate(r.token), r.o.cfg.SendTimeout)
	if perr != nil && perr.Kind == FaultExecution && r.absorbBenign(StageActivate, step) {
		return nil
	}
	return perr
}

func (r *pipelineRun) cacheBid(ctx context.Context) *PipelineError {
	step, perr := r.runStep(ctx, StageCacheBid, r.o.builder.CacheBid(r.token), r.o.cfg.SendTimeout)
	if perr != nil && perr.Kind == FaultExecution && r.absorbBenign(StageCacheBid, step) {
		return nil
	}
	return perr
}

// initialize sets the token's name, symbol, and supply. The supply is
// passed in whole units; the contract applies its own decimal scaling.
func (r *pipelineRun) initialize(ctx context.Context) *PipelineError {
	spec := r.o.builder.Initialize(r.token, r.req.Name, r.req.Symbol, r.req.InitialSupply)
	step, perr := r.runStep(ctx, StageInitialize, spec, r.o.cfg.SendTimeout)
	if perr != nil {
		return perr
	}
	return r.confirm(ctx, StageInitialize, step)
}

// activateFactory fires the factory activation without waiting for it.
// Factory activation is idempotent on-chain and its success is not a
// precondition for registration, so the pipeline does not block on it.
func (r *pipelineRun) activateFactory(ctx context.Context) *PipelineError {
	spec := r.o.builder.Activate(r.req.FactoryAddress)
	detached := context.WithoutCancel(ctx)

	r.o.wg.Add(1)
	go func() {
		defer r.o.wg.Done()
		bgCtx, cancel := context.WithTimeout(detached, r.o.cfg.SendTimeout)
		defer cancel()
		res, err := r.o.runner.Run(bgCtx, spec)
		if err != nil {
			if Classify(StageFactoryActivate, res.Stderr).Benign {
				r.logger.Info("factory already activated")
				return
			}
			r.logger.Warn("factory activation failed",
				slog.String("error", err.Error()))
			return
		}
		r.logger.Info("factory activated")
	}()

	r.steps = append(r.steps, StepResult{
		Stage:         StageFactoryActivate,
		Succeeded:     true,
		IgnoredReason: "activation dispatched in background",
	})
	return nil
}

func (r *pipelineRun) verifyFactory(ctx context.Context) *PipelineError {
	return r.verifyCode(ctx, StageFactoryVerify, r.req.FactoryAddress, "factory")
}

func (r *pipelineRun) verifyToken(ctx context.Context) *PipelineError {
	return r.verifyCode(ctx, StageTokenVerify, r.token, "token")
}

// verifyCode probes the bytecode at an address. A probe that cannot
// run is advisory only; a probe that answers "no code" aborts, since
// registering against a codeless address can only fail later with a
// less useful error.
func (r *pipelineRun) verifyCode(ctx context.Context, stage Stage, addr ethereum.Address, what string) *PipelineError {
	step, perr := r.runStep(ctx, stage, r.o.builder.ReadCode(addr), r.o.cfg.ProbeTimeout)
	if perr != nil {
		r.logger.Warn("code probe did not complete, continuing",
			slog.String("stage", stage.String()),
			slog.String("error", perr.Message),
		)
		// Rewrite the recorded failure as absorbed.
		if n := len(r.steps); n > 0 && r.steps[n-1].Stage == stage {
			r.steps[n-1].Succeeded = true
			r.steps[n-1].IgnoredReason = "probe unavailable"
		}
		return nil
	}

	if ethereum.IsEmptyCode(step.Stdout) {
		return &PipelineError{
			Stage:   stage,
			Kind:    FaultPrecondition,
			Message: fmt.Sprintf("no contract code at %s address %s", what, addr.Hex()),
			Stdout:  step.Stdout,
			Stderr:  step.Stderr,
		}
	}
	return nil
}

// register submits the token to the factory registry. A structured
// duplicate check runs first so an already-registered token surfaces
// as its own fault instead of a raw revert.
func (r *pipelineRun) register(ctx context.Context) *PipelineError {
	if r.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, r.o.cfg.ProbeTimeout)
		registered, err := r.prober.IsRegistered(probeCtx, r.req.FactoryAddress.Hex(), r.token.Hex())
		cancel()
		switch {
		case err != nil:
			r.logger.Warn("registration pre-check failed, attempting registration anyway",
				slog.String("error", err.Error()))
		case registered:
			return &PipelineError{
				Stage:   StageRegister,
				Kind:    FaultDuplicateRegistration,
				Message: fmt.Sprintf("token %s is already registered with the factory", r.token.Hex()),
			}
		}
	}

	quantity, err := ToMinimalUnits(r.req.InitialSupply)
	if err != nil {
		return &PipelineError{
			Stage:   StageRegister,
			Kind:    FaultPrecondition,
			Message: fmt.Sprintf("convert supply to base units: %v", err),
			Err:     err,
		}
	}

	spec := r.o.builder.Register(r.req.FactoryAddress, r.token, r.req.Name, r.req.Symbol, quantity)
	step, perr := r.runStep(ctx, StageRegister, spec, r.o.cfg.SendTimeout)
	if perr != nil {
		// Registration is the step most likely to hit on-chain
		// precondition reverts, so the failure names every parameter.
		perr.Message = fmt.Sprintf("registerToken(factory=%s, token=%s, name=%q, symbol=%q, quantity=%s): %s",
			r.req.FactoryAddress.Hex(), r.token.Hex(), r.req.Name, r.req.Symbol, quantity, perr.Message)
		return perr
	}
	return r.confirm(ctx, StageRegister, step)
}

// confirm waits for the transaction reported by a step to be mined.
// Missing prober or missing hash degrade to accepting the tool's own
// exit status; a mined-but-reverted transaction is fatal.
func (r *pipelineRun) confirm(ctx context.Context, stage Stage, step StepResult) *PipelineError {
	if r.prober == nil {
		return nil
	}
	hash, ok := ExtractTxHash(step.Stdout + "\n" + step.Stderr)
	if !ok {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.o.cfg.ConfirmTimeout)
	defer cancel()
	if err := r.prober.WaitForReceipt(waitCtx, hash); err != nil {
		kind := FaultExecution
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FaultTimeout
		}
		return &PipelineError{
			Stage:   stage,
			Kind:    kind,
			Message: fmt.Sprintf("transaction %s not confirmed: %v", hash, err),
			Stdout:  step.Stdout,
			Stderr:  step.Stderr,
			Err:     err,
		}
	}
	return nil
}
