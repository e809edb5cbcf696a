package webtransport

import (
	"context"
	"fmt"

	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/dispatch"
	"github.com/komodore/core/internal/dockerexec"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/resources"
	"github.com/komodore/core/internal/store"
)

// Executor holds the dependencies behind every execute variant's actual
// Periphery call or local run, factored out of Server so a caller with no
// HTTP request in hand — the Scheduler's synthetic user, the Webhook
// Listener — can invoke the same Deploy/RunAction/RunProcedure machinery
// the /execute route uses, via RunOperation.
type Executor struct {
	store      *store.Store
	clients    ClientFactory
	clock      clock.Clock
	dispatcher *dispatch.Dispatcher
}

// NewExecutor constructs an Executor.
func NewExecutor(st *store.Store, clients ClientFactory, disp *dispatch.Dispatcher, clk clock.Clock) *Executor {
	return &Executor{store: st, clients: clients, clock: clk, dispatcher: disp}
}

// serverIdFor extracts the server_id a Deployment/Stack resource's
// config points at, the same field internal/permissions.parentServerId
// reads for specific-set inheritance.
func serverIdFor(r *model.Resource) (string, error) {
	v, ok := r.Config["server_id"]
	if !ok {
		return "", fmt.Errorf("%w: resource has no server_id", model.ErrBadRequest)
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: resource has no server_id", model.ErrBadRequest)
	}
	return id, nil
}

// remoteHandler builds a dispatch.Handler that calls a single Periphery
// execute variant against the server owning update.Target, appending one
// log stage recording its stdout/stderr/success.
func (e *Executor) remoteHandler(stage, variant string, buildParams func(res *model.Resource) (any, error)) dispatch.Handler {
	return func(ctx context.Context, update *model.Update) error {
		return e.runRemoteVariant(ctx, update, update.Target, stage, variant, buildParams)
	}
}

// remoteOperationHandler builds a dispatch.Handler for a fixed target,
// the shape runStage/RunOperation need when the target isn't update.Target.
func (e *Executor) remoteOperationHandler(target model.ResourceTarget, op stageOp) dispatch.Handler {
	return func(ctx context.Context, update *model.Update) error {
		return e.runRemoteVariant(ctx, update, target, op.stage, op.variant, func(res *model.Resource) (any, error) {
			return map[string]any{"id": res.Id, "name": res.Name, "config": res.Config}, nil
		})
	}
}

// runRemoteVariant is remoteHandler's body, parameterized on an explicit
// target rather than update.Target so a Procedure stage can invoke the
// exact same Periphery call a standalone execute would, against a target
// that differs from the Procedure resource itself.
func (e *Executor) runRemoteVariant(ctx context.Context, update *model.Update, target model.ResourceTarget, stage, variant string, buildParams func(res *model.Resource) (any, error)) error {
	res, err := e.store.GetResource(target.Kind, target.Id)
	if err != nil {
		return err
	}
	serverId := target.Id
	if target.Kind != model.KindServer {
		serverId, err = serverIdFor(res)
		if err != nil {
			return err
		}
	}
	client, err := e.clients(serverId)
	if err != nil {
		return err
	}
	params, err := buildParams(res)
	if err != nil {
		return err
	}

	start := e.clock.Now()
	var result execResult
	callErr := client.Call(ctx, variant, params, &result)
	end := e.clock.Now()
	update.PushLog(model.Log{
		Stage:   stage,
		Stdout:  result.Stdout,
		Stderr:  result.Stderr,
		Success: callErr == nil && result.Success,
		Start:   start,
		End:     end,
	})
	return callErr
}

// runActionVariant runs an Action's script locally on Core rather than
// relaying to a Periphery server — Actions carry no server_id, running the
// same way the original scripted-action runtime executes host-local
// automation rather than container operations against a remote daemon.
func (e *Executor) runActionVariant(ctx context.Context, update *model.Update, target model.ResourceTarget) error {
	res, err := e.store.GetResource(target.Kind, target.Id)
	if err != nil {
		return err
	}
	cfg, err := resources.DecodeConfig[model.ActionConfig](res.Config)
	if err != nil {
		return err
	}

	start := e.clock.Now()
	result, runErr := dockerexec.RunScript(ctx, cfg.Script, nil)
	end := e.clock.Now()
	update.PushLog(model.Log{
		Stage:   "run",
		Stdout:  result.Stdout,
		Stderr:  result.Stderr,
		Success: result.Success,
		Start:   start,
		End:     end,
	})
	return runErr
}

func (e *Executor) actionHandler(target model.ResourceTarget) dispatch.Handler {
	return func(ctx context.Context, update *model.Update) error {
		return e.runActionVariant(ctx, update, target)
	}
}

func (e *Executor) procedureHandler(cfg model.ProcedureConfig) dispatch.Handler {
	return func(ctx context.Context, update *model.Update) error {
		for i, stage := range cfg.Stages {
			if err := e.runStage(ctx, update, stage); err != nil {
				return fmt.Errorf("stage %d (%s): %w", i, stage.Operation, err)
			}
		}
		return nil
	}
}

// stageOp resolves a Procedure stage's named operation to the same
// stage-label/Periphery-variant pair simpleExecute wires up for a
// standalone execute of that operation; local marks operations (RunAction)
// that never leave Core.
type stageOp struct {
	stage   string
	variant string
	local   bool
}

var stageOps = map[string]stageOp{
	"Deploy":        {stage: "deploy", variant: "Deploy"},
	"StartServer":   {stage: "start", variant: "StartContainer"},
	"StopServer":    {stage: "stop", variant: "StopContainer"},
	"RestartServer": {stage: "restart", variant: "RestartContainer"},
	"Destroy":       {stage: "destroy", variant: "RemoveContainer"},
	"DeployStack":   {stage: "deploy", variant: "ComposeUp"},
	"DestroyStack":  {stage: "destroy", variant: "ComposeDown"},
	"PullImage":     {stage: "pull", variant: "PullImage"},
	"RunBuild":      {stage: "build", variant: "RunBuild"},
	"RunAction":     {stage: "run", local: true},
}

// runStage executes one Procedure stage against its own target, composing
// the same remote/local handlers a standalone Execute of that operation
// would use (spec §4.10's stage sequencing).
func (e *Executor) runStage(ctx context.Context, update *model.Update, stage model.ProcedureStage) error {
	op, ok := stageOps[stage.Operation]
	if !ok {
		return fmt.Errorf("%w: unknown procedure stage operation %q", model.ErrBadRequest, stage.Operation)
	}
	if op.local {
		return e.runActionVariant(ctx, update, stage.Target)
	}
	return e.runRemoteVariant(ctx, update, stage.Target, op.stage, op.variant, func(res *model.Resource) (any, error) {
		return map[string]any{"id": res.Id, "name": res.Name, "config": res.Config}, nil
	})
}

// RunOperation invokes operation against target through the Execution
// Dispatcher with no HTTP request in hand — the path the Scheduler's
// synthetic user (spec §4.8) and the Webhook Listener (spec §4.13) use to
// fire a real Deploy/RunAction/RunProcedure instead of recording a log
// that never did anything.
func (e *Executor) RunOperation(ctx context.Context, target model.ResourceTarget, operation, operator string) (*model.Update, error) {
	var handler dispatch.Handler
	if operation == "RunProcedure" {
		res, err := e.store.GetResource(target.Kind, target.Id)
		if err != nil {
			return nil, err
		}
		cfg, err := resources.DecodeConfig[model.ProcedureConfig](res.Config)
		if err != nil {
			return nil, err
		}
		handler = e.procedureHandler(cfg)
	} else {
		op, ok := stageOps[operation]
		if !ok {
			return nil, fmt.Errorf("%w: unknown operation %q", model.ErrBadRequest, operation)
		}
		if op.local {
			handler = e.actionHandler(target)
		} else {
			handler = e.remoteOperationHandler(target, op)
		}
	}
	return e.dispatcher.Execute(ctx, dispatch.Request{Operation: operation, Target: target, Operator: operator}, handler)
}
