// Package orderflow runs the order pipeline as a Temporal workflow so each
// step is retried and recorded durably.
package orderflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	temporalworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"example.com/resource-catalogue/internal/order"
	"example.com/resource-catalogue/internal/stac"
)

const (
	TaskQueue = "catalogue-order-task-queue"

	workflowName           = "catalogue.order"
	prepareActivityName    = "order.prepare"
	dispatchActivityName   = "order.dispatch"
	markFailedActivityName = "order.mark_failed"
	notifyActivityName     = "order.notify"
)

// nonRetryable lists the pipeline error kinds. They describe the request,
// so retrying cannot change the answer.
var nonRetryable = []string{
	string(order.KindValidation),
	string(order.KindNotFound),
	string(order.KindUnsupported),
	string(order.KindUpstream),
	string(order.KindExecutor),
}

// Steps are the pipeline stages the activities delegate to.
type Steps interface {
	Prepare(ctx context.Context, sub order.Submission) (order.Prepared, error)
	Dispatch(ctx context.Context, prep order.Prepared) error
	MarkFailed(ctx context.Context, prep order.Prepared) (stac.Document, error)
	Notify(ctx context.Context, prep order.Prepared) error
}

// Activities hosts the activity implementations over the pipeline.
type Activities struct {
	steps  Steps
	logger *slog.Logger
}

func NewActivities(steps Steps, logger *slog.Logger) *Activities {
	return &Activities{steps: steps, logger: logger}
}

// PrepareActivity validates the submission and writes the pending record.
func (a *Activities) PrepareActivity(ctx context.Context, sub order.Submission) (order.Prepared, error) {
	prep, err := a.steps.Prepare(ctx, sub)
	if err != nil {
		a.logger.Warn("activity prepare failed", "item", sub.Item, "workspace", sub.Workspace, "error", err)
		return order.Prepared{}, toApplicationError(err)
	}
	a.logger.Info("activity prepare", "location", prep.Order.Location, "short_circuit", prep.ShortCircuit, "status", prep.Status)
	return prep, nil
}

// DispatchActivity calls the workflow executor once.
func (a *Activities) DispatchActivity(ctx context.Context, prep order.Prepared) error {
	return toApplicationError(a.steps.Dispatch(ctx, prep))
}

// MarkFailedActivity rewrites the record as failed.
func (a *Activities) MarkFailedActivity(ctx context.Context, prep order.Prepared) error {
	_, err := a.steps.MarkFailed(ctx, prep)
	return err
}

func (a *Activities) NotifyActivity(ctx context.Context, prep order.Prepared) error {
	return a.steps.Notify(ctx, prep)
}

// toApplicationError turns pipeline errors into non-retryable application
// errors typed by kind. The caller-facing message travels as the detail.
func toApplicationError(err error) error {
	var oe *order.Error
	if !errors.As(err, &oe) {
		return err
	}
	return temporal.NewNonRetryableApplicationError(oe.Error(), string(oe.Kind), nil, oe.Error())
}

// FromWorkflowError recovers the pipeline error carried by a workflow
// failure. Anything else is reported as an upstream failure.
func FromWorkflowError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		for _, kind := range nonRetryable {
			if appErr.Type() != kind {
				continue
			}
			msg := appErr.Error()
			if appErr.HasDetails() {
				_ = appErr.Details(&msg)
			}
			return &order.Error{Kind: order.Kind(kind), Message: msg, Err: err}
		}
	}
	return &order.Error{Kind: order.KindUpstream, Message: "Unable to run order workflow", Err: err}
}

// OrderWorkflow runs prepare, dispatch and notify, compensating with
// mark_failed when dispatch fails.
func OrderWorkflow(ctx workflow.Context, sub order.Submission) (order.Outcome, error) {
	logger := workflow.GetLogger(ctx)

	prepareCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			NonRetryableErrorTypes: nonRetryable,
		},
	})
	var prep order.Prepared
	if err := workflow.ExecuteActivity(prepareCtx, prepareActivityName, sub).Get(ctx, &prep); err != nil {
		logger.Warn("prepare failed", "item", sub.Item, "error", err)
		return order.Outcome{}, err
	}
	if prep.ShortCircuit {
		logger.Info("order not placed", "location", prep.Order.Location, "status", prep.Status)
		return prep.Outcome(), nil
	}

	dispatchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	followUpCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
		},
	})

	if err := workflow.ExecuteActivity(dispatchCtx, dispatchActivityName, prep).Get(ctx, nil); err != nil {
		logger.Error("dispatch failed", "location", prep.Order.Location, "error", err)
		if ferr := workflow.ExecuteActivity(followUpCtx, markFailedActivityName, prep).Get(ctx, nil); ferr != nil {
			logger.Error("mark failed failed", "location", prep.Order.Location, "error", ferr)
		}
		if nerr := workflow.ExecuteActivity(followUpCtx, notifyActivityName, prep).Get(ctx, nil); nerr != nil {
			logger.Error("notify failed", "location", prep.Order.Location, "error", nerr)
		}
		return order.Outcome{}, err
	}

	if err := workflow.ExecuteActivity(followUpCtx, notifyActivityName, prep).Get(ctx, nil); err != nil {
		logger.Error("notify failed", "location", prep.Order.Location, "error", err)
	}
	logger.Info("order placed", "location", prep.Order.Location)
	return prep.Outcome(), nil
}

// RegisterWorker wires up the Temporal worker consuming the order task queue.
func RegisterWorker(c client.Client, steps Steps, logger *slog.Logger) temporalworker.Worker {
	w := temporalworker.New(c, TaskQueue, temporalworker.Options{})
	w.RegisterWorkflowWithOptions(OrderWorkflow, workflow.RegisterOptions{Name: workflowName})
	registerActivities(w, NewActivities(steps, logger.With("component", "order.activities")))
	return w
}

type activityRegistry interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

func registerActivities(r activityRegistry, a *Activities) {
	r.RegisterActivityWithOptions(a.PrepareActivity, activity.RegisterOptions{Name: prepareActivityName})
	r.RegisterActivityWithOptions(a.DispatchActivity, activity.RegisterOptions{Name: dispatchActivityName})
	r.RegisterActivityWithOptions(a.MarkFailedActivity, activity.RegisterOptions{Name: markFailedActivityName})
	r.RegisterActivityWithOptions(a.NotifyActivity, activity.RegisterOptions{Name: notifyActivityName})
}

// Runner places orders through Temporal and waits for the result, so
// callers see the same outcome as the in-process pipeline.
type Runner struct {
	client client.Client
	logger *slog.Logger
}

func NewRunner(c client.Client, logger *slog.Logger) *Runner {
	return &Runner{client: c, logger: logger.With("component", "order.orchestrator")}
}

func (r *Runner) Order(ctx context.Context, sub order.Submission) (order.Outcome, error) {
	options := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("order-%s-%s", sub.Workspace, uuid.NewString()),
		TaskQueue:                TaskQueue,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionTimeout: 10 * time.Minute,
	}
	we, err := r.client.ExecuteWorkflow(ctx, options, workflowName, sub)
	if err != nil {
		r.logger.Error("start workflow failed", "item", sub.Item, "workspace", sub.Workspace, "error", err)
		return order.Outcome{}, &order.Error{Kind: order.KindUpstream, Message: "Unable to start order workflow", Err: err}
	}
	var out order.Outcome
	if err := we.Get(ctx, &out); err != nil {
		r.logger.Warn("order workflow failed", "workflow_id", we.GetID(), "run_id", we.GetRunID(), "error", err)
		return order.Outcome{}, FromWorkflowError(err)
	}
	r.logger.Info("order workflow completed", "workflow_id", we.GetID(), "run_id", we.GetRunID(), "location", out.Location, "created", out.Created)
	return out, nil
}
