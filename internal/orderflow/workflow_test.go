package orderflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"example.com/resource-catalogue/internal/logging"
	"example.com/resource-catalogue/internal/order"
	"example.com/resource-catalogue/internal/stac"
)

type fakeSteps struct {
	prepared    order.Prepared
	prepareErr  error
	dispatchErr error

	prepareCalls int
	dispatched   int
	markedFailed int
	notified     int
}

func (f *fakeSteps) Prepare(context.Context, order.Submission) (order.Prepared, error) {
	f.prepareCalls++
	return f.prepared, f.prepareErr
}

func (f *fakeSteps) Dispatch(context.Context, order.Prepared) error {
	f.dispatched++
	return f.dispatchErr
}

func (f *fakeSteps) MarkFailed(context.Context, order.Prepared) (stac.Document, error) {
	f.markedFailed++
	return stac.Document{}, nil
}

func (f *fakeSteps) Notify(context.Context, order.Prepared) error {
	f.notified++
	return nil
}

func newEnv(t *testing.T, steps *fakeSteps) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(OrderWorkflow, workflow.RegisterOptions{Name: workflowName})
	registerActivities(env, NewActivities(steps, logging.Discard()))
	return env
}

func prepared(shortCircuit bool, status stac.Status) order.Prepared {
	return order.Prepared{
		Order:        order.Descriptor{Location: "https://eodh.example/ws/item_tag", Tag: "_tag"},
		ShortCircuit: shortCircuit,
		Status:       status,
		Item:         stac.Document{"id": "item_tag"},
		ItemKey:      "ws/commercial-data/item_tag.json",
		AddedKeys:    []string{"a"},
	}
}

func TestOrderWorkflow_Placed(t *testing.T) {
	steps := &fakeSteps{prepared: prepared(false, stac.StatusPending)}
	env := newEnv(t, steps)

	env.ExecuteWorkflow(workflowName, order.Submission{Item: "item", Workspace: "ws"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out order.Outcome
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.Created)
	assert.Equal(t, stac.StatusPending, out.Status)
	assert.Equal(t, "https://eodh.example/ws/item_tag", out.Location)
	assert.Equal(t, 1, steps.dispatched)
	assert.Equal(t, 1, steps.notified)
	assert.Zero(t, steps.markedFailed)
}

func TestOrderWorkflow_ShortCircuit(t *testing.T) {
	steps := &fakeSteps{prepared: prepared(true, stac.StatusSucceeded)}
	env := newEnv(t, steps)

	env.ExecuteWorkflow(workflowName, order.Submission{Item: "item", Workspace: "ws"})
	require.NoError(t, env.GetWorkflowError())

	var out order.Outcome
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.False(t, out.Created)
	assert.Equal(t, "Order not placed. Current item status is succeeded", out.Message)
	assert.Zero(t, steps.dispatched)
	assert.Zero(t, steps.notified)
}

func TestOrderWorkflow_ValidationIsNotRetried(t *testing.T) {
	steps := &fakeSteps{prepareErr: &order.Error{Kind: order.KindValidation, Message: "Invalid product bundle"}}
	env := newEnv(t, steps)

	env.ExecuteWorkflow(workflowName, order.Submission{Item: "item", Workspace: "ws"})
	err := FromWorkflowError(env.GetWorkflowError())
	require.Error(t, err)
	assert.Equal(t, order.KindValidation, order.KindOf(err))
	assert.Equal(t, "Invalid product bundle", err.Error())
	assert.Equal(t, 1, steps.prepareCalls)
}

func TestOrderWorkflow_DispatchFailureReconciles(t *testing.T) {
	steps := &fakeSteps{
		prepared:    prepared(false, stac.StatusPending),
		dispatchErr: &order.Error{Kind: order.KindExecutor, Message: order.MsgExecutorFailed},
	}
	env := newEnv(t, steps)

	env.ExecuteWorkflow(workflowName, order.Submission{Item: "item", Workspace: "ws"})
	err := FromWorkflowError(env.GetWorkflowError())
	assert.Equal(t, order.KindExecutor, order.KindOf(err))
	assert.Equal(t, order.MsgExecutorFailed, err.Error())
	assert.Equal(t, 1, steps.dispatched)
	assert.Equal(t, 1, steps.markedFailed)
	assert.Equal(t, 1, steps.notified)
}

func TestFromWorkflowError_Untyped(t *testing.T) {
	assert.NoError(t, FromWorkflowError(nil))
	err := FromWorkflowError(errors.New("connection refused"))
	assert.Equal(t, order.KindUpstream, order.KindOf(err))
}

func TestToApplicationError_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, toApplicationError(plain))
	assert.NoError(t, toApplicationError(nil))
}
