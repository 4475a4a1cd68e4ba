package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// HandoffArgs is the argument passed to the downstream workflow after a run.
type HandoffArgs struct {
	RunID     string `json:"runId"`
	RowID     string `json:"rowId"`
	Mode      string `json:"mode"`
	Object    string `json:"object,omitempty"`
}

// WorkflowLauncher starts executions of a single Cloud Workflow.
type WorkflowLauncher struct {
	client *executions.Client
	parent string
}

func NewWorkflowLauncher(ctx context.Context, projectID, location, workflowID string) (*WorkflowLauncher, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("NewWorkflowLauncher: projectID, location and workflowID cannot be empty")
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflows client: %w", err)
	}
	return &WorkflowLauncher{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}, nil
}

// Launch starts an execution and returns its resource name.
func (l *WorkflowLauncher) Launch(ctx context.Context, args HandoffArgs) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}

	exec, err := l.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    l.parent,
		Execution: &executionspb.Execution{Argument: string(payload)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create workflow execution: %w", err)
	}
	slog.Info("Workflow execution started.", "runId", args.RunID, "execution", exec.GetName())
	return exec.GetName(), nil
}

func (l *WorkflowLauncher) Close() error { return l.client.Close() }
