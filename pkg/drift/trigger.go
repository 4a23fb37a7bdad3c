package drift

import (
	"context"

	"github.com/pkg/errors"
)

// SourceInput is the workflow input naming the patch source to build.
const SourceInput = "source"

// Dispatcher starts repository workflows.
type Dispatcher interface {
	DispatchWorkflow(ctx context.Context, repo, workflow, ref string, inputs map[string]string) error
}

// WorkflowTrigger starts the build workflow of Repository for one source.
type WorkflowTrigger struct {
	Dispatcher Dispatcher
	Repository string
	Workflow   string
	Ref        string
}

func (t *WorkflowTrigger) Trigger(ctx context.Context, source string) error {
	err := t.Dispatcher.DispatchWorkflow(ctx, t.Repository, t.Workflow, t.Ref, map[string]string{SourceInput: source})
	return errors.Wrapf(err, "failed to trigger %s for %s", t.Workflow, source)
}
