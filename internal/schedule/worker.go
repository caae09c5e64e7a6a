package schedule

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// NewWorker builds a Temporal worker serving the diagnosis task queue.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(DiagnosisWorkflow)
	w.RegisterActivity(acts.RunDiagnosis)
	return w
}
