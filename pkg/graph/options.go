package graph

import (
	"log/slog"
	"time"

	"github.com/athletedesk/athletedesk/pkg/graph/checkpoint"
	"github.com/athletedesk/athletedesk/pkg/graph/observability"
)

// Step records one node visit during a run.
type Step struct {
	// NodeID is the node that executed.
	NodeID string
	// Duration is how long the node took.
	Duration time.Duration
	// Err is the execution error, if any.
	Err error
}

// Trajectory is the ordered sequence of node visits in one run.
// It is appended to by the executor when enabled via WithTrajectory,
// and is used by evaluation and debugging to reconstruct routing decisions.
//
// A Trajectory must not be shared between concurrent runs.
type Trajectory struct {
	Steps []Step
}

// NodeIDs returns the visited node names in execution order.
func (t *Trajectory) NodeIDs() []string {
	ids := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		ids[i] = s.NodeID
	}
	return ids
}

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxIterations int

	logger  *slog.Logger
	metrics observability.MetricsRecorder

	tracingEnabled bool
	spans          observability.SpanManager

	checkpointStore        checkpoint.Store
	runID                  string
	checkpointFailureFatal bool
	sequence               int

	trajectory *Trajectory
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: 1000,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Default: 1000
//
// This prevents routing loops from hanging forever. If a run exceeds this
// limit, Run returns a MaxIterationsError.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithRunLogger sets the logger used for run and node lifecycle logging.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder for this run.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OTel span creation for the run and each node.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if spans != nil {
			c.tracingEnabled = true
			c.spans = spans
		}
	}
}

// WithCheckpointing enables checkpoint persistence after each node.
// A run ID must also be provided via WithRunID.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithRunID sets the run identifier used for checkpointing.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithCheckpointFailureFatal makes checkpoint save failures abort the run.
// By default save failures are logged and execution continues.
func WithCheckpointFailureFatal() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = true
	}
}

// WithTrajectory records each node visit into t during the run.
func WithTrajectory(t *Trajectory) RunOption {
	return func(c *runConfig) {
		c.trajectory = t
	}
}
