package graph

import (
	"encoding/json"
	"fmt"

	"github.com/athletedesk/athletedesk/pkg/graph/checkpoint"
)

// resumeConfig holds configuration for resuming from a checkpoint.
type resumeConfig struct {
	replayNode bool
}

// ResumeOption configures resume behavior.
type ResumeOption func(*resumeConfig)

// WithReplayNode re-executes the checkpointed node instead of continuing
// from its successor. Useful when the node's effects were lost in a crash.
func WithReplayNode() ResumeOption {
	return func(c *resumeConfig) {
		c.replayNode = true
	}
}

// Resume continues execution from the latest checkpoint for a run.
// It loads the checkpoint with the highest sequence and starts execution
// from the node recorded as next.
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	infos, err := store.List(ctx, runID)
	if err != nil {
		return zero, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
	}

	latest := infos[len(infos)-1]
	data, err := store.Load(ctx, runID, latest.NodeID)
	if err != nil {
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	startNode := cp.NextNode
	if cfg.replayNode {
		startNode = cp.NodeID
	}

	if startNode != END && !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	runCfg := defaultRunConfig()
	runCfg.checkpointStore = store
	runCfg.runID = runID
	runCfg.sequence = cp.Sequence

	result, _, err := cg.runFrom(ctx, ctx, state, startNode, &runCfg)
	return result, err
}
