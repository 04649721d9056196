package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/athletedesk/athletedesk/pkg/agent/nodes"
	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
	"github.com/athletedesk/athletedesk/pkg/graph/checkpoint"
	"github.com/athletedesk/athletedesk/pkg/graph/observability"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

// SummaryStore persists rolling conversation summaries between turns.
type SummaryStore interface {
	Get(ctx context.Context, conversationID string) (string, error)
	Set(ctx context.Context, conversationID, summary string) error
}

// Request is one athlete turn.
type Request struct {
	ConversationID string
	Messages       []state.Message
}

// Result is what the transport layer renders back to the athlete.
type Result struct {
	RunID      string                `json:"runId"`
	Answer     string                `json:"answer"`
	Disclaimer string                `json:"disclaimer,omitempty"`
	Citations  []state.Citation      `json:"citations,omitempty"`
	Escalation *state.EscalationInfo `json:"escalation,omitempty"`
}

const invokeFallbackAnswer = "Something went wrong on our side and I couldn't process your question. " +
	"Please try again, or contact the Team USA Athlete Ombuds at ombudsman@usathlete.org for anything time-sensitive."

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSummaryStore enables cross-turn conversation summaries.
func WithSummaryStore(s SummaryStore) RunnerOption {
	return func(r *Runner) { r.summaries = s }
}

// WithSummarizer sets the model and breaker used to refresh summaries
// after each turn.
func WithSummarizer(gen nodes.TextGenerator, b *resilience.Breaker) RunnerOption {
	return func(r *Runner) {
		r.summarizer = gen
		r.summaryBreaker = b
	}
}

// WithCheckpointStore enables per-node state persistence for each run.
func WithCheckpointStore(s checkpoint.Store) RunnerOption {
	return func(r *Runner) { r.checkpoints = s }
}

// WithMetrics sets the metrics recorder for graph runs.
func WithMetrics(m observability.MetricsRecorder) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithSpans sets the span manager used to trace runs and nodes.
func WithSpans(s observability.SpanManager) RunnerOption {
	return func(r *Runner) { r.spans = s }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// Runner executes the compiled conversation graph for incoming turns.
type Runner struct {
	compiled *graph.CompiledGraph[state.AgentState]

	summaries      SummaryStore
	summarizer     nodes.TextGenerator
	summaryBreaker *resilience.Breaker
	checkpoints    checkpoint.Store
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	logger         *slog.Logger
}

// NewRunner wraps a compiled graph. Options are all optional; a bare
// Runner still answers questions, just without summaries, checkpoints,
// or metrics.
func NewRunner(compiled *graph.CompiledGraph[state.AgentState], opts ...RunnerOption) *Runner {
	r := &Runner{
		compiled: compiled,
		metrics:  observability.NoopMetrics{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invoke runs one turn. It never returns an error to the caller: any
// failure inside the pipeline degrades to an apologetic answer, because
// the athlete-facing contract is that a question always gets a response.
func (r *Runner) Invoke(ctx context.Context, req Request) Result {
	runID := uuid.NewString()
	log := r.logger.With("run_id", runID, "conversation_id", req.ConversationID)

	initial := state.AgentState{
		Messages:       req.Messages,
		ConversationID: req.ConversationID,
	}
	if r.summaries != nil && req.ConversationID != "" {
		summary, err := r.summaries.Get(ctx, req.ConversationID)
		if err != nil {
			log.Warn("conversation summary unavailable", "error", err)
		} else {
			initial.ConversationSummary = summary
		}
	}

	gctx := graph.NewContext(ctx, graph.WithLogger(log), graph.WithContextRunID(runID))

	runOpts := []graph.RunOption{
		graph.WithRunID(runID),
		graph.WithRunLogger(log),
		graph.WithMetrics(r.metrics),
	}
	if r.spans != nil {
		runOpts = append(runOpts, graph.WithTracing(r.spans))
	}
	if r.checkpoints != nil {
		runOpts = append(runOpts, graph.WithCheckpointing(r.checkpoints))
	}

	final, err := r.compiled.Run(gctx, initial, runOpts...)
	if err != nil {
		log.Error("conversation run failed", "error", err)
		return Result{RunID: runID, Answer: invokeFallbackAnswer}
	}

	if r.summaries != nil && r.summarizer != nil && req.ConversationID != "" {
		r.refreshSummary(ctx, req.ConversationID, final, log)
	}

	return Result{
		RunID:      runID,
		Answer:     final.Answer,
		Disclaimer: final.Disclaimer,
		Citations:  final.Citations,
		Escalation: final.Escalation,
	}
}

// Resume replays an interrupted run from its latest checkpoint and
// returns the completed result.
func (r *Runner) Resume(ctx context.Context, runID string) (Result, error) {
	if r.checkpoints == nil {
		return Result{}, fmt.Errorf("resume requires a checkpoint store")
	}
	log := r.logger.With("run_id", runID)
	gctx := graph.NewContext(ctx, graph.WithLogger(log), graph.WithContextRunID(runID))

	final, err := r.compiled.Resume(gctx, r.checkpoints, runID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		RunID:      runID,
		Answer:     final.Answer,
		Disclaimer: final.Disclaimer,
		Citations:  final.Citations,
		Escalation: final.Escalation,
	}, nil
}

const summarizePrompt = `Summarize this athlete help-desk conversation in at most 150 words,
keeping sport, National Governing Body, deadlines, and any open issues.

Previous summary:
%s

Latest exchange:
%s

Respond with only the updated summary text.`

// refreshSummary folds the finished turn into the rolling summary in the
// background. Best-effort: a failed refresh only costs continuity on the
// next turn.
func (r *Runner) refreshSummary(ctx context.Context, conversationID string, s state.AgentState, log *slog.Logger) {
	go func() {
		c, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		var exchange strings.Builder
		for _, m := range lastMessages(s.Messages, 4) {
			fmt.Fprintf(&exchange, "%s: %s\n", m.Role, m.Content)
		}
		prompt := fmt.Sprintf(summarizePrompt, s.ConversationSummary, exchange.String())

		summary, err := resilience.Do(c, r.summaryBreaker, func(cc context.Context) (string, error) {
			return r.summarizer.Generate(cc, prompt)
		})
		if err != nil {
			log.Warn("summary refresh failed", "error", err)
			return
		}
		if err := r.summaries.Set(c, conversationID, strings.TrimSpace(summary)); err != nil {
			log.Warn("summary store write failed", "error", err)
		}
	}()
}

func lastMessages(msgs []state.Message, n int) []state.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
