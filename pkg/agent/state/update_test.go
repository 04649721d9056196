package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athletedesk/athletedesk/pkg/graph"
)

func TestUpdate_Apply_UnsetFieldsUntouched(t *testing.T) {
	s := AgentState{
		TopicDomain:         DomainSafeSport,
		RetrievalConfidence: 0.8,
		Answer:              "original",
		QualityRetryCount:   1,
	}

	merged := Update{}.Apply(s)
	assert.Equal(t, s, merged)
}

func TestUpdate_Apply_SetFieldsReplace(t *testing.T) {
	s := AgentState{
		TopicDomain:         DomainEligibility,
		RetrievalConfidence: 0.9,
		RetrievedDocuments:  []Document{{Content: "old"}},
	}

	merged := Update{
		TopicDomain:         Ptr(DomainAntiDoping),
		RetrievalConfidence: Ptr(0.2),
		RetrievedDocuments:  Ptr([]Document{{Content: "new"}}),
	}.Apply(s)

	assert.Equal(t, DomainAntiDoping, merged.TopicDomain)
	assert.Equal(t, 0.2, merged.RetrievalConfidence)
	require.Len(t, merged.RetrievedDocuments, 1)
	assert.Equal(t, "new", merged.RetrievedDocuments[0].Content)
}

// TestUpdate_Apply_EmptySliceIsAnUpdate distinguishes "no change" (nil
// pointer) from "replace with empty" (pointer to empty slice).
func TestUpdate_Apply_EmptySliceIsAnUpdate(t *testing.T) {
	s := AgentState{RetrievedDocuments: []Document{{Content: "old"}}}

	merged := Update{RetrievedDocuments: Ptr([]Document{})}.Apply(s)
	assert.Empty(t, merged.RetrievedDocuments)
}

func TestUpdate_Apply_MessagesAppend(t *testing.T) {
	s := AgentState{Messages: []Message{{Role: "user", Content: "hi"}}}

	merged := Update{
		Messages: []Message{{Role: "assistant", Content: "hello"}},
	}.Apply(s)

	require.Len(t, merged.Messages, 2)
	assert.Equal(t, "hi", merged.Messages[0].Content)
	assert.Equal(t, "hello", merged.Messages[1].Content)
}

func TestUpdate_Apply_FalseBoolIsAnUpdate(t *testing.T) {
	s := AgentState{NeedsClarification: true}
	merged := Update{NeedsClarification: Ptr(false)}.Apply(s)
	assert.False(t, merged.NeedsClarification)
}

func TestNode_MergesHandlerUpdate(t *testing.T) {
	fn := Node(func(_ graph.Context, s AgentState) (Update, error) {
		return Update{Answer: Ptr("done")}, nil
	})

	out, err := fn(graph.NewContext(context.Background()), AgentState{TopicDomain: DomainGovernance})
	require.NoError(t, err)
	assert.Equal(t, "done", out.Answer)
	assert.Equal(t, DomainGovernance, out.TopicDomain)
}

func TestNode_ErrorReturnsStateUnchanged(t *testing.T) {
	sentinel := errors.New("node failed")
	fn := Node(func(_ graph.Context, _ AgentState) (Update, error) {
		return Update{Answer: Ptr("ignored")}, sentinel
	})

	in := AgentState{Answer: "before"}
	out, err := fn(graph.NewContext(context.Background()), in)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "before", out.Answer)
}

func TestLastUserMessage(t *testing.T) {
	s := AgentState{Messages: []Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "answer"},
		{Role: "user", Content: "second"},
	}}
	assert.Equal(t, "second", s.LastUserMessage())

	assert.Empty(t, AgentState{}.LastUserMessage())
	assert.Empty(t, AgentState{Messages: []Message{{Role: "assistant", Content: "x"}}}.LastUserMessage())
}
