package checkpoint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	state, err := json.Marshal(map[string]int{"value": 7})
	require.NoError(t, err)

	cp := New("run-1", "retriever", 3, state, "synthesizer").
		WithAttempt(2).
		WithPrevNode("classifier")

	data, err := cp.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, Version, decoded.Version)
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "retriever", decoded.NodeID)
	assert.Equal(t, 3, decoded.Sequence)
	assert.Equal(t, "synthesizer", decoded.NextNode)
	assert.Equal(t, 2, decoded.Attempt)
	assert.Equal(t, "classifier", decoded.PrevNodeID)
	assert.JSONEq(t, string(state), string(decoded.State))
}

func TestCheckpoint_UnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)
}
