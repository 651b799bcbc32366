package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want bool
	}{
		{"contract submitted", TypeContractSubmitted, true},
		{"approval decided", TypeApprovalDecided, true},
		{"step activated", TypeStepActivated, true},
		{"unknown", Type("contract.exploded"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.IsValid())
		})
	}
}

func TestAll_ContainsEveryKnownType(t *testing.T) {
	all := All()
	assert.Len(t, all, len(knownTypes))
	for _, typ := range all {
		assert.True(t, typ.IsValid(), typ)
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeContractSubmitted, 42, map[string]interface{}{"workflow_id": int64(7)})

	require.NotNil(t, evt)
	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.NotEqual(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, int64(42), evt.ContractID)
	assert.Equal(t, int64(7), evt.GetPayloadInt("workflow_id"))
	assert.False(t, evt.Timestamp.IsZero())
	assert.Nil(t, evt.ActorID)
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeStepSkipped, 1, nil)
	require.NotNil(t, evt.Payload)
	assert.Equal(t, "", evt.GetPayloadString("missing"))
}

func TestEvent_Follow(t *testing.T) {
	root := NewEvent(TypeApprovalDecided, 5, nil).WithActor(9)
	next := root.Follow(TypeStepActivated, map[string]interface{}{"step": 2})

	assert.Equal(t, root.CorrelationID, next.CorrelationID)
	assert.NotEqual(t, root.ID, next.ID)
	assert.Equal(t, int64(5), next.ContractID)
	require.NotNil(t, next.ActorID)
	assert.Equal(t, int64(9), *next.ActorID)
	assert.Equal(t, int64(2), next.GetPayloadInt("step"))
}

func TestEvent_WithPayloadDoesNotMutate(t *testing.T) {
	orig := NewEvent(TypeContractRejected, 3, map[string]interface{}{"reason": "price"})
	mod := orig.WithPayload("comment", "too high")

	assert.Equal(t, "", orig.GetPayloadString("comment"))
	assert.Equal(t, "too high", mod.GetPayloadString("comment"))
	assert.Equal(t, "price", mod.GetPayloadString("reason"))
	assert.Equal(t, orig.ID, mod.ID)
}

func TestEvent_GetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeApprovalEscalated, 1, map[string]interface{}{
		"int":   3,
		"int64": int64(4),
		"float": float64(5),
		"str":   "6",
	})
	assert.Equal(t, int64(3), evt.GetPayloadInt("int"))
	assert.Equal(t, int64(4), evt.GetPayloadInt("int64"))
	assert.Equal(t, int64(5), evt.GetPayloadInt("float"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("str"))
}

func TestEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := NewEvent(TypeContractSubmitted, 1, nil).ID
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
