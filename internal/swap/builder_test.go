package swap

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSwapMessageDeterministic(t *testing.T) {
	a := BuildSwapMessage(DefaultAmount, "secret1owner")
	b := BuildSwapMessage(DefaultAmount, "secret1owner")

	aJSON, err := json.Marshal(a)
	require.NoError(t, err)
	bJSON, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, aJSON, bJSON, "identical inputs must produce byte-identical output")
}

func TestBuildSwapMessageShape(t *testing.T) {
	intent := BuildSwapMessage("300000", "secret1owner")

	assert.Equal(t, "secret1owner", intent.Sender)
	assert.Equal(t, SUSDCAddress, intent.ContractAddress)
	assert.Equal(t, SUSDCCodeHash, intent.CodeHash)

	msg, ok := intent.Msg.(sendMsg)
	require.True(t, ok)
	assert.Equal(t, "secret1owner", msg.Send.Owner)
	assert.Equal(t, RouterAddress, msg.Send.Recipient)
	assert.Equal(t, "300000", msg.Send.Amount)
	assert.NotEmpty(t, msg.Send.Padding)

	// The inner blob decodes to the fixed three-hop route.
	routeJSON, err := base64.StdEncoding.DecodeString(msg.Send.Msg)
	require.NoError(t, err)

	var route swapRoute
	require.NoError(t, json.Unmarshal(routeJSON, &route))
	assert.Equal(t, "1", route.SwapTokensForExact.ExpectedReturn)
	require.Len(t, route.SwapTokensForExact.Path, 3)
	for _, h := range route.SwapTokensForExact.Path {
		assert.NotEmpty(t, h.Addr)
		assert.Equal(t, pairCodeHash, h.CodeHash)
	}
}

// routeBlobBase64 is the exact inner instruction blob the deployed router
// contract accepts. The builder must reproduce it byte for byte; a drift in
// hop addresses, field order or encoding would make wallets sign a message
// the router rejects.
const routeBlobBase64 = "eyJzd2FwX3Rva2Vuc19mb3JfZXhhY3QiOnsiZXhwZWN0ZWRfcmV0dXJuIjoiMSIsInBhdGgiOlt7ImFkZHIiOiJzZWNyZXQxcXo1N3BlYTRrM25kbWpweTZ0ZGpjdXE0dHpydmpuMGFwaGNhMGsiLCJjb2RlX2hhc2giOiJlODgxNjUzNTNkNWQ3ZTc4NDdmMmM4NDEzNGMzZjc4NzFiMmVlZTY4NGZmYWM5ZmNmOGQ5OWE0ZGEzOWRjMmYyIn0seyJhZGRyIjoic2VjcmV0MWE2ZWZuejl5NzAycGN0bW56ZWp6a2pkeXEwbTYyanlwd3NmazkyIiwiY29kZV9oYXNoIjoiZTg4MTY1MzUzZDVkN2U3ODQ3ZjJjODQxMzRjM2Y3ODcxYjJlZWU2ODRmZmFjOWZjZjhkOTlhNGRhMzlkYzJmMiJ9LHsiYWRkciI6InNlY3JldDF5Nnc0NWZ3ZzlsbjlweGQ2cXlzOGx0amxudHU5eGE0ZjJkZTdzcCIsImNvZGVfaGFzaCI6ImU4ODE2NTM1M2Q1ZDdlNzg0N2YyYzg0MTM0YzNmNzg3MWIyZWVlNjg0ZmZhYzlmY2Y4ZDk5YTRkYTM5ZGMyZjIifV19fQ=="

func TestBuildSwapMessageMatchesRouterWireBlob(t *testing.T) {
	intent := BuildSwapMessage(DefaultAmount, "secret1owner")

	msg, ok := intent.Msg.(sendMsg)
	require.True(t, ok)
	assert.Equal(t, routeBlobBase64, msg.Send.Msg)
}

func TestBuildSwapMessageOwnerVaries(t *testing.T) {
	a := BuildSwapMessage(DefaultAmount, "secret1alice")
	b := BuildSwapMessage(DefaultAmount, "secret1bob")

	assert.NotEqual(t, a.Sender, b.Sender)
	// Route constants are unaffected by the owner.
	assert.Equal(t, a.ContractAddress, b.ContractAddress)
	assert.Equal(t, a.Msg.(sendMsg).Send.Msg, b.Msg.(sendMsg).Send.Msg)
}
