package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"jsonrpc":"2.0","id":"abc","method":"x"}`, "abc"},
		{`{"jsonrpc":"2.0","id":42,"method":"x"}`, "42"},
		{`{"jsonrpc":"2.0","method":"x"}`, ""},
	}

	for _, tt := range tests {
		var req MCPRequest
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))
		assert.Equal(t, tt.want, req.GetIDString())
	}
}

func TestToolCallParams_ArgumentsPreferred(t *testing.T) {
	params, err := ParseToolCallParams([]byte(`{
		"name": "list_endpoints",
		"arguments": {"limit": 5},
		"parameters": {"limit": 99}
	}`))
	require.NoError(t, err)
	assert.Equal(t, float64(5), params.Args()["limit"])
}

func TestToolCallParams_ParametersFallback(t *testing.T) {
	params, err := ParseToolCallParams([]byte(`{
		"name": "list_endpoints",
		"parameters": {"limit": 7}
	}`))
	require.NoError(t, err)
	assert.Equal(t, float64(7), params.Args()["limit"])
}

func TestNewSuccessResponseRoundTrip(t *testing.T) {
	resp, err := NewSuccessResponse("id1", map[string]string{"k": "v"})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded MCPResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.0", decoded.JSONRPC)
	assert.Equal(t, "id1", decoded.GetIDString())
	assert.Nil(t, decoded.Error)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("id2", -32601, "method not found")
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
	assert.Equal(t, "method not found", resp.Error.Message)
	assert.Nil(t, resp.Result)
}

func TestNewToolResultText(t *testing.T) {
	result := NewToolResultText("hello", true)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, "hello", result.Content[0].Text)
	assert.True(t, result.IsError)
}
