// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_anthropic

import (
	"encoding/json"
	"testing"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

// wireShape marshals a request param the way the SDK would send it, so
// assertions run against the wire format rather than union internals.
func wireShape(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var shape map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &shape))
	return shape
}

// --- Constructor Tests ---

func TestNewAnthropicChatModelRequiresKey(t *testing.T) {
	_, err := NewAnthropicChatModel(newTestLogger(), "claude-3-5-sonnet-20241022", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: missing api key")
}

func TestAnthropicChatModelName(t *testing.T) {
	model, err := NewAnthropicChatModel(newTestLogger(), "claude-3-5-sonnet-20241022", "sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", model.Name())
}

// --- Conversion Tests ---

func TestHeadSystemTextExtractsLeadingPrompt(t *testing.T) {
	assert.Equal(t, "You help.", headSystemText([]*internal_type.Message{
		{Role: internal_type.MessageRoleSystem, Content: "You help."},
		{Role: internal_type.MessageRoleUser, Content: "Hi"},
	}))

	// No leading system prompt means nothing for the system slot.
	assert.Equal(t, "", headSystemText([]*internal_type.Message{
		{Role: internal_type.MessageRoleUser, Content: "Hi"},
		{Role: internal_type.MessageRoleSystem, Content: "injected later"},
	}))
	assert.Equal(t, "", headSystemText(nil))
}

func TestToMessageParamsMapsRoles(t *testing.T) {
	params := toMessageParams([]*internal_type.Message{
		{Role: internal_type.MessageRoleSystem, Content: "You help."},
		{Role: internal_type.MessageRoleUser, Content: "Hi"},
		{Role: internal_type.MessageRoleAssistant, Content: "Hello!"},
		{Role: internal_type.MessageRoleSystem, Content: "Knowledge context here."},
		{Role: internal_type.MessageRoleUser, Content: "What are your hours?"},
	})

	// The head system prompt rides the system slot, not the turn list.
	// The injected context keeps its position as a user turn.
	require.Len(t, params, 4)

	first := wireShape(t, params[0])
	assert.Equal(t, "user", first["role"])
	blocks := first["content"].([]interface{})
	block := blocks[0].(map[string]interface{})
	assert.Equal(t, "text", block["type"])
	assert.Equal(t, "Hi", block["text"])

	assert.Equal(t, "assistant", wireShape(t, params[1])["role"])
	assert.Equal(t, "user", wireShape(t, params[2])["role"])
	assert.Equal(t, "user", wireShape(t, params[3])["role"])
}

func TestToToolParamsWireShape(t *testing.T) {
	params := toToolParams([]*internal_agent_executor.ToolDefinition{{
		Name:        "book_appointment",
		Description: "Book an appointment slot.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"time": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"time"},
		},
	}})
	require.Len(t, params, 1)

	shape := wireShape(t, params[0])
	assert.Equal(t, "book_appointment", shape["name"])
	assert.Equal(t, "Book an appointment slot.", shape["description"])

	inputSchema, ok := shape["input_schema"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", inputSchema["type"])
	properties, ok := inputSchema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, properties, "time")
	assert.Equal(t, []interface{}{"time"}, inputSchema["required"])
}

func TestToInputSchemaCoercesRequired(t *testing.T) {
	// Decoded JSON carries []interface{}.
	schema := toInputSchema(map[string]interface{}{
		"properties": map[string]interface{}{"city": map[string]interface{}{"type": "string"}},
		"required":   []interface{}{"city", 7, "date"},
	})
	assert.Equal(t, []string{"city", "date"}, schema.Required)

	// Hand-built definitions may carry []string directly.
	schema = toInputSchema(map[string]interface{}{
		"required": []string{"city"},
	})
	assert.Equal(t, []string{"city"}, schema.Required)

	// No required entries is fine.
	schema = toInputSchema(map[string]interface{}{"type": "object"})
	assert.Nil(t, schema.Required)
}
