// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_agent_local_tool holds the built-in tools every agent
// can enable without configuring a webhook: call control and a pair of
// canned scheduling tools. Results are plain maps; the executor relays
// them to the model and the session reacts to control actions.
package internal_agent_local_tool

import (
	"context"
	"fmt"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
)

// ToolCaller is one locally executed tool: a schema for the model and a
// handler for its invocations.
type ToolCaller interface {
	Name() string
	Definition() *internal_agent_executor.ToolDefinition
	Call(ctx context.Context, arguments map[string]interface{}) (map[string]interface{}, error)
}

// All returns the built-in tools in their canonical order.
func All() []ToolCaller {
	return []ToolCaller{
		&endCallTool{},
		&transferCallTool{},
		&checkAvailabilityTool{},
		&bookAppointmentTool{},
	}
}

// Lookup resolves one built-in by name.
func Lookup(name string) (ToolCaller, bool) {
	for _, caller := range All() {
		if caller.Name() == name {
			return caller, true
		}
	}
	return nil, false
}

func stringArgument(arguments map[string]interface{}, key string) string {
	if value, ok := arguments[key].(string); ok {
		return value
	}
	return ""
}

// =============================================================================
// end_call
// =============================================================================

type endCallTool struct{}

func (*endCallTool) Name() string { return "end_call" }

func (*endCallTool) Definition() *internal_agent_executor.ToolDefinition {
	return &internal_agent_executor.ToolDefinition{
		Name:        "end_call",
		Description: "End the current phone call.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reason": map[string]interface{}{"type": "string", "description": "Reason for ending the call"},
			},
			"required": []string{"reason"},
		},
	}
}

// Call returns the end_call action; the session treats it as terminal.
func (*endCallTool) Call(_ context.Context, arguments map[string]interface{}) (map[string]interface{}, error) {
	reason := stringArgument(arguments, "reason")
	if reason == "" {
		reason = "completed"
	}
	return map[string]interface{}{"action": "end_call", "reason": reason}, nil
}

// =============================================================================
// transfer_call
// =============================================================================

type transferCallTool struct{}

func (*transferCallTool) Name() string { return "transfer_call" }

func (*transferCallTool) Definition() *internal_agent_executor.ToolDefinition {
	return &internal_agent_executor.ToolDefinition{
		Name:        "transfer_call",
		Description: "Transfer the call to another phone number or department.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"to_number":  map[string]interface{}{"type": "string", "description": "Phone number to transfer to"},
				"department": map[string]interface{}{"type": "string", "description": "Department name"},
			},
			"required": []string{},
		},
	}
}

func (*transferCallTool) Call(_ context.Context, arguments map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"action":     "transfer_call",
		"to":         stringArgument(arguments, "to_number"),
		"department": stringArgument(arguments, "department"),
	}, nil
}

// =============================================================================
// check_availability
// =============================================================================

type checkAvailabilityTool struct{}

func (*checkAvailabilityTool) Name() string { return "check_availability" }

func (*checkAvailabilityTool) Definition() *internal_agent_executor.ToolDefinition {
	return &internal_agent_executor.ToolDefinition{
		Name:        "check_availability",
		Description: "Check availability for a given date and time.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"date": map[string]interface{}{"type": "string", "description": "Date (YYYY-MM-DD)"},
				"time": map[string]interface{}{"type": "string", "description": "Time (HH:MM)"},
			},
			"required": []string{"date"},
		},
	}
}

// Call answers with canned slots. Real availability belongs to a custom
// webhook; this keeps demo agents conversational without one.
func (*checkAvailabilityTool) Call(_ context.Context, arguments map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"available": true,
		"date":      arguments["date"],
		"slots":     []string{"09:00", "10:00", "14:00", "15:00"},
	}, nil
}

// =============================================================================
// book_appointment
// =============================================================================

type bookAppointmentTool struct{}

func (*bookAppointmentTool) Name() string { return "book_appointment" }

func (*bookAppointmentTool) Definition() *internal_agent_executor.ToolDefinition {
	return &internal_agent_executor.ToolDefinition{
		Name:        "book_appointment",
		Description: "Book an appointment for the caller.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name":  map[string]interface{}{"type": "string", "description": "Caller's name"},
				"date":  map[string]interface{}{"type": "string", "description": "Date (YYYY-MM-DD)"},
				"time":  map[string]interface{}{"type": "string", "description": "Time (HH:MM)"},
				"notes": map[string]interface{}{"type": "string", "description": "Additional notes"},
			},
			"required": []string{"name", "date", "time"},
		},
	}
}

func (*bookAppointmentTool) Call(_ context.Context, arguments map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"booked": true,
		"confirmation": fmt.Sprintf("Appointment for %s on %s at %s",
			stringArgument(arguments, "name"),
			stringArgument(arguments, "date"),
			stringArgument(arguments, "time")),
	}, nil
}
