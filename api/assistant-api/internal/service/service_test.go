// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// Test Fixtures
// =============================================================================

type mockLogger struct{}

func (m *mockLogger) Level() zapcore.Level                                          { return zapcore.DebugLevel }
func (m *mockLogger) Debug(args ...interface{})                                     {}
func (m *mockLogger) Debugf(template string, args ...interface{})                   {}
func (m *mockLogger) Debugw(msg string, keysAndValues ...interface{})               {}
func (m *mockLogger) Info(args ...interface{})                                      {}
func (m *mockLogger) Infof(template string, args ...interface{})                    {}
func (m *mockLogger) Infow(msg string, keysAndValues ...interface{})                {}
func (m *mockLogger) Warn(args ...interface{})                                      {}
func (m *mockLogger) Warnf(template string, args ...interface{})                    {}
func (m *mockLogger) Warnw(msg string, keysAndValues ...interface{})                {}
func (m *mockLogger) Error(args ...interface{})                                     {}
func (m *mockLogger) Errorf(template string, args ...interface{})                   {}
func (m *mockLogger) Errorw(msg string, keysAndValues ...interface{})               {}
func (m *mockLogger) DPanic(args ...interface{})                                    {}
func (m *mockLogger) DPanicf(template string, args ...interface{})                  {}
func (m *mockLogger) Panic(args ...interface{})                                     {}
func (m *mockLogger) Panicf(template string, args ...interface{})                   {}
func (m *mockLogger) Fatal(args ...interface{})                                     {}
func (m *mockLogger) Fatalf(template string, args ...interface{})                   {}
func (m *mockLogger) Benchmark(functionName string, duration time.Duration)         {}
func (m *mockLogger) Tracef(ctx context.Context, format string, a ...interface{})   {}
func (m *mockLogger) Sync() error                                                   { return nil }

type mockConnector struct {
	db *gorm.DB
}

func (c *mockConnector) DB(ctx context.Context) *gorm.DB { return c.db.WithContext(ctx) }
func (c *mockConnector) Ping(ctx context.Context) error  { return nil }
func (c *mockConnector) Close() error                    { return nil }

func newMockDb(t *testing.T) (*mockConnector, sqlmock.Sqlmock) {
	t.Helper()
	sqlDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDb.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDb}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return &mockConnector{db: db}, mock
}

// =============================================================================
// Agent Service Tests
// =============================================================================

func TestAgentServiceGetOrDefaultFallsBack(t *testing.T) {
	conn, _ := newMockDb(t)
	service := NewAgentService(&mockLogger{}, conn, nil)

	agent := service.GetOrDefault(context.Background(), 0)
	require.NotNil(t, agent)
	assert.Equal(t, DefaultAgentName, agent.Name)
	assert.Equal(t, DefaultAgentSystemPrompt, agent.SystemPrompt)
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", agent.VoiceId)
	assert.Equal(t, "gpt-4", agent.LlmModel)
	assert.Equal(t, "en-US", agent.Language)
	assert.True(t, agent.IsActive)
}

func TestAgentServiceGetOrDefaultSkipsInactive(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewAgentService(&mockLogger{}, conn, &configs.SpeechConfig{
		DefaultVoice:    "custom-voice",
		DefaultLanguage: "en-GB",
	})

	rows := sqlmock.NewRows([]string{"id", "name", "system_prompt", "voice_id", "language", "llm_model", "is_active"}).
		AddRow(5, "Disabled", "prompt", "v", "en-US", "gpt-4", false)
	mock.ExpectQuery(`SELECT \* FROM "agents" WHERE id =`).WillReturnRows(rows)

	agent := service.GetOrDefault(context.Background(), 5)
	require.NotNil(t, agent)
	assert.Equal(t, DefaultAgentName, agent.Name)
	assert.Equal(t, "custom-voice", agent.VoiceId)
	assert.Equal(t, "en-GB", agent.Language)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentServiceGetOrDefaultReturnsActiveRow(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewAgentService(&mockLogger{}, conn, nil)

	rows := sqlmock.NewRows([]string{"id", "name", "system_prompt", "voice_id", "language", "llm_model", "tools_enabled", "is_active"}).
		AddRow(7, "Scheduler", "You schedule.", "voice-7", "en-US", "claude-3-5-sonnet-20241022", `["end_call"]`, true)
	mock.ExpectQuery(`SELECT \* FROM "agents" WHERE id =`).WillReturnRows(rows)

	agent := service.GetOrDefault(context.Background(), 7)
	require.NotNil(t, agent)
	assert.Equal(t, uint64(7), agent.Id)
	assert.Equal(t, "Scheduler", agent.Name)
	assert.Equal(t, []string{"end_call"}, agent.EnabledTools())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentServiceResolveInboundByNumber(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewAgentService(&mockLogger{}, conn, nil)

	numberRows := sqlmock.NewRows([]string{"id", "number", "agent_id", "is_active"}).
		AddRow(1, "+15550100", 7, true)
	mock.ExpectQuery(`SELECT \* FROM "phone_numbers" WHERE number =`).WillReturnRows(numberRows)

	agentRows := sqlmock.NewRows([]string{"id", "name", "is_active"}).
		AddRow(7, "Scheduler", true)
	mock.ExpectQuery(`SELECT \* FROM "agents" WHERE id =`).WillReturnRows(agentRows)

	agent := service.ResolveInbound(context.Background(), "+15550100")
	require.NotNil(t, agent)
	assert.Equal(t, uint64(7), agent.Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentServiceResolveInboundFallsBackToFirstActive(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewAgentService(&mockLogger{}, conn, nil)

	mock.ExpectQuery(`SELECT \* FROM "phone_numbers" WHERE number =`).
		WillReturnError(gorm.ErrRecordNotFound)
	agentRows := sqlmock.NewRows([]string{"id", "name", "is_active"}).
		AddRow(3, "First", true)
	mock.ExpectQuery(`SELECT \* FROM "agents" WHERE is_active =`).WillReturnRows(agentRows)

	agent := service.ResolveInbound(context.Background(), "+15559999")
	require.NotNil(t, agent)
	assert.Equal(t, uint64(3), agent.Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Call Service Tests
// =============================================================================

func TestCallServiceUpdateStatusSkipsTerminalRows(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewCallService(&mockLogger{}, conn)

	mock.ExpectExec(`UPDATE "calls" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := service.UpdateStatus(context.Background(), 42, internal_entity.CallStatusRinging)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallServiceComplete(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewCallService(&mockLogger{}, conn)

	mock.ExpectExec(`UPDATE "calls" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := service.Complete(context.Background(), 42, internal_entity.CallStatusCompleted, "user_hangup", 37)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallServiceCompleteCoercesNonTerminalStatus(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewCallService(&mockLogger{}, conn)

	mock.ExpectExec(`UPDATE "calls" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	// in-progress is not a valid end state, service must finish as completed
	err := service.Complete(context.Background(), 42, internal_entity.CallStatusInProgress, "browser_disconnect", 5)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallServiceGetBySid(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewCallService(&mockLogger{}, conn)

	rows := sqlmock.NewRows([]string{"id", "agent_id", "direction", "external_call_sid", "status"}).
		AddRow(9, 7, "inbound", "CA123", "in-progress")
	mock.ExpectQuery(`SELECT \* FROM "calls" WHERE external_call_sid =`).WillReturnRows(rows)

	call, err := service.GetBySid(context.Background(), "CA123")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), call.Id)
	assert.Equal(t, internal_entity.CallStatusInProgress, call.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Transcript Service Tests
// =============================================================================

func TestTranscriptServiceAppendDropsBlankContent(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewTranscriptService(&mockLogger{}, conn)

	err := service.Append(context.Background(), 42, internal_entity.TranscriptRoleUser, "   ")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptServiceAppend(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewTranscriptService(&mockLogger{}, conn)

	mock.ExpectQuery(`INSERT INTO "transcript_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_date"}).AddRow(time.Now()))

	err := service.Append(context.Background(), 42, internal_entity.TranscriptRoleAssistant, "Hello there.")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptServiceHistoryOrdered(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewTranscriptService(&mockLogger{}, conn)

	rows := sqlmock.NewRows([]string{"id", "call_id", "role", "content"}).
		AddRow(1, 42, "user", "Hi").
		AddRow(2, 42, "assistant", "Hello! How can I help?")
	mock.ExpectQuery(`SELECT \* FROM "transcript_entries" WHERE call_id =`).WillReturnRows(rows)

	entries, err := service.History(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user", entries[0].Role)
	assert.Equal(t, "assistant", entries[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Custom Function Service Tests
// =============================================================================

func TestCustomFunctionServiceOrdersByRequest(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewCustomFunctionService(&mockLogger{}, conn)

	// database returns rows in storage order, the service must restore
	// the order the agent listed them in
	rows := sqlmock.NewRows([]string{"id", "name", "webhook_url", "is_active"}).
		AddRow(2, "book_table", "https://example.com/book", true).
		AddRow(1, "check_menu", "https://example.com/menu", true)
	mock.ExpectQuery(`SELECT \* FROM "custom_functions" WHERE name IN`).WillReturnRows(rows)

	functions, err := service.GetActiveByNames(context.Background(), []string{"check_menu", "book_table"})
	require.NoError(t, err)
	require.Len(t, functions, 2)
	assert.Equal(t, "check_menu", functions[0].Name)
	assert.Equal(t, "book_table", functions[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomFunctionServiceEmptyNames(t *testing.T) {
	conn, _ := newMockDb(t)
	service := NewCustomFunctionService(&mockLogger{}, conn)

	functions, err := service.GetActiveByNames(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, functions)
}

// =============================================================================
// Function Log Service Tests
// =============================================================================

func TestFunctionLogServiceLifecycle(t *testing.T) {
	conn, mock := newMockDb(t)
	service := NewFunctionLogService(&mockLogger{}, conn)

	mock.ExpectQuery(`INSERT INTO "function_call_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_date"}).AddRow(time.Now()))

	row, err := service.Begin(context.Background(), 42, "check_availability", map[string]interface{}{"date": "2025-03-01"})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, internal_entity.FunctionCallExecuting, row.Status)
	assert.Contains(t, row.Arguments, "2025-03-01")

	mock.ExpectExec(`UPDATE "function_call_logs" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, service.Complete(context.Background(), row.Id, `{"available":true}`))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Prompt Service Tests
// =============================================================================

func TestPromptServiceRender(t *testing.T) {
	conn, _ := newMockDb(t)
	service := NewPromptService(&mockLogger{}, conn)

	rendered, err := service.Render("Hello {{ name }}, today is {{ day }}.", map[string]interface{}{
		"name": "Ada",
		"day":  "Tuesday",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, today is Tuesday.", rendered)
}

func TestPromptServiceResolveRendersAgentPrompt(t *testing.T) {
	conn, _ := newMockDb(t)
	service := NewPromptService(&mockLogger{}, conn)

	agent := &internal_entity.Agent{
		Name:         "Concierge",
		SystemPrompt: "You are {{ agent_name }}. Caller: {{ caller_number }}.",
		Language:     "en-US",
	}
	got := service.Resolve(context.Background(), agent, map[string]interface{}{
		"caller_number": "+15550100",
	})
	assert.Equal(t, "You are Concierge. Caller: +15550100.", got)
}

func TestPromptServiceResolveFallsBackOnBadTemplate(t *testing.T) {
	conn, _ := newMockDb(t)
	service := NewPromptService(&mockLogger{}, conn)

	agent := &internal_entity.Agent{
		Name:         "Concierge",
		SystemPrompt: "Broken {{ template",
	}
	got := service.Resolve(context.Background(), agent, nil)
	assert.Equal(t, "Broken {{ template", got)
}
