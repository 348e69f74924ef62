package internal_transformer_elevenlabs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

func newVaultCredential(m map[string]interface{}) *internal_transformer.VaultCredential {
	return internal_transformer.NewVaultCredential(m)
}

// --- Constructor Tests ---

func TestNewElevenLabsOption_ValidCredentials(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{"key": "test-api-key"})
	opt, err := NewElevenLabsOption(newTestLogger(), cred, utils.Option{})
	assert.NoError(t, err)
	assert.NotNil(t, opt)
	assert.Equal(t, "test-api-key", opt.GetKey())
}

func TestNewElevenLabsOption_MissingKey(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{"other": "value"})
	opt, err := NewElevenLabsOption(newTestLogger(), cred, utils.Option{})
	assert.Error(t, err)
	assert.Nil(t, opt)
	assert.Contains(t, err.Error(), "illegal vault config")
}

func TestNewElevenLabsOption_EmptyVault(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{})
	opt, err := NewElevenLabsOption(newTestLogger(), cred, utils.Option{})
	assert.Error(t, err)
	assert.Nil(t, opt)
}

// --- Encoding Tests ---

func TestElevenLabsGetEncoding(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{"key": "k"})
	opt, _ := NewElevenLabsOption(newTestLogger(), cred, utils.Option{})
	assert.Equal(t, "pcm_16000", opt.GetEncoding())
}

// --- GetTextToSpeechConnectionString Tests ---

func TestGetTextToSpeechConnectionString_Default(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{"key": "k"})
	opt, _ := NewElevenLabsOption(newTestLogger(), cred, utils.Option{})
	connStr := opt.GetTextToSpeechConnectionString()

	assert.Contains(t, connStr, "https://api.elevenlabs.io/v1/text-to-speech/")
	assert.Contains(t, connStr, ELEVENLABS_VOICE_ID)
	assert.Contains(t, connStr, "/stream?")
	assert.Contains(t, connStr, "output_format=pcm_16000")
	assert.Contains(t, connStr, "enable_ssml_parsing=true")
}

func TestGetTextToSpeechConnectionString_WithVoiceOverride(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{"key": "k"})
	opts := utils.Option{
		"speak.voice.id": "custom-voice-id",
	}
	opt, _ := NewElevenLabsOption(newTestLogger(), cred, opts)
	connStr := opt.GetTextToSpeechConnectionString()

	assert.Contains(t, connStr, "/custom-voice-id/stream?")
	assert.NotContains(t, connStr, ELEVENLABS_VOICE_ID)
	assert.Contains(t, connStr, "output_format=pcm_16000")
}

// --- GetTextToSpeechPayload Tests ---

func TestGetTextToSpeechPayload_Defaults(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{"key": "k"})
	opt, _ := NewElevenLabsOption(newTestLogger(), cred, utils.Option{})
	payload := opt.GetTextToSpeechPayload("hello there")

	assert.Equal(t, "hello there", payload["text"])
	assert.Equal(t, "eleven_multilingual_v2", payload["model_id"])
	assert.NotContains(t, payload, "language_code")

	settings, ok := payload["voice_settings"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0.5, settings["stability"])
	assert.Equal(t, 0.75, settings["similarity_boost"])
	assert.Equal(t, 0.0, settings["style"])
	assert.Equal(t, true, settings["use_speaker_boost"])
}

func TestGetTextToSpeechPayload_WithLanguageAndModel(t *testing.T) {
	cred := newVaultCredential(map[string]interface{}{"key": "k"})
	opts := utils.Option{
		"speak.language": "fr",
		"speak.model":    "eleven_turbo_v2",
	}
	opt, _ := NewElevenLabsOption(newTestLogger(), cred, opts)
	payload := opt.GetTextToSpeechPayload("bonjour")

	assert.Equal(t, "eleven_turbo_v2", payload["model_id"])
	assert.Equal(t, "fr", payload["language_code"])
}

// --- Transform Tests ---

func newStreamingServer(t *testing.T, status int, audio []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("xi-api-key"))
		w.WriteHeader(status)
		_, _ = w.Write(audio)
	}))
}

func TestTransform_StreamsAudioChunks(t *testing.T) {
	audio := make([]byte, 10000)
	for i := range audio {
		audio[i] = byte(i % 251)
	}
	server := newStreamingServer(t, http.StatusOK, audio)
	defer server.Close()

	var received []byte
	var completed []string
	tts, err := NewElevenLabsTextToSpeech(context.Background(), newTestLogger(),
		newVaultCredential(map[string]interface{}{"key": "k"}),
		&internal_transformer.TextToSpeechInitializeOptions{
			ModelOptions: utils.Option{"speak.base_url": server.URL},
			OnSpeech: func(contextId string, chunk []byte) error {
				assert.Equal(t, "ctx-1", contextId)
				received = append(received, chunk...)
				return nil
			},
			OnComplete: func(contextId string) error {
				completed = append(completed, contextId)
				return nil
			},
		})
	require.NoError(t, err)
	require.NoError(t, tts.Initialize())

	err = tts.Transform(context.Background(), "hello", &internal_transformer.TextToSpeechOption{ContextId: "ctx-1", IsComplete: true})
	require.NoError(t, err)
	assert.Equal(t, audio, received)
	assert.Equal(t, []string{"ctx-1"}, completed)
}

func TestTransform_FailsOnErrorStatus(t *testing.T) {
	server := newStreamingServer(t, http.StatusUnauthorized, []byte(`{"detail":"bad key"}`))
	defer server.Close()

	tts, err := NewElevenLabsTextToSpeech(context.Background(), newTestLogger(),
		newVaultCredential(map[string]interface{}{"key": "k"}),
		&internal_transformer.TextToSpeechInitializeOptions{
			ModelOptions: utils.Option{"speak.base_url": server.URL},
			OnSpeech: func(contextId string, chunk []byte) error {
				t.Fatal("no audio expected on provider failure")
				return nil
			},
			OnComplete: func(contextId string) error { return nil },
		})
	require.NoError(t, err)
	require.NoError(t, tts.Initialize())

	err = tts.Transform(context.Background(), "hello", &internal_transformer.TextToSpeechOption{ContextId: "ctx-1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestTransform_EmptyTextOnlySignalsCompletion(t *testing.T) {
	var completed []string
	tts, err := NewElevenLabsTextToSpeech(context.Background(), newTestLogger(),
		newVaultCredential(map[string]interface{}{"key": "k"}),
		&internal_transformer.TextToSpeechInitializeOptions{
			ModelOptions: utils.Option{},
			OnSpeech: func(contextId string, chunk []byte) error {
				t.Fatal("no audio expected for empty text")
				return nil
			},
			OnComplete: func(contextId string) error {
				completed = append(completed, contextId)
				return nil
			},
		})
	require.NoError(t, err)
	require.NoError(t, tts.Initialize())

	err = tts.Transform(context.Background(), "", &internal_transformer.TextToSpeechOption{ContextId: "ctx-2", IsComplete: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"ctx-2"}, completed)
}

func TestTransform_RequiresInitialize(t *testing.T) {
	tts, err := NewElevenLabsTextToSpeech(context.Background(), newTestLogger(),
		newVaultCredential(map[string]interface{}{"key": "k"}),
		&internal_transformer.TextToSpeechInitializeOptions{ModelOptions: utils.Option{}})
	require.NoError(t, err)

	err = tts.Transform(context.Background(), "hello", &internal_transformer.TextToSpeechOption{ContextId: "ctx-3"})
	assert.Error(t, err)
}
