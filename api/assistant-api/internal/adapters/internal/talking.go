// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package adapter_internal

import (
	"context"
	"fmt"
	"io"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
)

// =============================================================================
// Talk - Main Entry Point
// =============================================================================

// Talk runs the conversation loop for one streamer: connect, then pump
// inbound messages into the session until the transport goes away or the
// agent hangs up.
//
// Context management:
//   - The streamer owns its own context (returned by streamer.Context())
//     which outlives the caller's request context so teardown can still
//     drain. When the streamer closes for any reason (client disconnect,
//     connection failure, an end-call directive) it cancels its context,
//     which makes this loop exit cleanly.
//   - Disconnect always runs on context.Background(); the row update and
//     the recording write must survive the transport being gone.
func (t *voiceRequestor) Talk(streamerCtx context.Context) error {
	if err := t.Connect(streamerCtx); err != nil {
		t.logger.Errorf("unexpected error while connecting assistant, might be problem in configuration %+v", err)
		t.Disconnect(context.Background(), internal_entity.CallStatusFailed, endReasonSetupFailure)
		return fmt.Errorf("talking.Connect error: %w", err)
	}

	for {
		select {

		// streamer context done means the transport is gone, either the
		// client hung up or the server is shutting the connection down.
		case <-streamerCtx.Done():
			t.logger.Infof("talk loop exiting, streamer context done")
			t.Disconnect(context.Background(), internal_entity.CallStatusCompleted, t.endReason)
			return streamerCtx.Err()

		default:
			req, err := t.streamer.Recv()
			if err != nil {
				// EOF means the streamer closed gracefully, e.g. the client
				// disconnected or an end directive drained the input.
				if err == io.EOF {
					t.logger.Infof("talk loop: streamer returned EOF")
					t.Disconnect(context.Background(), internal_entity.CallStatusCompleted, t.endReason)
					return nil
				}
				continue
			}

			switch payload := req.(type) {
			case *internal_type.ConversationUserMessage:
				if audio := payload.GetAudio(); len(audio) > 0 {
					t.OnPacket(streamerCtx, internal_type.UserAudioPacket{Audio: audio})
				} else if text := payload.GetText(); text != "" {
					t.OnPacket(streamerCtx, internal_type.UserTextPacket{Text: text})
				}

			case *internal_type.ConversationDisconnection:
				t.logger.Infof("talk: received disconnection (%s), ending conversation", payload.Type)
				t.Disconnect(context.Background(), internal_entity.CallStatusCompleted, t.endReason)
				return nil

			default:
				t.logger.Debugf("talk: ignoring inbound %T", req)
			}
		}
	}
}

// Notify sends session events toward the client. Send failures are taken
// as transport trouble, logged and otherwise ignored; the talk loop
// learns about a dead transport through its own context.
func (t *voiceRequestor) Notify(ctx context.Context, messages ...internal_type.Stream) error {
	for _, message := range messages {
		if err := t.streamer.Send(message); err != nil {
			t.logger.Warnf("notify %T failed: %v", message, err)
		}
	}
	return nil
}
