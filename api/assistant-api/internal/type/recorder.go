// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "context"

// Recorder captures both sides of a call on a shared timeline.
type Recorder interface {
	// Start anchors the timeline; every Record call is placed relative
	// to this moment.
	Start()
	// Record places one audio packet on the timeline. Non-audio packets
	// are ignored.
	Record(context.Context, Packet) error
	// Persist finalizes the recording and returns the caller and agent
	// tracks.
	Persist() ([]byte, []byte, error)
}
