// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package gorm_generator produces time-ordered unique identifiers for
// database primary keys. Ids are assigned in application code (BeforeCreate)
// rather than by the database so that entities know their id before insert.
package gorm_generator

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Layout: 41 bits of milliseconds since epoch, 10 bits of node, 12 bits of
// per-millisecond sequence. Node is drawn randomly at process start, which is
// good enough for a small fleet without coordination.
const (
	epoch        = int64(1704067200000) // 2024-01-01T00:00:00Z
	nodeBits     = 10
	sequenceBits = 12
	maxSequence  = int64(-1) ^ (int64(-1) << sequenceBits)
)

var (
	mu       sync.Mutex
	node     int64
	lastTime int64
	sequence int64
)

func init() {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		node = int64(binary.BigEndian.Uint64(b[:])) & (int64(-1) ^ (int64(-1) << nodeBits))
	}
}

// ID returns the next identifier. Safe for concurrent use.
func ID() uint64 {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UnixMilli()
	if now == lastTime {
		sequence = (sequence + 1) & maxSequence
		if sequence == 0 {
			for now <= lastTime {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		sequence = 0
	}
	lastTime = now

	return uint64((now-epoch)<<(nodeBits+sequenceBits) | node<<sequenceBits | sequence)
}
