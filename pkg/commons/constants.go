// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

type contextKey string

const (
	// SEPARATOR splits multi-value option strings (normalizer names,
	// conjunction boundaries, tool lists).
	SEPARATOR = ","

	// RequestIdKey carries the per-request identifier on a context.
	RequestIdKey contextKey = "request-id"

	// CallIdKey carries the active call identifier on a context.
	CallIdKey contextKey = "call-id"
)
