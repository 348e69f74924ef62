// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_normalizers rewrites text into a form that sounds right
// when spoken. Each normalizer handles one category (currency, dates,
// abbreviations, ...) and providers chain them ahead of synthesis.
package internal_normalizers

// Normalizer rewrites one category of text for speech output.
type Normalizer interface {
	Normalize(text string) string
}
