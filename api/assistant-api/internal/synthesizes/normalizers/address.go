// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_normalizers

import (
	"regexp"

	"github.com/rapidaai/voice/pkg/commons"
)

// Undotted street suffixes. The dotted forms ("Ave.") belong to the general
// abbreviation normalizer which consumes the period.
var streetSpokenForms = []spokenForm{
	{regexp.MustCompile(`(?i)\bst\b`), "street"},
	{regexp.MustCompile(`(?i)\bave\b`), "avenue"},
	{regexp.MustCompile(`(?i)\brd\b`), "road"},
	{regexp.MustCompile(`(?i)\bblvd\b`), "boulevard"},
	{regexp.MustCompile(`(?i)\bln\b`), "lane"},
	{regexp.MustCompile(`(?i)\bhwy\b`), "highway"},
}

type addressNormalizer struct {
	logger commons.Logger
}

func NewAddressNormalizer(logger commons.Logger) Normalizer {
	return &addressNormalizer{logger: logger}
}

func (n *addressNormalizer) Normalize(text string) string {
	return applySpokenForms(text, streetSpokenForms)
}
