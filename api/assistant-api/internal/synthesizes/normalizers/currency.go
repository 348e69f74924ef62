// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_normalizers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rapidaai/voice/pkg/commons"
	ntw "moul.io/number-to-words"
)

// currencyPattern matches dollar amounts with explicit cents; "$50" on its
// own is ambiguous in speech and left alone.
var currencyPattern = regexp.MustCompile(`\$(\d{1,3}(?:,\d{3})*|\d+)\.(\d{2})`)

type currencyNormalizer struct {
	logger commons.Logger
}

func NewCurrencyNormalizer(logger commons.Logger) Normalizer {
	return &currencyNormalizer{logger: logger}
}

func (n *currencyNormalizer) Normalize(text string) string {
	return currencyPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := currencyPattern.FindStringSubmatch(match)
		dollars, err := strconv.Atoi(strings.ReplaceAll(groups[1], ",", ""))
		if err != nil {
			return match
		}
		cents, err := strconv.Atoi(groups[2])
		if err != nil {
			return match
		}
		return ntw.IntegerToEnUs(dollars) + " dollars and " + ntw.IntegerToEnUs(cents) + " cents"
	})
}
