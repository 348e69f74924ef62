// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_normalizers

import (
	"strings"

	"github.com/rapidaai/voice/pkg/commons"
)

// symbolReplacer maps symbols to spoken words in a single pass. Replacements
// carry a leading space so glyphs glued to digits stay separable; fractions
// are already standalone words. Dollar amounts belong to the currency
// normalizer and are not handled here.
var symbolReplacer = strings.NewReplacer(
	"%", " percent",
	"&", " and",
	"+", " plus",
	"=", " equals",
	"@", " at",
	"#", " hash",
	"½", "one-half",
	"¼", "one-quarter",
	"¾", "three-quarters",
	"℃", " degrees celsius",
	"℉", " degrees fahrenheit",
	"£", " pounds",
	"€", " euros",
	"¥", " yen",
	"₩", " won",
	"₿", " bitcoin",
	"™", " trademark",
	"©", " copyright",
	"®", " registered",
	"±", " plus or minus",
	"°", " degrees",
	"×", " multiplied by",
	"÷", " divided by",
	"≈", " approximately",
	"≠", " not equal to",
	"≤", " less than or equal to",
	"≥", " greater than or equal to",
	"∞", " infinity",
	"π", " pi",
	"√", " square root",
)

type symbolNormalizer struct {
	logger commons.Logger
}

func NewSymbolNormalizer(logger commons.Logger) Normalizer {
	return &symbolNormalizer{logger: logger}
}

func (n *symbolNormalizer) Normalize(text string) string {
	return symbolReplacer.Replace(text)
}
