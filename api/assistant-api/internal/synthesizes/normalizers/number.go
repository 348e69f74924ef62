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
)

// smallNumberPattern matches standalone one and two digit numbers. Larger
// numbers read fine as digits and usually are ids, years or codes.
var smallNumberPattern = regexp.MustCompile(`(^|\W)(\d{1,2})($|\W)`)

var numberOnes = []string{
	"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var numberTens = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

type numberToWordNormalizer struct {
	logger commons.Logger
}

func NewNumberToWordNormalizer(logger commons.Logger) Normalizer {
	return &numberToWordNormalizer{logger: logger}
}

func (n *numberToWordNormalizer) Normalize(text string) string {
	matches := smallNumberPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		digitStart, digitEnd := m[4], m[5]
		b.WriteString(text[last:digitStart])
		num, err := strconv.Atoi(text[digitStart:digitEnd])
		if err != nil {
			b.WriteString(text[digitStart:digitEnd])
		} else {
			b.WriteString(smallNumberToWords(num))
		}
		last = digitEnd
	}
	b.WriteString(text[last:])
	return b.String()
}

func smallNumberToWords(num int) string {
	if num < 20 {
		return numberOnes[num]
	}
	word := numberTens[num/10]
	if num%10 > 0 {
		word += "-" + numberOnes[num%10]
	}
	return word
}
