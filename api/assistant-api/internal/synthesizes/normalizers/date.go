// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_normalizers

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rapidaai/voice/pkg/commons"
)

// Numeric date layouts worth speaking out. Four-digit-first forms are
// year-month-day, four-digit-last forms are day-month-year.
var (
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dotDatePattern = regexp.MustCompile(`\b(\d{4})\.(\d{2})\.(\d{2})\b`)
	dmyDatePattern = regexp.MustCompile(`\b(\d{2})[-/](\d{2})[-/](\d{4})\b`)
)

type dateNormalizer struct {
	logger commons.Logger
}

func NewDateNormalizer(logger commons.Logger) Normalizer {
	return &dateNormalizer{logger: logger}
}

func (n *dateNormalizer) Normalize(text string) string {
	replaceYmd := func(pattern *regexp.Regexp, in string) string {
		return pattern.ReplaceAllStringFunc(in, func(match string) string {
			groups := pattern.FindStringSubmatch(match)
			return spokenDate(groups[1], groups[2], groups[3], match)
		})
	}

	text = replaceYmd(isoDatePattern, text)
	text = replaceYmd(dotDatePattern, text)
	text = dmyDatePattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := dmyDatePattern.FindStringSubmatch(match)
		return spokenDate(groups[3], groups[2], groups[1], match)
	})
	return text
}

func spokenDate(year, month, day, original string) string {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return original
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return original
	}
	return fmt.Sprintf("%s %d, %s", time.Month(m).String(), d, year)
}
