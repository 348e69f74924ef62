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

	"github.com/rapidaai/voice/pkg/commons"
)

var clockPattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)

type timeNormalizer struct {
	logger commons.Logger
}

func NewTimeNormalizer(logger commons.Logger) Normalizer {
	return &timeNormalizer{logger: logger}
}

// Normalize turns 24-hour clock times into spoken 12-hour form.
func (n *timeNormalizer) Normalize(text string) string {
	return clockPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := clockPattern.FindStringSubmatch(match)
		hour, err := strconv.Atoi(groups[1])
		if err != nil || hour > 23 {
			return match
		}
		minute, err := strconv.Atoi(groups[2])
		if err != nil || minute > 59 {
			return match
		}

		period := "AM"
		display := hour
		switch {
		case hour == 0:
			display = 12
		case hour == 12:
			period = "PM"
		case hour > 12:
			display = hour - 12
			period = "PM"
		}
		return fmt.Sprintf("%d:%s %s", display, groups[2], period)
	})
}
