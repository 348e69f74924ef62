// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_type

import (
	"context"
	"strings"

	internal_normalizers "github.com/rapidaai/voice/api/assistant-api/internal/synthesizes/normalizers"
	"github.com/rapidaai/voice/pkg/commons"
)

// =============================================================================
// Text Normalizer Interface
// =============================================================================

// TextNormalizer prepares assistant text for one synthesis provider.
// Each provider wraps the shared normalizer pipeline with its own
// pronunciation quirks.
type TextNormalizer interface {
	// Normalize transforms text for optimal TTS output.
	Normalize(ctx context.Context, text string) string
}

// NormalizerConfig tunes a provider normalizer beyond the shared
// pipeline.
type NormalizerConfig struct {
	// Abbrieviations lists extra spoken-form expansions on top of the
	// built-in dictionaries.
	Abbrieviations []string

	// Conjunctions marks words a provider should treat as phrase
	// boundaries when inserting pauses.
	Conjunctions []string

	// PauseDurationMs is the pause inserted at a phrase boundary.
	PauseDurationMs uint64
}

func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Abbrieviations:  []string{},
		Conjunctions:    []string{},
		PauseDurationMs: 240,
	}
}

// DefaultNormalizerNames is the pipeline applied when an agent carries
// no pronunciation dictionary list. Dates, times and currency run
// before the number normalizer so their digit groups are still intact;
// role and tech abbreviations run before symbol so "&" compounds like
// R&D keep their spoken forms.
func DefaultNormalizerNames() []string {
	return []string{
		"date", "time", "currency", "number",
		"url", "tech", "role", "general", "address", "symbol",
	}
}

func BuildNormalizerPipeline(logger commons.Logger, names []string) []internal_normalizers.Normalizer {
	normalizers := make([]internal_normalizers.Normalizer, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		var normalizer internal_normalizers.Normalizer

		switch name {
		case "url":
			normalizer = internal_normalizers.NewUrlNormalizer(logger)
		case "currency":
			normalizer = internal_normalizers.NewCurrencyNormalizer(logger)
		case "date":
			normalizer = internal_normalizers.NewDateNormalizer(logger)
		case "time":
			normalizer = internal_normalizers.NewTimeNormalizer(logger)
		case "number", "number-to-word":
			normalizer = internal_normalizers.NewNumberToWordNormalizer(logger)
		case "symbol":
			normalizer = internal_normalizers.NewSymbolNormalizer(logger)
		case "general-abbreviation", "general":
			normalizer = internal_normalizers.NewGeneralAbbreviationNormalizer(logger)
		case "role-abbreviation", "role":
			normalizer = internal_normalizers.NewRoleAbbreviationNormalizer(logger)
		case "tech-abbreviation", "tech":
			normalizer = internal_normalizers.NewTechAbbreviationNormalizer(logger)
		case "address":
			normalizer = internal_normalizers.NewAddressNormalizer(logger)
		default:
			logger.Warnf("normalizer: unknown normalizer '%s', skipping", name)
			continue
		}
		normalizers = append(normalizers, normalizer)
	}
	return normalizers
}
