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

// spokenForm pairs an abbreviation pattern with the words a synthesizer
// should say instead. Patterns run in order; dotted forms go before plain
// ones so the trailing period is consumed with the match.
type spokenForm struct {
	pattern *regexp.Regexp
	spoken  string
}

func applySpokenForms(text string, forms []spokenForm) string {
	for _, f := range forms {
		text = f.pattern.ReplaceAllString(text, f.spoken)
	}
	return text
}

var techSpokenForms = []spokenForm{
	{regexp.MustCompile(`(?i)\btcp/ip\b`), "tee see pee eye pee"},
	{regexp.MustCompile(`(?i)\bci/cd\b`), "see eye see dee"},
	{regexp.MustCompile(`(?i)\bnosql\b`), "no ess queue el"},
	{regexp.MustCompile(`(?i)\bdevops\b`), "dev ops"},
	{regexp.MustCompile(`(?i)\brapida\b`), "rahpidah"},
	{regexp.MustCompile(`(?i)\bsaas\b`), "sass"},
	{regexp.MustCompile(`(?i)\bpaas\b`), "pass"},
	{regexp.MustCompile(`(?i)\bhttps\b`), "aitch tee tee pee ess"},
	{regexp.MustCompile(`(?i)\bhttp\b`), "aitch tee tee pee"},
	{regexp.MustCompile(`(?i)\bhtml\b`), "aitch tee em el"},
	{regexp.MustCompile(`(?i)\bcss\b`), "see es es"},
	{regexp.MustCompile(`(?i)\bsql\b`), "ess queue el"},
	{regexp.MustCompile(`(?i)\bapi\b`), "ay pee eye"},
	{regexp.MustCompile(`(?i)\bsdk\b`), "ess dee kay"},
	{regexp.MustCompile(`(?i)\burl\b`), "you are el"},
	{regexp.MustCompile(`(?i)\bvpn\b`), "vee pee en"},
	{regexp.MustCompile(`(?i)\bcpu\b`), "see pee you"},
	{regexp.MustCompile(`(?i)\bgpu\b`), "gee pee you"},
	{regexp.MustCompile(`(?i)\bai\b`), "eh eye"},
	{regexp.MustCompile(`(?i)\bml\b`), "em el"},
}

type techAbbreviationNormalizer struct {
	logger commons.Logger
}

func NewTechAbbreviationNormalizer(logger commons.Logger) Normalizer {
	return &techAbbreviationNormalizer{logger: logger}
}

func (n *techAbbreviationNormalizer) Normalize(text string) string {
	return applySpokenForms(text, techSpokenForms)
}

var roleSpokenForms = []spokenForm{
	{regexp.MustCompile(`(?i)\bc\.e\.o\.?`), "see ee oh"},
	{regexp.MustCompile(`(?i)\bc\.f\.o\.?`), "see ef oh"},
	{regexp.MustCompile(`(?i)\bc\.o\.o\.?`), "see oh oh"},
	{regexp.MustCompile(`(?i)\bc\.t\.o\.?`), "see tee oh"},
	{regexp.MustCompile(`(?i)\bc\.i\.o\.?`), "see eye oh"},
	{regexp.MustCompile(`(?i)\bc\.m\.o\.?`), "see em oh"},
	{regexp.MustCompile(`(?i)\bph\.d\.?`), "pee aitch dee"},
	{regexp.MustCompile(`(?i)\bv\.p\.?`), "vee pee"},
	{regexp.MustCompile(`(?i)\bh\.r\.?`), "aitch are"},
	{regexp.MustCompile(`(?i)\bceo\b`), "see ee oh"},
	{regexp.MustCompile(`(?i)\bcfo\b`), "see ef oh"},
	{regexp.MustCompile(`(?i)\bcoo\b`), "see oh oh"},
	{regexp.MustCompile(`(?i)\bcto\b`), "see tee oh"},
	{regexp.MustCompile(`(?i)\bcio\b`), "see eye oh"},
	{regexp.MustCompile(`(?i)\bcmo\b`), "see em oh"},
	{regexp.MustCompile(`(?i)\bphd\b`), "pee aitch dee"},
	{regexp.MustCompile(`(?i)\bvp\b`), "vee pee"},
	{regexp.MustCompile(`(?i)\bhr\b`), "aitch are"},
	{regexp.MustCompile(`(?i)\br&d\b`), "are and dee"},
}

type roleAbbreviationNormalizer struct {
	logger commons.Logger
}

func NewRoleAbbreviationNormalizer(logger commons.Logger) Normalizer {
	return &roleAbbreviationNormalizer{logger: logger}
}

func (n *roleAbbreviationNormalizer) Normalize(text string) string {
	return applySpokenForms(text, roleSpokenForms)
}

// generalSpokenForms covers honorifics and everyday latin shorthand. "etc"
// without its period is left alone so the prefix of "etcetera" never
// rewrites itself.
var generalSpokenForms = []spokenForm{
	{regexp.MustCompile(`(?i)\bmrs\.`), "missus"},
	{regexp.MustCompile(`(?i)\bmr\.`), "mister"},
	{regexp.MustCompile(`(?i)\bms\.`), "miz"},
	{regexp.MustCompile(`(?i)\bdr\.`), "doctor"},
	{regexp.MustCompile(`(?i)\ba\.k\.a\.?`), "ay kay ay"},
	{regexp.MustCompile(`(?i)\baka\b`), "ay kay ay"},
	{regexp.MustCompile(`(?i)\betc\.`), "etcetera"},
	{regexp.MustCompile(`(?i)\bi\.e\.`), "that is"},
	{regexp.MustCompile(`(?i)\be\.g\.`), "for example"},
	{regexp.MustCompile(`(?i)\ba\.m\.`), "ay em"},
	{regexp.MustCompile(`(?i)\bp\.m\.`), "pee em"},
	{regexp.MustCompile(`(?i)\bvs\.`), "versus"},
	{regexp.MustCompile(`(?i)\bvs\b`), "versus"},
	{regexp.MustCompile(`(?i)\bjr\.`), "junior"},
	{regexp.MustCompile(`(?i)\bjr\b`), "junior"},
	{regexp.MustCompile(`(?i)\bsr\.`), "senior"},
	{regexp.MustCompile(`(?i)\bsr\b`), "senior"},
	{regexp.MustCompile(`(?i)\basap\b`), "ay sap"},
	{regexp.MustCompile(`(?i)\bave\.`), "avenue"},
	{regexp.MustCompile(`(?i)\bapt\.`), "apartment"},
	{regexp.MustCompile(`(?i)\bdept\.`), "department"},
}

type generalAbbreviationNormalizer struct {
	logger commons.Logger
}

func NewGeneralAbbreviationNormalizer(logger commons.Logger) Normalizer {
	return &generalAbbreviationNormalizer{logger: logger}
}

func (n *generalAbbreviationNormalizer) Normalize(text string) string {
	return applySpokenForms(text, generalSpokenForms)
}
