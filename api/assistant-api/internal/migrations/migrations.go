// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_migrations embeds the schema history applied at boot
// through the postgres connector.
package internal_migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the embedded path handed to the iofs migration source.
const Dir = "sql"
