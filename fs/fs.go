package appfs

import "embed"

// FS exposes embedded app files (DB migrations).
//go:embed migrations
var FS embed.FS
