// Package embedded provides embedded static assets for the application.
package embedded

import (
	"embed"
)

// Files contains the dashboard served at "/" (frontend/dist).
//
//go:embed frontend/dist
var Files embed.FS
