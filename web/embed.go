// Package web embeds the portal's HTML templates and static assets into the
// binary, so deployments are a single executable.
package web

import "embed"

//go:embed templates/**/*.html
var Templates embed.FS

//go:embed static/**/*
var Static embed.FS
