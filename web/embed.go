// Package web holds the dashboard and callback pages.
package web

import "embed"

// TemplatesFS holds the page and partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the page script and stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
