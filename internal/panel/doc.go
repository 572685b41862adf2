// Package panel serves the embedded registration page.
//
// The page is a small HTML form plus a script that talks to the JSON API in
// internal/api. index.html is rendered per request so the footer carries the
// current year and the build timestamp; the other assets are served as-is
// from the go:embed filesystem. Unknown paths fall back to the page.
package panel
