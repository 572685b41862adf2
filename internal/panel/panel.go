package panel

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"time"
)

// BuildTimeLayout renders the build timestamp like a vi-VN locale with
// two-digit day and month.
const BuildTimeLayout = "15:04:05 02/01/2006"

//go:embed web/*
var content embed.FS

var indexTemplate = template.Must(template.ParseFS(content, "web/index.html"))

// now is replaced in tests.
var now = time.Now

// Build describes the running binary for the page footer.
type Build struct {
	Version string

	// Time is when the binary was built. Zero hides the timestamp.
	Time time.Time

	// Location for the footer; nil means local time.
	Location *time.Location
}

type pageData struct {
	Version        string
	Year           int
	BuildTimestamp string
}

// FormatBuildTime renders t with BuildTimeLayout in loc.
func FormatBuildTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(BuildTimeLayout)
}

// ParseBuildTime reads a build timestamp injected with -ldflags, either Unix
// seconds or RFC 3339. Empty input yields the zero time.
func ParseBuildTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing build time %q: %w", s, err)
	}
	return t, nil
}

// Handler returns an http.Handler for the page and its assets.
// Panics if the embedded assets cannot be loaded (build error).
func Handler(b Build) http.Handler {
	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
	}
	fileServer := http.FileServer(http.FS(webFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		upath := path.Clean(r.URL.Path)
		if upath == "/" || upath == "." || upath == "/index.html" {
			renderIndex(w, b)
			return
		}

		f, err := webFS.Open(upath[1:])
		if err != nil {
			renderIndex(w, b)
			return
		}
		f.Close()
		fileServer.ServeHTTP(w, r)
	})
}

func renderIndex(w http.ResponseWriter, b Build) {
	loc := b.Location
	if loc == nil {
		loc = time.Local
	}
	data := pageData{
		Version:        b.Version,
		Year:           now().In(loc).Year(),
		BuildTimestamp: FormatBuildTime(b.Time, loc),
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes()) //nolint:errcheck // best-effort write
}
