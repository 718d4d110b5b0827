package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M60 140l30-40 20 25 15-18 25 33H60z" fill="#999"/><circle cx="78" cy="72" r="12" fill="#999"/><text x="100" y="180" text-anchor="middle" font-family="Arial" font-size="13" fill="#666">NO IMAGE</text></svg>`

// StaticFileServer serves uploaded attachment images. Missing files get a
// placeholder instead of a 404 so stale references in old entries still
// render something in the client.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
