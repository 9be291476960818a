package http

import (
	"io"
	"net/http"
)

const defaultNotFoundHTML = `<html>
<head><title>404 Not Found</title></head>
<body>
<center><h1>404 Not Found</h1></center>
<hr><center>riders</center>
</body>
</html>`

func writeDefaultNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, defaultNotFoundHTML)
}

// staticHandler serves dir with a plain HTML 404 page for anything missing.
func staticHandler(prefix, dir string) http.Handler {
	if dir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeDefaultNotFound(w)
		})
	}

	root := http.Dir(dir)
	files := http.StripPrefix(prefix, http.FileServer(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len(prefix):]
		if name == "" {
			name = "/"
		}
		f, err := root.Open(name)
		if err != nil {
			writeDefaultNotFound(w)
			return
		}
		_ = f.Close()
		files.ServeHTTP(w, r)
	})
}
