package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gorilla/mux"

	"fotos/internal/filesystem"
	"fotos/internal/logging"
	"fotos/internal/mediatypes"
)

// ServeFile serves a photo from the files directory. Only JPEG and PNG
// files are published. Photo files never
// change once published, so they are cached by clients indefinitely.
func (h *Handlers) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + mux.Vars(r)["path"])
	if name == "/" {
		http.NotFound(w, r)
		return
	}
	fullPath := filepath.Join(h.filesDir, filepath.FromSlash(name))

	f, err := filesystem.OpenWithRetry(fullPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		logging.Error("Failed to open %s: %v", fullPath, err)
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() || !mediatypes.IsPhoto(info.Name()) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(info.Name()))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
