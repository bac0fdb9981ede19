package mediatypes

import (
	"path"
	"strings"
)

// FileType represents the kind of a file in the files directory.
type FileType string

const (
	// FileTypePhoto is a published gallery photo.
	FileTypePhoto FileType = "photo"
	// FileTypeOther is anything the gallery does not publish.
	FileTypeOther FileType = "other"
)

// PhotoExtensions maps the lowercase extensions a gallery photo may carry.
var PhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// CandidateExtensions is the order in which a bare photo id is expanded to a
// file name. Older uploads kept the camera's uppercase ".JPG".
var CandidateExtensions = []string{".jpg", ".JPG", ".jpeg", ".png"}

// MimeTypes maps photo extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Ext returns the lowercase extension of name, leading dot included.
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}

// GetFileType classifies a file by name. Extensions match case-insensitively.
func GetFileType(name string) FileType {
	if PhotoExtensions[Ext(name)] {
		return FileTypePhoto
	}
	return FileTypeOther
}

// IsPhoto reports whether name has a photo extension.
func IsPhoto(name string) bool {
	return GetFileType(name) == FileTypePhoto
}

// GetMimeType returns the MIME type for a file name, or
// "application/octet-stream" when it is not a photo.
func GetMimeType(name string) string {
	if mime, ok := MimeTypes[Ext(name)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// TrimPhotoExt removes a photo extension from name. Other names are returned
// unchanged.
func TrimPhotoExt(name string) string {
	if ext := path.Ext(name); PhotoExtensions[strings.ToLower(ext)] {
		return name[:len(name)-len(ext)]
	}
	return name
}
