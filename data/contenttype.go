package data

import (
	"path/filepath"
	"strings"
)

type ContentType string

const (
	ContentTypeTextPlain       ContentType = "text/plain"
	ContentTypeTextHTML        ContentType = "text/html"
	ContentTypeTextCSV         ContentType = "text/csv"
	ContentTypeImageJPEG       ContentType = "image/jpeg"
	ContentTypeImagePNG        ContentType = "image/png"
	ContentTypeApplicationPDF  ContentType = "application/pdf"
	ContentTypeApplicationZip  ContentType = "application/zip"
	ContentTypeApplicationGZip ContentType = "application/gzip"
	ContentTypeApplicationTar  ContentType = "application/x-tar"
	ContentTypeApplicationJSON ContentType = "application/json"
	ContentTypeApplicationYAML ContentType = "application/yaml"
	ContentTypeApplicationXML  ContentType = "application/xml"

	ContentTypeDirectory         ContentType = "application/x-directory"
	ContentTypeApplicationStream ContentType = "application/octet-stream"
)

// ExtensionToMIME maps lower-case file extensions to content types. Sinks use
// it to label objects on backends that store a content type.
var ExtensionToMIME = map[string]ContentType{
	".txt":  ContentTypeTextPlain,
	".log":  ContentTypeTextPlain,
	".md":   ContentTypeTextPlain,
	".html": ContentTypeTextHTML,
	".htm":  ContentTypeTextHTML,
	".csv":  ContentTypeTextCSV,
	".jpg":  ContentTypeImageJPEG,
	".jpeg": ContentTypeImageJPEG,
	".png":  ContentTypeImagePNG,
	".pdf":  ContentTypeApplicationPDF,
	".zip":  ContentTypeApplicationZip,
	".gz":   ContentTypeApplicationGZip,
	".tar":  ContentTypeApplicationTar,
	".json": ContentTypeApplicationJSON,
	".yaml": ContentTypeApplicationYAML,
	".yml":  ContentTypeApplicationYAML,
	".xml":  ContentTypeApplicationXML,
}

// GetMIMEType returns the content type for a path based on its extension.
func GetMIMEType(path string) ContentType {
	ext := strings.ToLower(filepath.Ext(path))

	if mimeType, exists := ExtensionToMIME[ext]; exists {
		return mimeType
	}

	return ContentTypeApplicationStream
}
