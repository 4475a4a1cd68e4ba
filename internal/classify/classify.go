package classify

import (
	"net/url"
	"path"
	"strings"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

var extensionKinds = map[string]models.Kind{
	".pdf":  models.KindPDF,
	".xlsx": models.KindExcel,
	".xlsm": models.KindExcel,
	".png":  models.KindImage,
	".jpg":  models.KindImage,
	".jpeg": models.KindImage,
	".webp": models.KindImage,
	".gif":  models.KindImage,
}

// IsFolderLink reports whether rawURL points at a shared folder rather than a
// file. Folder links are never downloaded.
func IsFolderLink(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if strings.Contains(u, ":f:") || strings.Contains(u, "/drive/folders/") {
		return true
	}
	shareHost := strings.Contains(u, "sharepoint.com") || strings.Contains(u, "onedrive.live.com")
	shareQuery := strings.Contains(u, "?e=") || strings.Contains(u, "cid=")
	return shareHost && shareQuery && strings.Contains(u, "folder")
}

// Classify decides the kind of an attachment: folder links first, then the
// URL extension, then the response content type.
func Classify(rawURL, contentType string) models.Kind {
	if IsFolderLink(rawURL) {
		return models.KindFolder
	}
	if k, ok := byExtension(rawURL); ok {
		return k
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return models.KindPDF
	case strings.Contains(ct, "spreadsheet") || strings.Contains(ct, "ms-excel"):
		return models.KindExcel
	case strings.HasPrefix(ct, "image/"):
		return models.KindImage
	}
	return models.KindUnknown
}

func byExtension(rawURL string) (models.Kind, bool) {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		if k, ok := extensionKinds[strings.ToLower(path.Ext(u.Path))]; ok {
			return k, true
		}
	}
	lower := strings.ToLower(rawURL)
	for ext, k := range extensionKinds {
		if strings.HasSuffix(lower, ext) {
			return k, true
		}
	}
	return "", false
}
