package session

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dvoron/pdfscribe/internal/project"
)

func projectRecord(name, documentPath, markdown string, modified time.Time) project.Project {
	return project.Project{
		Name:         name,
		DocumentPath: documentPath,
		Markdown:     markdown,
		LastModified: modified,
	}
}

func isPDFRef(mime, ref string) bool {
	if strings.Contains(mime, "pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(ref), ".pdf")
}

func isTextRef(mime, ref string) bool {
	if strings.HasPrefix(mime, "text") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(ref))
	return ext == ".txt" || ext == ".md"
}
