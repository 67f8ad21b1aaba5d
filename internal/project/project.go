// Package project persists (document, markdown) pairs as named projects and
// exposes a live view of the stored list.
package project

import "time"

// Project is one persisted unit of work. ID is zero until the store assigns
// one on insert.
type Project struct {
	ID           int64
	Name         string
	DocumentPath string
	Markdown     string
	LastModified time.Time
}

// Saved reports whether the project has been assigned a durable id.
func (p Project) Saved() bool {
	return p.ID != 0
}
