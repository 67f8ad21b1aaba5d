// Package session holds the application's orchestration core: a single state
// snapshot plus the controller that mutates it in response to user commands
// and asynchronous collaborator results.
package session

import (
	"context"

	"github.com/dvoron/pdfscribe/internal/project"
)

// DefaultModelID is used until the preference store reports another choice.
const DefaultModelID = "gemini-2.5-flash"

// State is the complete session snapshot the presentation layer renders.
// Mutations always rewrite the snapshot as a whole under a single writer;
// fields are never patched independently from concurrent goroutines.
type State struct {
	ActiveAPIKey string
	KnownAPIKeys []string
	ModelID      string

	// StagedDocument is the absolute path of the currently open PDF inside
	// app-private storage, empty when nothing is open.
	StagedDocument string

	// Markdown is the editable buffer. It may diverge from the persisted
	// project until a save, explicit or automatic, writes it back.
	Markdown string

	Generating bool

	// LastError and Notice are transient one-shot messages. A completed
	// generation attempt sets exactly one outcome: new Markdown with
	// Generating false, or LastError with Generating false.
	LastError string
	Notice    string

	// CurrentProjectID is zero while the session is unsaved. Once bound it
	// stays bound until CloseProject or loading something else.
	CurrentProjectID int64

	Projects []project.Project
}

// ViewMode is the base screen derived from the snapshot. Settings and the
// project list are presentation overlays on top of these.
type ViewMode int

const (
	ModeNeedsAPIKey ViewMode = iota
	ModeUpload
	ModeEditing
)

// Mode computes the base view mode. NeedsAPIKey wins whenever no key is
// active; a staged document switches Upload to Editing.
func (s State) Mode() ViewMode {
	switch {
	case s.ActiveAPIKey == "":
		return ModeNeedsAPIKey
	case s.StagedDocument == "":
		return ModeUpload
	default:
		return ModeEditing
	}
}

// Settings is the durable preference bundle streamed by the PreferenceStore.
type Settings struct {
	ActiveAPIKey string
	KnownAPIKeys []string
	ModelID      string
}

// PreferenceStore is the durable key/value settings collaborator. Watch must
// deliver the current settings once at subscribe time and again after every
// mutation, for the lifetime of ctx.
type PreferenceStore interface {
	Watch(ctx context.Context) <-chan Settings
	SetActiveAPIKey(key string) error
	AddAPIKey(key string) error
	SetModelID(id string) error
}

// ProjectStore is the durable project collaborator. Watch streams the full
// list, ordered by last modification descending, once at subscribe time and
// after every mutation.
type ProjectStore interface {
	Watch(ctx context.Context) <-chan []project.Project
	Get(ctx context.Context, id int64) (*project.Project, error)
	Insert(ctx context.Context, p project.Project) (int64, error)
	Update(ctx context.Context, p project.Project) error
	Delete(ctx context.Context, id int64) error
}

// DocumentStaging copies externally referenced documents into app-private
// storage and performs local file I/O on the controller's behalf.
type DocumentStaging interface {
	Stage(ctx context.Context, sourceRef, destName string) (string, error)
	ReadBytes(path string) ([]byte, error)
	WriteText(content, name string) (string, error)
	MIMEType(sourceRef string) string
	Exists(path string) bool
}

// MarkdownGenerator converts a document to Markdown via the remote model.
type MarkdownGenerator interface {
	Generate(ctx context.Context, apiKey, modelID string, document []byte, mimeType string) (string, error)
}
