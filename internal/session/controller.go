package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Config wires the controller's collaborators.
type Config struct {
	Prefs     PreferenceStore
	Projects  ProjectStore
	Staging   DocumentStaging
	Generator MarkdownGenerator

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
	// Logf receives background-operation completions; defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Controller owns the session snapshot. Every mutation is a read-modify-write
// closure over the whole snapshot executed under a single writer, so
// concurrent command completions cannot interleave partial updates. Blocking
// collaborator calls run on background goroutines and submit their results as
// further mutations.
type Controller struct {
	cfg Config
	ctx context.Context

	mu      sync.Mutex
	state   State
	started bool

	updates chan struct{}
	jobs    sync.WaitGroup
}

// New returns a controller with an initial snapshot. Call Start to subscribe
// to the preference and project streams.
func New(cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Controller{
		cfg:     cfg,
		ctx:     context.Background(),
		state:   State{ModelID: DefaultModelID},
		updates: make(chan struct{}, 1),
	}
}

// Start subscribes to the long-lived preference and project streams. The
// subscriptions last until ctx is cancelled, which is expected to be process
// teardown.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx = ctx
	c.mu.Unlock()

	go func() {
		for settings := range c.cfg.Prefs.Watch(ctx) {
			settings := settings
			c.apply(func(s *State) {
				s.ActiveAPIKey = settings.ActiveAPIKey
				s.KnownAPIKeys = settings.KnownAPIKeys
				if settings.ModelID != "" {
					s.ModelID = settings.ModelID
				}
			})
		}
	}()
	go func() {
		for list := range c.cfg.Projects.Watch(ctx) {
			list := list
			c.apply(func(s *State) {
				s.Projects = list
			})
		}
	}()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates signals after every snapshot change. The channel is coalescing:
// consumers read it, then call Snapshot for the latest state.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Flush blocks until all in-flight background commands have completed. Stream
// subscriptions are not waited on.
func (c *Controller) Flush() {
	c.jobs.Wait()
}

func (c *Controller) apply(mutate func(*State)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Controller) background(name string, fn func(ctx context.Context)) {
	c.jobs.Add(1)
	started := c.cfg.Now()
	go func() {
		defer c.jobs.Done()
		fn(c.ctx)
		c.cfg.Logf("[session] %s finished (duration=%s)", name, c.cfg.Now().Sub(started))
	}()
}

// AddAPIKey stores key in the known set and activates it.
func (c *Controller) AddAPIKey(key string) {
	c.background("add-api-key", func(context.Context) {
		if err := c.cfg.Prefs.AddAPIKey(key); err != nil {
			c.apply(func(s *State) { s.LastError = err.Error() })
		}
	})
}

// SetActiveAPIKey activates an already-known key.
func (c *Controller) SetActiveAPIKey(key string) {
	c.background("set-api-key", func(context.Context) {
		if err := c.cfg.Prefs.SetActiveAPIKey(key); err != nil {
			c.apply(func(s *State) { s.LastError = err.Error() })
		}
	})
}

// SetModelID records the model identifier to use for generation. Arbitrary
// strings are accepted so custom model names work.
func (c *Controller) SetModelID(id string) {
	c.background("set-model", func(context.Context) {
		if err := c.cfg.Prefs.SetModelID(id); err != nil {
			c.apply(func(s *State) { s.LastError = err.Error() })
		}
	})
}

// OpenDocument stages the referenced PDF under a fresh time-derived name,
// detaches the session from any current project, and immediately starts
// generation.
func (c *Controller) OpenDocument(sourceRef string) {
	c.apply(func(s *State) {
		s.Generating = true
		s.LastError = ""
		s.Notice = ""
		s.CurrentProjectID = 0
	})
	c.background("open-document", func(ctx context.Context) {
		name := fmt.Sprintf("doc_%d.pdf", c.cfg.Now().UnixNano())
		path, err := c.cfg.Staging.Stage(ctx, sourceRef, name)
		if err != nil {
			c.apply(func(s *State) {
				s.Generating = false
				s.LastError = err.Error()
			})
			return
		}
		c.apply(func(s *State) { s.StagedDocument = path })
		c.runGenerate(ctx)
	})
}

// Generate is the retryable single-flight conversion command. A call while a
// generation is already outstanding is rejected with a notice and never
// reaches the remote service.
func (c *Controller) Generate() {
	var start bool
	c.apply(func(s *State) {
		switch {
		case s.Generating:
			s.Notice = "Generation already in progress."
		case s.ActiveAPIKey == "":
			s.LastError = "API Key missing"
		case s.StagedDocument == "":
			// Nothing staged; quietly ignore, matching the upload screen
			// never offering a retry.
		default:
			s.Generating = true
			s.LastError = ""
			start = true
		}
	})
	if !start {
		return
	}
	c.background("generate", c.runGenerate)
}

// runGenerate performs the conversion; callers must already have set
// Generating and cleared LastError.
func (c *Controller) runGenerate(ctx context.Context) {
	var path, key, model string
	c.apply(func(s *State) {
		path, key, model = s.StagedDocument, s.ActiveAPIKey, s.ModelID
	})
	if key == "" {
		c.apply(func(s *State) {
			s.Generating = false
			s.LastError = "API Key missing"
		})
		return
	}

	document, err := c.cfg.Staging.ReadBytes(path)
	if err != nil {
		c.apply(func(s *State) {
			s.Generating = false
			s.LastError = err.Error()
		})
		return
	}

	markdown, err := c.cfg.Generator.Generate(ctx, key, model, document, "application/pdf")
	if err != nil {
		c.apply(func(s *State) {
			s.Generating = false
			s.LastError = err.Error()
		})
		return
	}

	var boundID int64
	c.apply(func(s *State) {
		s.Markdown = markdown
		s.Generating = false
		boundID = s.CurrentProjectID
	})
	if boundID != 0 {
		c.writeBack(ctx, boundID, markdown)
	}
}

// writeBack refreshes a bound project record with new markdown. Last writer
// wins; there is no optimistic-concurrency check.
func (c *Controller) writeBack(ctx context.Context, id int64, markdown string) {
	existing, err := c.cfg.Projects.Get(ctx, id)
	if err != nil {
		c.apply(func(s *State) { s.LastError = err.Error() })
		return
	}
	if existing == nil {
		return
	}
	existing.Markdown = markdown
	existing.LastModified = c.cfg.Now()
	if err := c.cfg.Projects.Update(ctx, *existing); err != nil {
		c.apply(func(s *State) { s.LastError = err.Error() })
	}
}

// UpdateMarkdown replaces the edit buffer immediately and, when a project is
// bound, persists the change in the background.
func (c *Controller) UpdateMarkdown(text string) {
	var boundID int64
	c.apply(func(s *State) {
		s.Markdown = text
		boundID = s.CurrentProjectID
	})
	if boundID == 0 {
		return
	}
	c.background("auto-save", func(ctx context.Context) {
		c.writeBack(ctx, boundID, text)
	})
}

// SaveProject persists the session. With a bound project the existing record
// is updated in place; otherwise a new record is created from the staged
// document and the returned id is bound to the session. Without a staged
// document an unbound save is a no-op.
func (c *Controller) SaveProject(name string) {
	if name == "" {
		name = "Untitled Project"
	}
	var (
		boundID  int64
		staged   string
		markdown string
	)
	c.apply(func(s *State) {
		boundID, staged, markdown = s.CurrentProjectID, s.StagedDocument, s.Markdown
	})
	c.background("save-project", func(ctx context.Context) {
		if boundID != 0 {
			existing, err := c.cfg.Projects.Get(ctx, boundID)
			if err != nil {
				c.apply(func(s *State) { s.LastError = fmt.Sprintf("Failed to save project: %v", err) })
				return
			}
			if existing != nil {
				existing.Markdown = markdown
				existing.LastModified = c.cfg.Now()
				if err := c.cfg.Projects.Update(ctx, *existing); err != nil {
					c.apply(func(s *State) { s.LastError = fmt.Sprintf("Failed to save project: %v", err) })
					return
				}
				c.apply(func(s *State) { s.Notice = "Saved" })
				return
			}
		}
		if staged == "" {
			return
		}
		id, err := c.cfg.Projects.Insert(ctx, projectRecord(name, staged, markdown, c.cfg.Now()))
		if err != nil {
			c.apply(func(s *State) { s.LastError = fmt.Sprintf("Failed to save project: %v", err) })
			return
		}
		c.apply(func(s *State) {
			s.CurrentProjectID = id
			s.Notice = "Project Saved"
		})
	})
}

// LoadProject switches the session to a stored record. When the staged file
// has gone missing the load is abandoned in place: the current session is
// left untouched apart from the error message.
func (c *Controller) LoadProject(id int64) {
	c.background("load-project", func(ctx context.Context) {
		record, err := c.cfg.Projects.Get(ctx, id)
		if err != nil || record == nil {
			c.apply(func(s *State) { s.LastError = "Error loading project" })
			return
		}
		if !c.cfg.Staging.Exists(record.DocumentPath) {
			c.apply(func(s *State) { s.LastError = "PDF File not found" })
			return
		}
		c.apply(func(s *State) {
			s.StagedDocument = record.DocumentPath
			s.Markdown = record.Markdown
			s.CurrentProjectID = record.ID
			s.Generating = false
		})
	})
}

// CloseProject returns the session to the upload view with no persistence
// side effects.
func (c *Controller) CloseProject() {
	c.apply(func(s *State) {
		s.StagedDocument = ""
		s.Markdown = ""
		s.CurrentProjectID = 0
	})
}

// DeleteProject removes the stored record. The staged document file is kept
// on disk, and a session bound to the deleted id keeps operating on its
// in-memory copy until closed or overwritten.
func (c *Controller) DeleteProject(id int64) {
	c.background("delete-project", func(ctx context.Context) {
		if err := c.cfg.Projects.Delete(ctx, id); err != nil {
			c.apply(func(s *State) { s.LastError = "Failed to delete project" })
		}
	})
}

// ExportMarkdown writes the current buffer to a local text file.
func (c *Controller) ExportMarkdown(name string) {
	var markdown string
	c.apply(func(s *State) { markdown = s.Markdown })
	c.background("export", func(context.Context) {
		path, err := c.cfg.Staging.WriteText(markdown, name)
		if err != nil {
			c.apply(func(s *State) { s.LastError = err.Error() })
			return
		}
		c.apply(func(s *State) { s.Notice = fmt.Sprintf("Exported to %s", path) })
	})
}

// OpenAny imports a mix of source references: the first PDF is staged as the
// session document and the first text/markdown file preloads the edit buffer.
// Unlike OpenDocument it never triggers generation.
func (c *Controller) OpenAny(sourceRefs []string) {
	c.apply(func(s *State) {
		s.Generating = true
		s.LastError = ""
		s.CurrentProjectID = 0
	})
	c.background("open-any", func(ctx context.Context) {
		var pdfFound, textFound bool
		var textPath string
		for _, ref := range sourceRefs {
			mime := c.cfg.Staging.MIMEType(ref)
			switch {
			case isPDFRef(mime, ref):
				path, err := c.cfg.Staging.Stage(ctx, ref, "session_doc.pdf")
				if err != nil {
					c.apply(func(s *State) {
						s.Generating = false
						s.LastError = err.Error()
					})
					return
				}
				c.apply(func(s *State) { s.StagedDocument = path })
				pdfFound = true
			case isTextRef(mime, ref):
				path, err := c.cfg.Staging.Stage(ctx, ref, "session_doc.md")
				if err != nil {
					c.apply(func(s *State) {
						s.Generating = false
						s.LastError = err.Error()
					})
					return
				}
				raw, err := c.cfg.Staging.ReadBytes(path)
				if err != nil {
					c.apply(func(s *State) {
						s.Generating = false
						s.LastError = err.Error()
					})
					return
				}
				c.apply(func(s *State) { s.Markdown = string(raw) })
				textFound = true
				textPath = path
			}
		}
		c.apply(func(s *State) {
			s.Generating = false
			switch {
			case pdfFound:
			case textFound:
				// A text-only import still opens the editor; the staged
				// copy stands in as the session document.
				s.StagedDocument = textPath
			default:
				s.LastError = "Could not identify PDF or Text file"
			}
		})
	})
}

// ClearError consumes the transient error message.
func (c *Controller) ClearError() {
	c.apply(func(s *State) { s.LastError = "" })
}

// ClearNotice consumes the transient notice message.
func (c *Controller) ClearNotice() {
	c.apply(func(s *State) { s.Notice = "" })
}
