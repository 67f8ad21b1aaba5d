package project

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "projects.db"

// Store manages the project database and notifies watchers after every
// mutation so the session snapshot stays a live read-through cache.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[int]chan []Project
	next int
}

// OpenStore opens or creates the project SQLite database under dataDir.
func OpenStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, subs: map[int]chan []Project{}}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		document_path TEXT NOT NULL,
		markdown TEXT NOT NULL,
		last_modified INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// List returns all projects ordered by last modification, newest first.
func (s *Store) List(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, document_path, markdown, last_modified
		 FROM projects ORDER BY last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var list []Project
	for rows.Next() {
		var p Project
		var modified int64
		if err := rows.Scan(&p.ID, &p.Name, &p.DocumentPath, &p.Markdown, &modified); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.LastModified = time.UnixMilli(modified)
		list = append(list, p)
	}
	return list, rows.Err()
}

// Watch streams the full project list: once immediately, then after every
// mutation, until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) <-chan []Project {
	ch := make(chan []Project, 16)
	if list, err := s.List(ctx); err == nil {
		ch <- list
	}
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (s *Store) notify() {
	list, err := s.List(context.Background())
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- list:
		default:
		}
	}
}

// Get returns the project with the given id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, document_path, markdown, last_modified FROM projects WHERE id = ?`, id)
	var p Project
	var modified int64
	if err := row.Scan(&p.ID, &p.Name, &p.DocumentPath, &p.Markdown, &modified); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching project %d: %w", id, err)
	}
	p.LastModified = time.UnixMilli(modified)
	return &p, nil
}

// Insert stores a new project and returns its assigned id.
func (s *Store) Insert(ctx context.Context, p Project) (int64, error) {
	if p.LastModified.IsZero() {
		p.LastModified = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, document_path, markdown, last_modified) VALUES (?, ?, ?, ?)`,
		p.Name, p.DocumentPath, p.Markdown, p.LastModified.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("inserting project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	s.notify()
	return id, nil
}

// Update rewrites an existing record in place.
func (s *Store) Update(ctx context.Context, p Project) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, document_path = ?, markdown = ?, last_modified = ? WHERE id = ?`,
		p.Name, p.DocumentPath, p.Markdown, p.LastModified.UnixMilli(), p.ID)
	if err != nil {
		return fmt.Errorf("updating project %d: %w", p.ID, err)
	}
	s.notify()
	return nil
}

// Delete removes the record. The staged document file is intentionally left
// on disk; the session may still be operating on it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project %d: %w", id, err)
	}
	s.notify()
	return nil
}
