package voxdoc

import (
	"sync"
)

// DefaultDocumentHTML seeds a fresh client before any project is loaded or
// generated.
const DefaultDocumentHTML = `<article>
  <h1 id="title">Untitled Document</h1>
  <section id="content">
    <p>Start talking or upload a document to begin.</p>
  </section>
</article>`

// DocumentChangeHandler observes committed document states.
type DocumentChangeHandler func(html string, version int64)

// DocumentManager owns the authoritative HTML document. Every mutation runs
// as a read-modify-write transaction under one lock, so concurrent patches
// and manual edits serialize and no commit is ever lost. Version increments
// by exactly one per committed change.
type DocumentManager struct {
	mu        sync.Mutex
	html      string
	version   int64
	listeners map[int]DocumentChangeHandler
	nextID    int
	logger    *VoxdocLogger
}

// NewDocumentManager starts tracking at version 0 with the given content.
func NewDocumentManager(initialHTML string) *DocumentManager {
	return &DocumentManager{
		html:      initialHTML,
		listeners: make(map[int]DocumentChangeHandler),
		logger:    GetGlobalLogger().WithComponent("document"),
	}
}

// HTML returns the current content with its version.
func (m *DocumentManager) HTML() (string, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.html, m.version
}

// Version returns the current commit counter.
func (m *DocumentManager) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Apply runs one atomic transaction: mutate receives the current content and
// returns the replacement. If mutate errors the document is untouched and the
// pre-transaction content/version are returned alongside the error. Change
// listeners fire outside the lock; ordering across listeners is unspecified.
func (m *DocumentManager) Apply(mutate func(current string) (string, error)) (string, int64, error) {
	m.mu.Lock()
	next, err := mutate(m.html)
	if err != nil {
		html, version := m.html, m.version
		m.mu.Unlock()
		return html, version, err
	}
	m.html = next
	m.version++
	html, version := m.html, m.version
	handlers := make([]DocumentChangeHandler, 0, len(m.listeners))
	for _, h := range m.listeners {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	m.logger.WithFields(map[string]interface{}{
		"version": version,
		"bytes":   len(html),
	}).Debug("Document committed")
	for _, h := range handlers {
		h(html, version)
	}
	return html, version, nil
}

// SetHTML replaces the document wholesale, committing a new version. Used for
// loading a project and for manual edits arriving from outside the session.
func (m *DocumentManager) SetHTML(html string) int64 {
	_, version, _ := m.Apply(func(string) (string, error) {
		return html, nil
	})
	return version
}

// OnChange registers a listener for committed states and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (m *DocumentManager) OnChange(handler DocumentChangeHandler) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}
