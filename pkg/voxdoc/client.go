package voxdoc

import (
	"context"
	"sync"
	"time"
)

const storeOpTimeout = 3 * time.Second

// VoxdocClient is the top-level entry point: it owns the document, the
// reconciler, the transcript, the generation client, and at most one live
// session at a time. Handler registrations survive across sessions.
type VoxdocClient struct {
	config     *VoxdocConfig
	doc        *DocumentManager
	reconciler *DocumentReconciler
	transcript *TranscriptLog
	generation *GenerationClient

	mu          sync.Mutex
	session     *LiveSession
	store       *ProjectStore
	projectID   string
	projectName string
	persistChan chan TranscriptEntry
	docSaveChan chan *ProjectRecord

	nextHandlerID         int
	volumeHandlers        map[int]VolumeHandler
	transcriptionHandlers map[int]TranscriptionHandler
	errorHandlers         map[int]ErrorHandler
	stateHandlers         map[int]StateHandler
	patchHandlers         map[int]PatchResultHandler
	turnHandlers          map[int]TurnCompleteHandler

	logger *VoxdocLogger
}

// NewVoxdocClient builds a client around a fresh default document.
func NewVoxdocClient(config *VoxdocConfig) *VoxdocClient {
	if config == nil {
		config = NewVoxdocConfig()
	}

	doc := NewDocumentManager(DefaultDocumentHTML)
	c := &VoxdocClient{
		config:                config,
		doc:                   doc,
		reconciler:            NewDocumentReconciler(doc),
		transcript:            NewTranscriptLog(0),
		generation:            NewGenerationClient(config),
		volumeHandlers:        make(map[int]VolumeHandler),
		transcriptionHandlers: make(map[int]TranscriptionHandler),
		errorHandlers:         make(map[int]ErrorHandler),
		stateHandlers:         make(map[int]StateHandler),
		patchHandlers:         make(map[int]PatchResultHandler),
		turnHandlers:          make(map[int]TurnCompleteHandler),
		logger:                GetGlobalLogger().WithComponent("client"),
	}
	return c
}

// Document exposes the authoritative document.
func (c *VoxdocClient) Document() *DocumentManager {
	return c.doc
}

// Reconciler exposes the patch engine, for hosts applying edits directly.
func (c *VoxdocClient) Reconciler() *DocumentReconciler {
	return c.reconciler
}

// Transcript exposes the session transcript log.
func (c *VoxdocClient) Transcript() *TranscriptLog {
	return c.transcript
}

// Generation exposes the one-shot document generation client.
func (c *VoxdocClient) Generation() *GenerationClient {
	return c.generation
}

// UseStore attaches persistence: document commits autosave to the project
// record and transcript fragments stream into the project log. Both happen on
// a dedicated goroutine so callbacks never wait on the store.
func (c *VoxdocClient) UseStore(store *ProjectStore, projectID, projectName string) {
	c.mu.Lock()
	c.store = store
	c.projectID = projectID
	c.projectName = projectName
	if c.persistChan == nil {
		c.persistChan = make(chan TranscriptEntry, 256)
		c.docSaveChan = make(chan *ProjectRecord, 1)
		go c.persistLoop(store, c.persistChan, c.docSaveChan)
	}
	c.mu.Unlock()

	c.doc.OnChange(func(html string, version int64) {
		c.queueDocSave(html, version)
	})
}

// queueDocSave coalesces autosaves: only the newest pending record survives.
func (c *VoxdocClient) queueDocSave(html string, version int64) {
	c.mu.Lock()
	ch := c.docSaveChan
	rec := &ProjectRecord{
		ID:      c.projectID,
		Name:    c.projectName,
		HTML:    html,
		Version: version,
	}
	c.mu.Unlock()
	if ch == nil || rec.ID == "" {
		return
	}

	for {
		select {
		case ch <- rec:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (c *VoxdocClient) persistLoop(store *ProjectStore, entries <-chan TranscriptEntry, saves <-chan *ProjectRecord) {
	projectID := func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.projectID
	}
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
			if vErr := store.AppendTranscript(ctx, projectID(), entry); vErr != nil {
				c.logger.WithError(vErr).Debug("Transcript persist failed")
			}
			cancel()
		case rec := <-saves:
			ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
			if vErr := store.SaveProject(ctx, rec); vErr != nil {
				c.logger.WithError(vErr).Warn("Project autosave failed")
			}
			cancel()
		}
	}
}

// Handler registration. Each registration returns its unsubscribe function;
// ids keep removal exact even when the same function is registered twice.

func (c *VoxdocClient) OnVolume(h VolumeHandler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.volumeHandlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.volumeHandlers, id)
		c.mu.Unlock()
	}
}

func (c *VoxdocClient) OnTranscription(h TranscriptionHandler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.transcriptionHandlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.transcriptionHandlers, id)
		c.mu.Unlock()
	}
}

func (c *VoxdocClient) OnError(h ErrorHandler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.errorHandlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.errorHandlers, id)
		c.mu.Unlock()
	}
}

func (c *VoxdocClient) OnStateChange(h StateHandler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.stateHandlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.stateHandlers, id)
		c.mu.Unlock()
	}
}

func (c *VoxdocClient) OnPatchResult(h PatchResultHandler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.patchHandlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.patchHandlers, id)
		c.mu.Unlock()
	}
}

func (c *VoxdocClient) OnTurnComplete(h TurnCompleteHandler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.turnHandlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.turnHandlers, id)
		c.mu.Unlock()
	}
}

// ConnectLive starts a live voice session over the current document. Only one
// session runs at a time; a finished session is replaced.
func (c *VoxdocClient) ConnectLive(ctx context.Context) *VoxdocError {
	c.mu.Lock()
	if c.session != nil {
		switch c.session.State() {
		case StateConnecting, StateActive:
			state := c.session.State()
			c.mu.Unlock()
			return NewConnectionError("live session already running").AddDetail("state", string(state))
		}
	}
	toolHandler := CreateDocumentToolHandler(c.reconciler, c.fanoutPatchResult)
	session := NewLiveSession(c.config, c.doc, toolHandler)
	c.session = session
	store := c.store
	c.mu.Unlock()

	session.OnTranscription(c.handleTranscription)
	session.OnVolume(c.fanoutVolume)
	session.OnStateChange(c.fanoutState)
	session.OnError(c.fanoutError)
	session.OnTurnComplete(c.fanoutTurnComplete)
	session.OnClose(func(reason *VoxdocError) {
		if store != nil {
			endCtx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
			store.EndSession(endCtx, session.SessionID())
			cancel()
		}
	})

	if vErr := session.Connect(ctx); vErr != nil {
		return vErr
	}

	if store != nil {
		touchCtx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		store.TouchSession(touchCtx, session.SessionID(), StateActive)
		cancel()
	}
	return nil
}

// StopLive ends the current live session, if any. Safe to call repeatedly.
func (c *VoxdocClient) StopLive() {
	if s := c.currentSession(); s != nil {
		s.Stop()
	}
}

// LiveState reports the current session state, or idle with no session.
func (c *VoxdocClient) LiveState() ConnectionState {
	if s := c.currentSession(); s != nil {
		return s.State()
	}
	return StateIdle
}

// SendText injects a text turn into the active session.
func (c *VoxdocClient) SendText(text string) *VoxdocError {
	s := c.currentSession()
	if s == nil {
		return NewVoxdocError("no live session", ErrCodeConnectionClosed)
	}
	return s.SendText(text)
}

// NotifyManualEdit commits an out-of-band document edit and, when a session
// is active, pushes a fresh snapshot so the model stops editing a stale tree.
func (c *VoxdocClient) NotifyManualEdit(html string) int64 {
	version := c.doc.SetHTML(html)
	if s := c.currentSession(); s != nil && s.State() == StateActive {
		s.SendDocumentContext()
	}
	return version
}

// SaveProject writes the current document to the attached store.
func (c *VoxdocClient) SaveProject(ctx context.Context) *VoxdocError {
	c.mu.Lock()
	store, id, name := c.store, c.projectID, c.projectName
	c.mu.Unlock()
	if store == nil || id == "" {
		return NewStoreError("no store attached")
	}

	html, version := c.doc.HTML()
	return store.SaveProject(ctx, &ProjectRecord{
		ID:      id,
		Name:    name,
		HTML:    html,
		Version: version,
	})
}

// LoadProject replaces the current document with a stored project and makes
// it the autosave target.
func (c *VoxdocClient) LoadProject(ctx context.Context, id string) *VoxdocError {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store == nil {
		return NewStoreError("no store attached")
	}

	rec, vErr := store.LoadProject(ctx, id)
	if vErr != nil {
		return vErr
	}

	c.mu.Lock()
	c.projectID = rec.ID
	c.projectName = rec.Name
	c.mu.Unlock()

	c.doc.SetHTML(rec.HTML)
	if s := c.currentSession(); s != nil && s.State() == StateActive {
		s.SendDocumentContext()
	}
	return nil
}

// GetStats reports the active session's counters, or an idle snapshot.
func (c *VoxdocClient) GetStats() *SessionStats {
	if s := c.currentSession(); s != nil {
		return s.GetStats()
	}
	return &SessionStats{State: StateIdle}
}

// Close stops any live session, flushes persistence, and detaches the store.
func (c *VoxdocClient) Close() {
	c.StopLive()

	c.mu.Lock()
	entries := c.persistChan
	c.persistChan = nil
	c.docSaveChan = nil
	store, id, name := c.store, c.projectID, c.projectName
	c.store = nil
	c.mu.Unlock()

	if entries != nil {
		close(entries)
	}
	if store != nil && id != "" {
		html, version := c.doc.HTML()
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		store.SaveProject(ctx, &ProjectRecord{ID: id, Name: name, HTML: html, Version: version})
		cancel()
	}
}

func (c *VoxdocClient) currentSession() *LiveSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *VoxdocClient) handleTranscription(text string, source TranscriptSource) {
	c.transcript.Append(text, source)

	entry := TranscriptEntry{Source: source, Text: text, Timestamp: time.Now()}
	c.mu.Lock()
	if c.persistChan != nil {
		select {
		case c.persistChan <- entry:
		default:
		}
	}
	c.mu.Unlock()

	c.fanoutTranscription(text, source)
}

func (c *VoxdocClient) fanoutVolume(level float64) {
	for _, h := range c.snapshotVolume() {
		h(level)
	}
}

func (c *VoxdocClient) fanoutTranscription(text string, source TranscriptSource) {
	c.mu.Lock()
	handlers := make([]TranscriptionHandler, 0, len(c.transcriptionHandlers))
	for _, h := range c.transcriptionHandlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(text, source)
	}
}

func (c *VoxdocClient) fanoutError(err *VoxdocError) {
	c.mu.Lock()
	handlers := make([]ErrorHandler, 0, len(c.errorHandlers))
	for _, h := range c.errorHandlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (c *VoxdocClient) fanoutState(state ConnectionState) {
	c.mu.Lock()
	handlers := make([]StateHandler, 0, len(c.stateHandlers))
	for _, h := range c.stateHandlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(state)
	}
}

func (c *VoxdocClient) fanoutPatchResult(result PatchResult) {
	c.mu.Lock()
	handlers := make([]PatchResultHandler, 0, len(c.patchHandlers))
	for _, h := range c.patchHandlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(result)
	}
}

func (c *VoxdocClient) fanoutTurnComplete() {
	c.mu.Lock()
	handlers := make([]TurnCompleteHandler, 0, len(c.turnHandlers))
	for _, h := range c.turnHandlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (c *VoxdocClient) snapshotVolume() []VolumeHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	handlers := make([]VolumeHandler, 0, len(c.volumeHandlers))
	for _, h := range c.volumeHandlers {
		handlers = append(handlers, h)
	}
	return handlers
}
