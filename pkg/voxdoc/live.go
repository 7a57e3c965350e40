package voxdoc

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// LiveSession is one bidirectional voice session against the live endpoint.
// It owns the capture and playback pipelines, the tool-call dispatcher, and
// the socket pumps. Sessions are one-shot: once stopped or failed they cannot
// be reconnected, build a new one instead.
//
// Lifecycle: idle -> connecting -> active -> closed | error. The onClose
// callback fires exactly once no matter how many ways the session ends.
type LiveSession struct {
	config      *VoxdocConfig
	sessionID   string
	tokenSource *GatewayTokenSource

	mu     sync.Mutex
	state  ConnectionState
	conn   *websocket.Conn
	closed bool

	writeChan chan []byte
	closeChan chan struct{}

	capture    *CapturePipeline
	playback   *PlaybackPipeline
	dispatcher *ToolCallDispatcher
	doc        *DocumentManager

	onTranscription TranscriptionHandler
	onVolume        VolumeHandler
	onState         StateHandler
	onError         ErrorHandler
	onTurnComplete  TurnCompleteHandler
	onClose         func(*VoxdocError)

	received  atomic.Int64
	sent      atomic.Int64
	toolCalls atomic.Int64

	logger *VoxdocLogger
}

// NewLiveSession wires a session around the given document and tool handler.
// Callbacks must be registered before Connect.
func NewLiveSession(config *VoxdocConfig, doc *DocumentManager, toolHandler ToolHandler) *LiveSession {
	var tokenSource *GatewayTokenSource
	if config.GatewaySecret != "" {
		tokenSource = NewGatewayTokenSource(config.GatewaySecret, config.GatewayTokenTTL, config.TokenRefreshBuffer)
	}

	queueSize := config.WriteQueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	sessionID := uuid.New().String()
	s := &LiveSession{
		config:      config,
		sessionID:   sessionID,
		tokenSource: tokenSource,
		state:       StateIdle,
		writeChan:   make(chan []byte, queueSize),
		closeChan:   make(chan struct{}),
		capture:     NewCapturePipeline(config),
		playback:    NewPlaybackPipeline(),
		doc:         doc,
		logger:      GetGlobalLogger().WithComponent("live").WithField("session_id", sessionID[:8]),
	}
	s.dispatcher = NewToolCallDispatcher(toolHandler, config.ReportToolFailures)
	s.capture.OnFrame(s.sendRealtimeAudio)
	s.capture.OnVolume(func(level float64) {
		s.mu.Lock()
		h := s.onVolume
		s.mu.Unlock()
		if h != nil {
			h(level)
		}
	})
	return s
}

// SessionID returns the locally generated session identifier.
func (s *LiveSession) SessionID() string {
	return s.sessionID
}

// OnTranscription registers the transcript fragment observer. Callbacks run
// on the session's read goroutine and must not block.
func (s *LiveSession) OnTranscription(h TranscriptionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTranscription = h
}

// OnVolume registers the capture RMS observer.
func (s *LiveSession) OnVolume(h VolumeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onVolume = h
}

// OnStateChange registers the lifecycle observer.
func (s *LiveSession) OnStateChange(h StateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = h
}

// OnError registers the error observer. It sees both fatal and recoverable
// errors; fatal ones are followed by the close callback.
func (s *LiveSession) OnError(h ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = h
}

// OnTurnComplete registers the turn boundary observer.
func (s *LiveSession) OnTurnComplete(h TurnCompleteHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTurnComplete = h
}

// OnClose registers the teardown observer. reason is nil for a local Stop or
// a server-initiated graceful close, non-nil when the session died.
func (s *LiveSession) OnClose(h func(*VoxdocError)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = h
}

// State returns the current lifecycle state.
func (s *LiveSession) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect brings the session up: output first so the earliest model audio has
// somewhere to land, then socket and setup handshake, then microphone, then
// the greeting and initial document context. Any failure tears the whole
// session down and is reported through the error and close callbacks as well
// as the return value.
func (s *LiveSession) Connect(ctx context.Context) *VoxdocError {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return NewConnectionError("session already started").AddDetail("state", string(state))
	}
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if vErr := s.playback.Start(); vErr != nil {
		s.terminate(vErr)
		return vErr
	}

	conn, vErr := s.dialWithRetry(ctx)
	if vErr != nil {
		s.terminate(vErr)
		return vErr
	}

	if vErr := s.performSetup(conn); vErr != nil {
		conn.Close()
		s.terminate(vErr)
		return vErr
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return NewVoxdocError("session stopped during connect", ErrCodeConnectionClosed)
	}
	s.conn = conn
	s.setStateLocked(StateActive)
	s.mu.Unlock()

	go s.writePump(conn)
	go s.readLoop(conn)

	if vErr := s.capture.Start(); vErr != nil {
		s.terminate(vErr)
		return vErr
	}

	if s.config.Greeting != "" {
		s.enqueueControl(NewTextInputMessage(s.config.Greeting))
	}
	s.SendDocumentContext()

	s.logger.LogSessionEvent("session_active", StateActive, map[string]interface{}{
		"model": s.config.Model,
		"voice": s.config.Voice,
	})
	return nil
}

// dialWithRetry dials the live endpoint with exponential backoff. Only the
// dial is retried; everything after a successful dial fails hard.
func (s *LiveSession) dialWithRetry(ctx context.Context) (*websocket.Conn, *VoxdocError) {
	var conn *websocket.Conn
	var vErr *VoxdocError

	for attempt := 0; ; attempt++ {
		conn, vErr = s.dial(ctx)
		if vErr == nil {
			return conn, nil
		}
		if attempt >= s.config.MaxRetries {
			return nil, vErr
		}

		delay := s.config.RetryBaseDelay << uint(attempt)
		s.logger.Warnf("Dial attempt %d failed (%s), retrying in %s", attempt+1, vErr.Message, delay)
		select {
		case <-ctx.Done():
			return nil, WrapError(ctx.Err(), ErrCodeTimeout)
		case <-s.closeChan:
			return nil, NewVoxdocError("session stopped during connect", ErrCodeConnectionClosed)
		case <-time.After(delay):
		}
	}
}

func (s *LiveSession) dial(ctx context.Context) (*websocket.Conn, *VoxdocError) {
	endpoint := s.config.LiveEndpoint
	header := make(http.Header)

	if s.tokenSource != nil {
		token, vErr := s.tokenSource.Token()
		if vErr != nil {
			return nil, vErr
		}
		header.Set("Authorization", "Bearer "+token)
	} else {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "key=" + url.QueryEscape(s.config.APIKey)
	}
	for k, v := range s.config.Headers {
		header.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.config.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		vErr := WrapError(err, ErrCodeConnectionFailed)
		if resp != nil {
			vErr.AddDetail("status", resp.StatusCode)
		}
		return nil, vErr
	}
	return conn, nil
}

// performSetup sends the setup frame and waits for setupComplete. The first
// inbound frame must be the handshake acknowledgment; anything else is a
// protocol violation.
func (s *LiveSession) performSetup(conn *websocket.Conn) *VoxdocError {
	setup := NewSetupMessage(s.config.Model, s.config.Voice, s.config.SystemInstruction)
	payload, err := setup.Marshal()
	if err != nil {
		return WrapError(err, ErrCodeJSONParse)
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return WrapError(err, ErrCodeConnectionFailed).AddDetail("stage", "setup")
	}

	conn.SetReadDeadline(time.Now().Add(s.config.DialTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return WrapError(err, ErrCodeConnectionFailed).AddDetail("stage", "setup")
	}
	msg, perr := ParseServerMessage(data)
	if perr != nil {
		return WrapError(perr, ErrCodeProtocol)
	}
	if msg.SetupComplete == nil {
		return NewProtocolError("expected setupComplete, got " + msg.Kind())
	}
	return nil
}

// readLoop owns all socket reads for the session.
func (s *LiveSession) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeChan:
			default:
				s.terminate(WrapError(err, ErrCodeConnectionClosed))
			}
			return
		}
		s.handleServerMessage(data)
	}
}

// handleServerMessage demultiplexes one inbound frame. A frame may carry any
// combination of audio, transcripts, flags, and tool calls; interruption is
// handled before new audio so a barge-in never races its own replacement.
func (s *LiveSession) handleServerMessage(data []byte) {
	s.received.Add(1)

	msg, err := ParseServerMessage(data)
	if err != nil {
		s.terminate(WrapError(err, ErrCodeProtocol).AddDetail("bytes", len(data)))
		return
	}
	if s.config.DebugWire {
		s.logger.LogMessageEvent(msg.Kind(), map[string]interface{}{"bytes": len(data)})
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			s.playback.Interrupt()
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			s.notifyTranscription(sc.InputTranscription.Text, SourceUser)
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			s.notifyTranscription(sc.OutputTranscription.Text, SourceModel)
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil && part.InlineData.Data != "" {
					if vErr := s.playback.EnqueueChunk(part.InlineData.Data); vErr != nil {
						s.notifyError(vErr)
					}
				}
				if part.Text != "" {
					s.notifyTranscription(part.Text, SourceModel)
				}
			}
		}
		if sc.TurnComplete {
			s.notifyTurnComplete()
		}
	}

	if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
		s.toolCalls.Add(int64(len(tc.FunctionCalls)))
		responses := s.dispatcher.Dispatch(tc.FunctionCalls)
		if vErr := s.enqueueControl(NewToolResponseMessage(responses)); vErr != nil {
			s.notifyError(vErr)
		}
	}

	if msg.GoAway != nil {
		s.logger.WithField("time_left", msg.GoAway.TimeLeft).Info("Server requested disconnect")
		s.terminate(nil)
	}
}

// writePump owns all socket writes for the session.
func (s *LiveSession) writePump(conn *websocket.Conn) {
	for {
		select {
		case <-s.closeChan:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-s.writeChan:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.terminate(WrapError(err, ErrCodeConnectionClosed))
				return
			}
			s.sent.Add(1)
		}
	}
}

// sendRealtimeAudio queues one capture frame. Audio is best-effort: when the
// queue is full the frame is shed and counted rather than stalling the device
// callback.
func (s *LiveSession) sendRealtimeAudio(encoded string) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	payload, err := NewMediaChunkMessage(encoded).Marshal()
	if err != nil {
		return
	}
	select {
	case s.writeChan <- payload:
	default:
		s.capture.CountDroppedSend()
	}
}

// enqueueControl queues a message that must not be shed (tool responses, text
// input, document context). Blocks until queued or the session closes.
func (s *LiveSession) enqueueControl(msg *ClientMessage) *VoxdocError {
	payload, err := msg.Marshal()
	if err != nil {
		return WrapError(err, ErrCodeJSONParse)
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return NewVoxdocError("session closed", ErrCodeConnectionClosed)
	}

	select {
	case s.writeChan <- payload:
		return nil
	case <-s.closeChan:
		return NewVoxdocError("session closed", ErrCodeConnectionClosed)
	}
}

// SendText injects a text turn into the active session.
func (s *LiveSession) SendText(text string) *VoxdocError {
	if s.State() != StateActive {
		return NewVoxdocError("session not active", ErrCodeConnectionClosed)
	}
	return s.enqueueControl(NewTextInputMessage(text))
}

// SendDocumentContext pushes a bounded snapshot of the current document as
// out-of-band context, so the model grounds its next edits in reality.
func (s *LiveSession) SendDocumentContext() *VoxdocError {
	if s.doc == nil {
		return nil
	}
	html, version := s.doc.HTML()
	s.logger.WithFields(map[string]interface{}{
		"version": version,
		"bytes":   len(html),
	}).Debug("Sending document context")
	return s.enqueueControl(NewDocumentContextMessage(html, s.config.DocSnapshotLimit))
}

// Stop tears the session down cleanly. Safe to call from any state and any
// number of times.
func (s *LiveSession) Stop() {
	s.terminate(nil)
}

// terminate is the single teardown path. The closed flag makes it
// re-entrant; pipelines stop, the socket closes, and the error and close
// callbacks fire at most once.
func (s *LiveSession) terminate(reason *VoxdocError) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	if reason != nil {
		s.setStateLocked(StateError)
	} else {
		s.setStateLocked(StateClosed)
	}
	onClose := s.onClose
	s.mu.Unlock()

	close(s.closeChan)

	s.capture.Stop()
	s.playback.Stop()
	if conn != nil {
		conn.Close()
	}

	if reason != nil {
		s.notifyError(reason)
	}
	if onClose != nil {
		onClose(reason)
	}

	event := "session_closed"
	if reason != nil {
		event = "session_failed"
	}
	s.logger.LogSessionEvent(event, s.State(), map[string]interface{}{
		"received": s.received.Load(),
		"sent":     s.sent.Load(),
	})
}

// setStateLocked transitions the lifecycle state. Caller holds s.mu; the
// observer runs on its own goroutine so it can call back into the session.
func (s *LiveSession) setStateLocked(state ConnectionState) {
	if s.state == state {
		return
	}
	s.state = state
	if s.onState != nil {
		go s.onState(state)
	}
}

func (s *LiveSession) notifyTranscription(text string, source TranscriptSource) {
	s.mu.Lock()
	h := s.onTranscription
	s.mu.Unlock()
	if h != nil {
		h(text, source)
	}
}

func (s *LiveSession) notifyTurnComplete() {
	s.mu.Lock()
	h := s.onTurnComplete
	s.mu.Unlock()
	if h != nil {
		h()
	}
}

func (s *LiveSession) notifyError(vErr *VoxdocError) {
	s.logger.LogError(vErr)
	s.mu.Lock()
	h := s.onError
	s.mu.Unlock()
	if h != nil {
		h(vErr)
	}
}

// GetStats snapshots session counters along with both pipelines.
func (s *LiveSession) GetStats() *SessionStats {
	capture := s.capture.GetStats()
	return &SessionStats{
		State:            s.State(),
		SessionID:        s.sessionID,
		MessagesReceived: s.received.Load(),
		MessagesSent:     s.sent.Load(),
		FramesDropped:    capture.DroppedSends,
		ToolCalls:        s.toolCalls.Load(),
		Capture:          capture,
		Playback:         s.playback.GetStats(),
	}
}
