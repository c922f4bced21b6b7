// Package transport serves interview sessions to browsers over a websocket.
// The browser owns the camera and microphone and pushes pose detections,
// audio spectra and recognition results; the server owns the session.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-coach/internal/capture"
	"github.com/lexiqai/interview-coach/internal/config"
	"github.com/lexiqai/interview-coach/internal/interview"
	"github.com/lexiqai/interview-coach/internal/observability"
	"github.com/lexiqai/interview-coach/internal/posture"
	"github.com/lexiqai/interview-coach/internal/questions"
	"github.com/lexiqai/interview-coach/internal/scoring"
	"github.com/lexiqai/interview-coach/internal/signals"
	"github.com/lexiqai/interview-coach/internal/stress"
	"github.com/lexiqai/interview-coach/internal/stt"
	"github.com/lexiqai/interview-coach/internal/transcript"
	"github.com/lexiqai/interview-coach/internal/tts"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	// Origins are checked by the reverse proxy.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Deps are the shared services every session uses.
type Deps struct {
	Config    *config.Config
	Bank      *questions.Bank
	Generator questions.Generator
	Gateway   scoring.Gateway
	// NewRecognizer creates a server-side recognizer for a session. When nil
	// the browser's own recognizer pushes results.
	NewRecognizer func(logger zerolog.Logger) *stt.Recognizer
	// NewSpeaker creates a speaker streaming synthesized audio to sink. When
	// nil the browser reads questions aloud.
	NewSpeaker func(sink func(tts.Chunk), logger zerolog.Logger) interview.Speaker
}

// Handler upgrades requests to interview sessions.
type Handler struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*conn
}

// NewHandler creates a session handler.
func NewHandler(deps Deps) *Handler {
	if deps.Bank == nil {
		deps.Bank = questions.DefaultBank()
	}
	return &Handler{deps: deps, sessions: make(map[string]*conn)}
}

// ServeHTTP runs one interview session for the lifetime of the websocket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger := observability.GetLogger()
		logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	c := h.newConn(ws)
	h.mu.Lock()
	h.sessions[c.id] = c
	h.mu.Unlock()

	c.run()

	h.mu.Lock()
	delete(h.sessions, c.id)
	h.mu.Unlock()
}

// ActiveSessions returns the number of connected sessions.
func (h *Handler) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every connected session.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.sessions))
	for _, c := range h.sessions {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	}
}

// ProfilesHandler lists the selectable job profiles.
func ProfilesHandler(bank *questions.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(bank.Profiles)
	}
}

// conn is one browser connection and the session it drives.
type conn struct {
	id      string
	ws      *websocket.Conn
	deps    Deps
	logger  zerolog.Logger
	metrics *observability.Metrics

	session    *interview.Session
	agg        *signals.Aggregator
	pose       *capture.Feed[posture.Sample]
	spectrum   *capture.Feed[[]float64]
	speech     *capture.Feed[transcript.Event]
	recognizer *stt.Recognizer
	supervisor *transcript.Supervisor

	ctx     context.Context
	cancel  context.CancelFunc
	send    chan ServerMessage
	done    chan struct{}
	closeMu sync.Once
	workers sync.WaitGroup
}

func (h *Handler) newConn(ws *websocket.Conn) *conn {
	cfg := h.deps.Config
	id := observability.NewSessionID()
	logger := observability.WithSession(id)

	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		ws:       ws,
		deps:     h.deps,
		logger:   logger,
		metrics:  observability.NewSessionMetrics(id),
		pose:     capture.NewFeed[posture.Sample](enginePose),
		spectrum: capture.NewFeed[[]float64](engineAudio),
		send:     make(chan ServerMessage, sendQueueSize),
		done:     make(chan struct{}),
	}

	acc := transcript.NewAccumulator()
	c.agg = signals.New(posture.NewClassifier(cfg.Posture()), stress.New(cfg.Stress()), acc)
	c.agg.OnWarning(func(w posture.Warning) {
		c.metrics.RecordPostureWarning(string(w.Kind))
		c.enqueue(ServerMessage{Type: msgPostureWarning, Warning: &w})
	})

	c.pose.OnData(func(s posture.Sample) {
		if s.At.IsZero() {
			s.At = time.Now()
		}
		c.agg.RecordPose(s)
	})
	c.spectrum.OnData(c.agg.RecordAudioFrame)

	var speech transcript.Recognizer
	if h.deps.NewRecognizer != nil {
		c.recognizer = h.deps.NewRecognizer(logger)
		c.recognizer.OnResult(c.agg.RecordRecognition)
		speech = c.recognizer
	} else {
		c.speech = capture.NewFeed[transcript.Event](engineSpeech)
		c.speech.OnData(c.agg.RecordRecognition)
		speech = c.speech
	}
	c.supervisor = transcript.NewSupervisor(speech, acc, cfg.RestartBudget(), logger)
	c.supervisor.OnRestart(func(err error) {
		c.metrics.RecordRecognizerRestart()
		msg := ServerMessage{Type: msgRecognizerRestart, Engine: engineSpeech}
		if err != nil {
			msg.Error = err.Error()
		}
		c.enqueue(msg)
	})

	var speaker interview.Speaker
	if h.deps.NewSpeaker != nil {
		speaker = h.deps.NewSpeaker(func(ch tts.Chunk) {
			c.enqueue(ServerMessage{
				Type:       msgSpeechAudio,
				Audio:      ch.Data,
				SampleRate: ch.SampleRate,
				Seq:        ch.Seq,
				Final:      ch.Final,
			})
		}, logger)
	}

	c.session = interview.New(id, interview.Options{
		Generator:      h.deps.Generator,
		Gateway:        h.deps.Gateway,
		Aggregator:     c.agg,
		Engines:        []capture.Engine{c.spectrum, c.supervisor},
		SessionEngines: []capture.Engine{c.pose},
		Speaker:        speaker,
		StressInterval: cfg.StressSampleInterval(),
		OnEvent:        func(ev interview.Event) { c.enqueue(fromEvent(ev)) },
		Logger:         logger,
		Metrics:        c.metrics,
	})
	return c
}

func (c *conn) run() {
	c.metrics.RecordSessionStart()
	c.logger.Info().Msg("Interview session connected")

	go c.writeLoop()
	go c.meterLoop()

	c.readLoop()

	c.close()
	c.session.Close()
	c.workers.Wait()
	_ = c.ws.Close()

	c.metrics.RecordSessionEnd()
	c.logger.Info().Str("state", string(c.session.State())).Msg("Interview session disconnected")
}

func (c *conn) close() {
	c.closeMu.Do(func() {
		close(c.done)
		c.cancel()
	})
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse client message")
			observability.RecordError("decode", "transport")
			continue
		}
		c.handle(msg)
	}
}

func (c *conn) handle(msg ClientMessage) {
	switch msg.Type {
	case msgStartInterview:
		profile, ok := c.deps.Bank.Profile(msg.ProfileID)
		if !ok {
			c.enqueue(ServerMessage{Type: msgError, Error: "unknown profile " + msg.ProfileID})
			return
		}
		c.async(func(ctx context.Context) error {
			return c.session.StartInterview(ctx, profile)
		})

	case msgStartRecording:
		c.async(c.session.StartRecording)

	case msgStopRecording:
		c.session.StopRecording()

	case msgSubmitAnswer:
		c.async(func(ctx context.Context) error {
			rec, err := c.session.SubmitAnswer(ctx, msg.Answer)
			if err == nil {
				c.enqueue(ServerMessage{Type: msgAnswer, Answer: &rec})
			}
			return err
		})

	case msgEndInterview:
		c.async(func(ctx context.Context) error {
			_, err := c.session.EndInterview(ctx)
			return err
		})

	case msgRestart:
		c.session.Restart()

	case msgPose:
		if msg.Pose != nil {
			c.pose.Push(*msg.Pose)
		}

	case msgAudioSpectrum:
		c.spectrum.Push(msg.Bins)

	case msgAudioPCM:
		if c.recognizer == nil {
			return
		}
		if err := c.recognizer.SendAudio(msg.Audio); err != nil {
			c.logger.Debug().Err(err).Msg("Dropped audio chunk")
		}

	case msgRecognition:
		if c.speech != nil && msg.Recognition != nil {
			c.speech.Push(*msg.Recognition)
		}

	case msgRecognitionEnd:
		if c.speech == nil {
			return
		}
		var err error
		if msg.Error != "" {
			err = capture.ParseDeviceError(msg.Error)
		}
		c.speech.End(err)

	case msgDeviceStatus:
		c.deviceStatus(msg.Engine, capture.ParseDeviceError(msg.Status))

	default:
		c.logger.Debug().Str("type", msg.Type).Msg("Unknown client message")
	}
}

func (c *conn) deviceStatus(engine string, err error) {
	switch engine {
	case enginePose:
		c.pose.SetUnavailable(err)
	case engineAudio:
		c.spectrum.SetUnavailable(err)
	case engineSpeech:
		if c.speech != nil {
			c.speech.SetUnavailable(err)
		}
	default:
		c.logger.Debug().Str("engine", engine).Msg("Device status for unknown engine")
	}
}

// async runs a potentially blocking session operation off the read loop so
// pushes and restarts keep flowing while questions are generated or scored.
func (c *conn) async(op func(ctx context.Context) error) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()

		if err := op(c.ctx); err != nil {
			c.logger.Debug().Err(err).Msg("Session operation rejected")
			c.enqueue(ServerMessage{Type: msgError, Error: err.Error()})
		}
	}()
}

// enqueue never blocks; messages are dropped when the client cannot keep up.
func (c *conn) enqueue(msg ServerMessage) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	default:
		c.logger.Warn().Str("type", msg.Type).Msg("Send queue full, dropping message")
	}
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket write error")
				c.close()
				_ = c.ws.Close()
				return
			}
		}
	}
}

// meterLoop streams live signal readings while recording.
func (c *conn) meterLoop() {
	ticker := time.NewTicker(c.deps.Config.StressSampleInterval())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.session.State() != interview.StateRecording {
				continue
			}
			v := c.session.View()
			c.enqueue(ServerMessage{Type: msgMeter, View: &v})
		}
	}
}
