// Package stt streams candidate audio to Deepgram and reports recognition
// results as transcript events.
package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-coach/internal/audio"
	"github.com/lexiqai/interview-coach/internal/capture"
	"github.com/lexiqai/interview-coach/internal/observability"
	"github.com/lexiqai/interview-coach/internal/transcript"
)

// ErrConnectFailed is returned when the streaming socket could not be opened.
var ErrConnectFailed = errors.New("failed to connect to Deepgram")

// Options configures a Recognizer.
type Options struct {
	APIKey   string
	Model    string
	Language string
	// InputSampleRate is the rate of the 16-bit PCM passed to SendAudio.
	InputSampleRate int
	// BufferSize bounds the audio held while the socket is connecting.
	BufferSize int
	Logger     zerolog.Logger
}

// stream is the part of the Deepgram websocket client the recognizer uses.
type stream interface {
	Write(p []byte) (int, error)
	Finish()
}

// dialFunc opens a stream delivering callbacks to cb.
type dialFunc func(ctx context.Context, cb msginterfaces.LiveMessageCallback) (stream, error)

// Recognizer is a speech engine backed by Deepgram live transcription.
// It satisfies transcript.Recognizer.
type Recognizer struct {
	opts Options
	dial dialFunc

	mu         sync.Mutex
	stream     stream
	connecting bool
	generation uint64
	pending    *audio.RingBuffer
	onResult   func(transcript.Event)
	onEnd      func(error)
}

// New creates a stopped recognizer.
func New(opts Options) *Recognizer {
	if opts.InputSampleRate <= 0 {
		opts.InputSampleRate = 16000
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 16384
	}
	r := &Recognizer{
		opts:    opts,
		pending: audio.NewRingBuffer(opts.BufferSize),
	}
	r.dial = r.dialDeepgram
	return r
}

func (r *Recognizer) Name() string {
	return "speech"
}

// OnResult registers the handler receiving recognition events.
func (r *Recognizer) OnResult(fn func(transcript.Event)) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

// OnEnd registers the handler told when the stream ends without Stop.
func (r *Recognizer) OnEnd(fn func(error)) {
	r.mu.Lock()
	r.onEnd = fn
	r.mu.Unlock()
}

// Start opens a streaming session. Audio sent while connecting is buffered
// and flushed once the socket is up.
func (r *Recognizer) Start(ctx context.Context) error {
	if r.opts.APIKey == "" {
		return fmt.Errorf("deepgram API key not configured: %w", capture.ErrNoDevice)
	}

	r.mu.Lock()
	if r.stream != nil || r.connecting {
		r.mu.Unlock()
		return nil
	}
	r.connecting = true
	r.generation++
	gen := r.generation
	r.pending.Reset()
	r.mu.Unlock()

	s, err := r.dial(ctx, &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		rec:                    r,
		gen:                    gen,
	})

	r.mu.Lock()
	r.connecting = false
	if err != nil {
		r.mu.Unlock()
		observability.RecordSpeech("deepgram", false)
		return classify(err)
	}
	if r.generation != gen {
		// Stopped while connecting.
		r.mu.Unlock()
		s.Finish()
		return nil
	}
	r.stream = s
	buffered := r.pending.Drain()
	r.mu.Unlock()

	observability.RecordSpeech("deepgram", true)
	if len(buffered) > 0 {
		if _, err := s.Write(buffered); err != nil {
			r.opts.Logger.Warn().Err(err).Int("bytes", len(buffered)).Msg("Failed to flush buffered audio")
		}
	}

	r.opts.Logger.Info().Str("model", r.opts.Model).Str("language", r.opts.Language).Msg("Deepgram stream started")
	return nil
}

// Stop finishes the streaming session. Results arriving afterwards are
// dropped.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	s := r.stream
	r.stream = nil
	r.connecting = false
	r.generation++
	r.pending.Reset()
	r.mu.Unlock()

	if s != nil {
		s.Finish()
		r.opts.Logger.Debug().Msg("Deepgram stream stopped")
	}
	return nil
}

// SendAudio forwards 16-bit PCM to the stream. Audio is dropped while the
// recognizer is stopped.
func (r *Recognizer) SendAudio(pcm []byte) error {
	mulaw, err := audio.PCM16ToMulaw(pcm, r.opts.InputSampleRate)
	if err != nil {
		return err
	}

	r.mu.Lock()
	s := r.stream
	if s == nil {
		if r.connecting {
			if dropped := r.pending.Write(mulaw); dropped > 0 {
				r.opts.Logger.Debug().Int("dropped", dropped).Msg("Pending audio buffer full")
			}
		}
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if _, err := s.Write(mulaw); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	observability.RecordAudioBytes("in", int64(len(pcm)))
	return nil
}

func (r *Recognizer) dialDeepgram(ctx context.Context, cb msginterfaces.LiveMessageCallback) (stream, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          r.opts.Model,
		Language:       r.opts.Language,
		Punctuate:      true,
		InterimResults: true,
		SmartFormat:    true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "mulaw",
		Channels:       1,
		SampleRate:     audio.MulawSampleRate,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, r.opts.APIKey, &interfaces.ClientOptions{}, tOptions, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, ErrConnectFailed
	}
	return client, nil
}

// current reports whether callbacks of gen still belong to the live stream.
func (r *Recognizer) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == gen && r.stream != nil
}

func (r *Recognizer) deliver(gen uint64, ev transcript.Event) {
	r.mu.Lock()
	fn := r.onResult
	live := r.generation == gen && r.stream != nil
	r.mu.Unlock()

	if live && fn != nil {
		fn(ev)
	}
}

// ended detaches the stream of gen and notifies the end handler.
func (r *Recognizer) ended(gen uint64, err error) {
	r.mu.Lock()
	if r.generation != gen || r.stream == nil {
		r.mu.Unlock()
		return
	}
	r.stream = nil
	r.generation++
	fn := r.onEnd
	r.mu.Unlock()

	observability.RecordSpeech("deepgram", err == nil)
	if fn != nil {
		fn(err)
	}
}

// classify marks authentication failures as permanent.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid_auth") {
		return fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
	}
	return err
}

// callbackHandler routes Deepgram callbacks of one stream generation.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	rec *Recognizer
	gen uint64
}

func (h *callbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return nil
	}

	text := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript)
	if text == "" {
		return nil
	}

	ev := transcript.Event{Interim: text}
	if msg.IsFinal {
		ev = transcript.Event{Final: []string{text}}
	}
	h.rec.deliver(h.gen, ev)
	return nil
}

func (h *callbackHandler) Error(er *msginterfaces.ErrorResponse) error {
	err := fmt.Errorf("deepgram error: %+v", er)
	h.rec.opts.Logger.Warn().Err(err).Msg("Deepgram stream error")
	h.rec.ended(h.gen, classify(err))
	return nil
}

func (h *callbackHandler) Close(cr *msginterfaces.CloseResponse) error {
	if h.rec.current(h.gen) {
		h.rec.opts.Logger.Info().Msg("Deepgram closed the stream")
	}
	h.rec.ended(h.gen, nil)
	return nil
}
