// Package tts reads interview questions aloud with Cartesia.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-coach/internal/observability"
)

const (
	defaultURL        = "https://api.cartesia.ai/tts/bytes"
	cartesiaVersion   = "2024-06-10"
	defaultSampleRate = 24000
	chunkSize         = 4096
)

// Chunk is a piece of synthesized 16-bit little-endian PCM.
type Chunk struct {
	Seq        int    `json:"seq"`
	Data       []byte `json:"data"`
	SampleRate int    `json:"sampleRate"`
	Final      bool   `json:"final"`
}

// Options configures a Speaker.
type Options struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	URL        string
	SampleRate int
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type voice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type request struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voice        `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
}

// Speaker synthesizes text and streams the audio to a sink. Speak and Stop
// never block; a new Speak cancels the utterance in progress.
type Speaker struct {
	opts Options
	sink func(Chunk)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSpeaker creates a speaker delivering audio to sink.
func NewSpeaker(opts Options, sink func(Chunk)) *Speaker {
	if opts.URL == "" {
		opts.URL = defaultURL
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Speaker{opts: opts, sink: sink}
}

// Speak starts reading text aloud.
func (s *Speaker) Speak(text string) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := s.synthesize(ctx, text)
		observability.RecordSpeech("cartesia", err == nil || errors.Is(err, context.Canceled))
		if err != nil && !errors.Is(err, context.Canceled) {
			s.opts.Logger.Warn().Err(err).Msg("Speech synthesis failed")
		}
	}()
}

// Stop cancels the utterance in progress, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Wait blocks until the latest utterance has finished or was cancelled.
func (s *Speaker) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *Speaker) synthesize(ctx context.Context, text string) error {
	body, err := json.Marshal(request{
		ModelID:    s.opts.ModelID,
		Transcript: text,
		Voice:      voice{Mode: "id", ID: s.opts.VoiceID},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: s.opts.SampleRate,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.opts.APIKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cartesia API returned status %d", resp.StatusCode)
	}

	buf := make([]byte, chunkSize)
	seq := 0
	var carry []byte
	for {
		n, readErr := resp.Body.Read(buf)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data := append(carry, buf[:n]...)
		// Keep whole 16-bit samples together.
		even := len(data) &^ 1
		carry = append([]byte(nil), data[even:]...)
		data = data[:even]

		final := errors.Is(readErr, io.EOF)
		if len(data) > 0 || final {
			s.sink(Chunk{Seq: seq, Data: data, SampleRate: s.opts.SampleRate, Final: final})
			observability.RecordAudioBytes("out", int64(len(data)))
			seq++
		}

		if final {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("error reading Cartesia audio: %w", readErr)
		}
	}
}
