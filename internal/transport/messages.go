package transport

import (
	"github.com/lexiqai/interview-coach/internal/interview"
	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/posture"
	"github.com/lexiqai/interview-coach/internal/transcript"
)

// Client message types
const (
	msgStartInterview = "start_interview"
	msgStartRecording = "start_recording"
	msgStopRecording  = "stop_recording"
	msgSubmitAnswer   = "submit_answer"
	msgEndInterview   = "end_interview"
	msgRestart        = "restart"
	msgPose           = "pose"
	msgAudioSpectrum  = "audio_spectrum"
	msgAudioPCM       = "audio_pcm"
	msgRecognition    = "recognition"
	msgRecognitionEnd = "recognition_end"
	msgDeviceStatus   = "device_status"
)

// Server message types not mirrored from session events
const (
	msgAnswer            = "answer"
	msgMeter             = "meter"
	msgPostureWarning    = "posture_warning"
	msgRecognizerRestart = "recognizer_restart"
	msgSpeechAudio       = "speech_audio"
	msgError             = "error"
)

// Engine names the client uses in device_status messages.
const (
	enginePose   = "pose"
	engineAudio  = "audio"
	engineSpeech = "speech"
)

// ClientMessage is one message received from the browser.
type ClientMessage struct {
	Type string `json:"type"`

	// start_interview
	ProfileID string `json:"profileId,omitempty"`

	// submit_answer
	Answer string `json:"answer,omitempty"`

	// pose
	Pose *posture.Sample `json:"pose,omitempty"`

	// audio_spectrum
	Bins []float64 `json:"bins,omitempty"`

	// audio_pcm, 16-bit little-endian PCM
	Audio []byte `json:"audio,omitempty"`

	// recognition
	Recognition *transcript.Event `json:"recognition,omitempty"`

	// recognition_end and device_status
	Engine string `json:"engine,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ServerMessage is one message sent to the browser.
type ServerMessage struct {
	Type string `json:"type"`

	State         interview.State     `json:"state,omitempty"`
	QuestionIndex int                 `json:"questionIndex,omitempty"`
	Total         int                 `json:"total,omitempty"`
	Question      *model.Question     `json:"question,omitempty"`
	Answer        *model.AnswerRecord `json:"answer,omitempty"`
	Result        *interview.Result   `json:"result,omitempty"`
	View          *interview.View     `json:"view,omitempty"`
	Warning       *posture.Warning    `json:"warning,omitempty"`

	Engine string `json:"engine,omitempty"`
	Error  string `json:"error,omitempty"`

	// speech_audio, 16-bit little-endian PCM
	Audio      []byte `json:"audio,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Seq        int    `json:"seq,omitempty"`
	Final      bool   `json:"final,omitempty"`
}

func fromEvent(ev interview.Event) ServerMessage {
	return ServerMessage{
		Type:          string(ev.Type),
		State:         ev.State,
		QuestionIndex: ev.QuestionIndex,
		Total:         ev.Total,
		Question:      ev.Question,
		Result:        ev.Result,
		Engine:        ev.Engine,
		Error:         ev.Error,
	}
}
