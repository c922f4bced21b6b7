package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/interview-coach/internal/aiservice"
	"github.com/lexiqai/interview-coach/internal/capture"
	"github.com/lexiqai/interview-coach/internal/config"
	"github.com/lexiqai/interview-coach/internal/interview"
	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/observability"
	"github.com/lexiqai/interview-coach/internal/posture"
	"github.com/lexiqai/interview-coach/internal/questions"
	"github.com/lexiqai/interview-coach/internal/scoring"
	"github.com/lexiqai/interview-coach/internal/signals"
	"github.com/lexiqai/interview-coach/internal/stress"
	"github.com/lexiqai/interview-coach/internal/transcript"
)

type options struct {
	aiService string
	logLevel  string
	posture   posture.Config
	stress    stress.Config
}

func newRootCmd() *cobra.Command {
	opts := options{
		posture: posture.DefaultConfig(),
		stress:  stress.DefaultConfig(),
	}

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Replay a recorded signal script through the interview pipeline",
		Long: `Replay feeds the pose samples, audio spectra and recognition results of a
recorded script through the posture classifier, stress estimator and
transcript accumulator, answering one question per segment, and prints the
resulting answers, session metrics and feedback as JSON.

Without an AI service the feedback is the degraded local result.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			observability.InitLogger(opts.logLevel, true)

			script, err := LoadScript(args[0])
			if err != nil {
				return err
			}
			result, err := replay(cmd.Context(), script, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.aiService, "ai-service", config.GetEnv("AI_SERVICE_URL", ""), "AI service address used for scoring; empty scores locally")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	f.Float64Var(&opts.posture.SlouchRatio, "slouch-ratio", opts.posture.SlouchRatio, "neck length to shoulder span ratio below which the candidate slouches")
	f.Float64Var(&opts.posture.TiltRatio, "tilt-ratio", opts.posture.TiltRatio, "shoulder height difference to span ratio above which shoulders tilt")
	f.DurationVar(&opts.posture.Cooldown, "posture-cooldown", opts.posture.Cooldown, "minimum time between posture warnings")
	f.Float64Var(&opts.stress.Smoothing, "stress-smoothing", opts.stress.Smoothing, "weight of the previous stress reading")
	f.Float64Var(&opts.stress.FullScale, "stress-full-scale", opts.stress.FullScale, "mean spectrum magnitude read as 100% stress")

	return cmd
}

func replay(ctx context.Context, script *Script, opts options) (*interview.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithSession("replay")

	bank := questions.DefaultBank()
	profile, ok := bank.Profile(script.Profile)
	if !ok {
		profile = model.Profile{ID: script.Profile, Name: script.Profile}
	}

	var gateway scoring.Gateway
	if opts.aiService != "" {
		client, err := aiservice.New(opts.aiService, aiservice.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		defer client.Close()
		gateway = client
	}

	agg := signals.New(posture.NewClassifier(opts.posture), stress.New(opts.stress), transcript.NewAccumulator())
	pose := capture.NewFeed[posture.Sample]("pose")
	spectrum := capture.NewFeed[[]float64]("audio")
	speech := capture.NewFeed[transcript.Event]("speech")
	pose.OnData(func(s posture.Sample) { agg.RecordPose(s) })
	spectrum.OnData(func(frame []float64) {
		agg.RecordAudioFrame(frame)
		agg.SampleStress()
	})
	speech.OnData(agg.RecordRecognition)

	session := interview.New("replay", interview.Options{
		Generator:      scripted(script.Questions()),
		Gateway:        gateway,
		Aggregator:     agg,
		Engines:        []capture.Engine{spectrum, speech},
		SessionEngines: []capture.Engine{pose},
		StressInterval: time.Hour,
		Logger:         logger,
	})
	defer session.Close()

	if err := session.StartInterview(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to start interview: %w", err)
	}

	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, seg := range script.Segments {
		if err := session.StartRecording(ctx); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		for _, p := range seg.Poses {
			s := p.Sample
			s.At = at(base, i, p.OffsetMs)
			pose.Push(s)
		}
		for _, frame := range seg.Spectra {
			spectrum.Push(frame)
		}
		for _, ev := range seg.Recognition {
			speech.Push(ev)
		}
		if _, err := session.SubmitAnswer(ctx, seg.Typed); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
	}

	result := session.Result()
	if result == nil {
		return nil, fmt.Errorf("session ended in state %s without a result", session.State())
	}
	return result, nil
}

type scripted []model.Question

func (s scripted) Generate(ctx context.Context, profile model.Profile) ([]model.Question, error) {
	return s, nil
}
