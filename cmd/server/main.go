package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lexiqai/interview-coach/internal/aiservice"
	"github.com/lexiqai/interview-coach/internal/config"
	"github.com/lexiqai/interview-coach/internal/interview"
	"github.com/lexiqai/interview-coach/internal/observability"
	"github.com/lexiqai/interview-coach/internal/questions"
	"github.com/lexiqai/interview-coach/internal/resilience"
	"github.com/lexiqai/interview-coach/internal/scoring"
	"github.com/lexiqai/interview-coach/internal/stt"
	"github.com/lexiqai/interview-coach/internal/transport"
	"github.com/lexiqai/interview-coach/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("ai_service_url", cfg.AIServiceURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Bool("server_stt", cfg.DeepgramAPIKey != "").
		Bool("server_tts", cfg.CartesiaAPIKey != "").
		Msg("Interview Coach Service starting")

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	bank, err := questions.LoadBank(cfg.QuestionBankPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.QuestionBankPath).Msg("Failed to load question bank")
	}

	ai, err := aiservice.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create AI service client")
	}

	generator := questions.WithFallback(ai, bank, cfg.QuestionCount, logger)
	generator.OnOutcome(func(s questions.Source) {
		observability.RecordQuestionSource(string(s))
	})

	scoringBreaker := resilience.NewCircuitBreaker("ai_scoring", cfg.CircuitBreakerMaxFailures, cfg.BreakerResetTimeout())
	scoringBreaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})
	gateway := scoring.Protect(ai, scoringBreaker, cfg.Retry(), cfg.AITimeout(), logger)

	deps := transport.Deps{
		Config:    cfg,
		Bank:      bank,
		Generator: generator,
		Gateway:   gateway,
	}
	if cfg.DeepgramAPIKey != "" {
		deps.NewRecognizer = func(l zerolog.Logger) *stt.Recognizer {
			return stt.New(stt.Options{
				APIKey:          cfg.DeepgramAPIKey,
				Model:           cfg.DeepgramModel,
				Language:        cfg.DeepgramLanguage,
				InputSampleRate: cfg.AudioInputSampleRate,
				BufferSize:      cfg.AudioBufferSize,
				Logger:          l,
			})
		}
	}
	if cfg.CartesiaAPIKey != "" {
		deps.NewSpeaker = func(sink func(tts.Chunk), l zerolog.Logger) interview.Speaker {
			return tts.NewSpeaker(tts.Options{
				APIKey:  cfg.CartesiaAPIKey,
				VoiceID: cfg.CartesiaVoiceID,
				ModelID: cfg.CartesiaModelID,
				Logger:  l,
			}, sink)
		}
	}
	sessions := transport.NewHandler(deps)

	router := mux.NewRouter()
	router.Handle("/interview/ws", sessions)
	router.HandleFunc("/profiles", transport.ProfilesHandler(bank)).Methods(http.MethodGet)
	router.HandleFunc("/health", observability.HealthCheckHandler()).Methods(http.MethodGet)
	router.HandleFunc("/ready", observability.ReadinessHandler(
		observability.Checker{Name: "ai_service", Check: ai.HealthCheck},
	)).Methods(http.MethodGet)

	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No write timeout: websocket sessions are long-lived.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/interview/ws", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Int("sessions", sessions.ActiveSessions()).Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown does not close hijacked websocket connections.
	sessions.Shutdown()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := ai.Close(); err != nil {
		logger.Warn().Err(err).Msg("Error closing AI service client")
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Error shutting down tracer provider")
	}

	logger.Info().Msg("Server exited gracefully")
}
