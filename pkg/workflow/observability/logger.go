// Package observability provides the logging, metrics and tracing hooks the
// workflow engine calls around every turn and stage.
//
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds conversation context to a logger.
//
//	enriched := EnrichLogger(logger, "conv-123", "triage", 2)
//	enriched.Info("classifying") // includes conversation_id, stage_id, turn
func EnrichLogger(logger *slog.Logger, conversationID, stageID string, turn int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("conversation_id", conversationID),
		slog.String("stage_id", stageID),
		slog.Int("turn", turn),
	)
}

// LogTurnStart logs the start of a conversation turn.
func LogTurnStart(logger *slog.Logger, conversationID string, turn int) {
	if logger == nil {
		return
	}
	logger.Info("turn starting",
		slog.String("conversation_id", conversationID),
		slog.Int("turn", turn),
	)
}

// LogTurnComplete logs a turn that reached the terminal marker.
func LogTurnComplete(logger *slog.Logger, conversationID string, durationMs float64, stageCount int) {
	if logger == nil {
		return
	}
	logger.Info("turn completed",
		slog.String("conversation_id", conversationID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stages_executed", stageCount),
	)
}

// LogTurnError logs a turn aborted by a fatal error.
func LogTurnError(logger *slog.Logger, conversationID string, err error, durationMs float64, lastStage string) {
	if logger == nil {
		return
	}
	logger.Error("turn failed",
		slog.String("conversation_id", conversationID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_stage", lastStage),
	)
}

// LogStageStart logs stage execution start.
func LogStageStart(logger *slog.Logger, stageID string) {
	if logger == nil {
		return
	}
	logger.Debug("stage starting",
		slog.String("stage_id", stageID),
	)
}

// LogStageComplete logs successful stage completion.
func LogStageComplete(logger *slog.Logger, stageID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("stage completed",
		slog.String("stage_id", stageID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStageFault logs a stage fault. recovered reports whether the stage's
// fallback produced the update.
func LogStageFault(logger *slog.Logger, stageID string, err error, recovered bool) {
	if logger == nil {
		return
	}
	level := slog.LevelError
	if recovered {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "stage fault",
		slog.String("stage_id", stageID),
		slog.String("error", err.Error()),
		slog.Bool("recovered", recovered),
	)
}

// LogTransition logs the edge taken after a stage.
func LogTransition(logger *slog.Logger, from, label, to string) {
	if logger == nil {
		return
	}
	logger.Debug("transition",
		slog.String("from", from),
		slog.String("label", label),
		slog.String("to", to),
	)
}

// LogCheckpoint logs a checkpoint save.
func LogCheckpoint(logger *slog.Logger, stageID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("stage_id", stageID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, stageID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("stage_id", stageID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// The returned function reports the elapsed time.
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// Milliseconds converts a duration to fractional milliseconds for log fields.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
