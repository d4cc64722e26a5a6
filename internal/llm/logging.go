package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// loggingProvider records one structured log line per Generate call.
type loggingProvider struct {
	Provider
	log *zap.Logger
}

// WithLogging wraps p so every request is logged with a request id,
// purpose, latency and token usage. Prompts are logged at debug level.
func WithLogging(p Provider, log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &loggingProvider{Provider: p, log: log.Named("llm")}
}

func (l *loggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.Provider.Generate(ctx, req)

	fields := []zap.Field{
		zap.String("request_id", uuid.NewString()),
		zap.String("provider", l.Name()),
		zap.String("model", l.ModelID()),
		zap.String("purpose", PurposeFrom(ctx)),
		zap.Duration("latency", time.Since(start)),
	}
	if req.Schema != nil {
		fields = append(fields, zap.String("schema", req.Schema.Name))
	}
	if resp != nil {
		fields = append(fields,
			zap.String("served_by", resp.Model),
			zap.Int("input_tokens", resp.Usage.InputTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
		)
	}

	if err != nil {
		l.log.Warn("llm request failed", append(fields, zap.Error(err))...)
		return resp, err
	}
	l.log.Info("llm request", fields...)
	if ce := l.log.Check(zap.DebugLevel, "llm exchange"); ce != nil {
		ce.Write(
			zap.String("system", req.System),
			zap.Any("messages", req.Messages),
			zap.ByteString("response", resp.Content),
		)
	}
	return resp, nil
}
