package middleware

import (
	"context"
	"errors"
	"time"

	"smsfilter/pkg/apperr"
	"smsfilter/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AuditEvent records one settings mutation.
type AuditEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Subject    string    `json:"subject,omitempty"`
	Action     string    `json:"action"`
	ResourceID string    `json:"resource_id,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	Duration   int64     `json:"duration_ms"`
	RequestID  string    `json:"request_id"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

type AuditSink interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// LogAuditSink writes events to the structured log.
type LogAuditSink struct {
	log zerolog.Logger
}

func NewLogAuditSink(log zerolog.Logger) *LogAuditSink {
	return &LogAuditSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogAuditSink) Record(_ context.Context, e *AuditEvent) error {
	s.log.Info().
		Str("action", e.Action).
		Str("subject", e.Subject).
		Str("resource_id", e.ResourceID).
		Int("status", e.StatusCode).
		Bool("success", e.Success).
		Str("request_id", e.RequestID).
		Msg("settings changed")
	return nil
}

// RedisAuditSink appends events to a capped Redis stream.
type RedisAuditSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisAuditSink(client *redis.Client, stream string) *RedisAuditSink {
	return &RedisAuditSink{client: client, stream: stream, maxLen: 10000}
}

func (s *RedisAuditSink) Record(ctx context.Context, e *AuditEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"event": string(data)},
		MaxLen: s.maxLen,
		Approx: true,
	}).Err()
}

// Audit records every non-GET request that reaches a route. Recording is
// asynchronous and never affects the response.
func Audit(sink AuditSink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := c.Method()
		if sink == nil || method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = apperr.GetHTTPStatus(err)
			}
		}

		event := &AuditEvent{
			ID:         uuid.NewString(),
			Timestamp:  start.UTC(),
			Action:     method + " " + c.Route().Path,
			ResourceID: firstParam(c),
			Method:     method,
			Path:       c.Path(),
			IP:         c.IP(),
			StatusCode: status,
			Duration:   time.Since(start).Milliseconds(),
			RequestID:  c.GetRespHeader("X-Request-ID"),
			Success:    status < 400,
		}
		if sub, ok := c.Locals("subject").(string); ok {
			event.Subject = sub
		}
		if err != nil {
			event.Error = err.Error()
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if logErr := sink.Record(ctx, event); logErr != nil {
				logger.WithError(logErr).Warn("Failed to record audit event")
			}
		}()

		return err
	}
}

func firstParam(c *fiber.Ctx) string {
	for _, name := range c.Route().Params {
		if v := c.Params(name); v != "" {
			return v
		}
	}
	return ""
}
