package bootstrap

import (
	"context"
	"io"
	"strings"

	"smsfilter/config"
	"smsfilter/core/domain"
	"smsfilter/core/service/filter"
	"smsfilter/pkg/logger"

	"github.com/goccy/go-json"
)

// maxExtensionInput bounds the single request read from stdin.
const maxExtensionInput = 64 * 1024

// extensionRequest is one line of input from the host. Type "capabilities"
// asks for the supported sub-actions; anything else is a filter request.
type extensionRequest struct {
	Type    string `json:"type,omitempty"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// RunExtension answers exactly one request read from in and exits. Every
// failure path still writes an allow decision.
func RunExtension(cfg *config.Config, in io.Reader, w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.FilterDeadline())
	defer cancel()

	deps, cleanup, err := NewDependencies(ctx, cfg, ModeExtension)
	if err != nil {
		logger.WithError(err).Warn("Extension dependencies unavailable, answering allow")
		return writeJSON(w, domain.AllowDecision())
	}
	defer cleanup()

	return ServeExtension(ctx, deps.FilterService, in, w)
}

// ServeExtension decodes one request from in and writes the answer to w.
func ServeExtension(ctx context.Context, svc *filter.Service, in io.Reader, w io.Writer) error {
	var req extensionRequest
	if err := json.NewDecoder(io.LimitReader(in, maxExtensionInput)).Decode(&req); err != nil {
		logger.WithError(err).Warn("Malformed extension request, answering allow")
		return writeJSON(w, domain.AllowDecision())
	}

	if strings.EqualFold(req.Type, "capabilities") {
		return writeJSON(w, svc.Capabilities())
	}

	decision := svc.Handle(ctx, domain.RawMessage{Sender: req.Sender, Content: req.Content})
	return writeJSON(w, decision)
}

// WriteAllow writes the failsafe decision.
func WriteAllow(w io.Writer) error {
	return writeJSON(w, domain.AllowDecision())
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
