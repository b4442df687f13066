// Package relay exposes the conversation manager over HTTP and MCP. Each
// request is one turn for one caller; the relay keeps no state of its own
// beyond the per-caller in-flight guard.
package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/chathub/pkg/session"
	"github.com/papercomputeco/chathub/pkg/sydney"
)

// Relay is the HTTP front end for the conversation manager.
type Relay struct {
	config   Config
	sessions *Sessions
	logger   *zap.Logger
	server   *fiber.App
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Caller  string `json:"caller"`
	Message string `json:"message"`
	Style   string `json:"style,omitempty"`
}

// New creates a new Relay around manager.
func New(config Config, manager *session.Manager, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	r := &Relay{
		config:   config,
		sessions: NewSessions(manager),
		logger:   logger,
		server:   app,
	}

	app.Post("/api/chat", r.handleChat)
	app.Get("/api/session/:caller", r.handleGetSession)
	app.Delete("/api/session/:caller", r.handleDeleteSession)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	mcpServer := NewMCPServer(r.sessions, config.Version, logger)
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, &mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true})
	app.All("/mcp", adaptor.HTTPHandler(mcpHandler))

	return r
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server", zap.String("listen", r.config.ListenAddr))
	return r.server.Listen(r.config.ListenAddr)
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (r *Relay) Shutdown() error {
	return r.server.Shutdown()
}

// handleChat runs one turn. Backend failures are reported as chat text so a
// front end can show them verbatim.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(sydney.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(sydney.ErrorResponse{Error: "message is required"})
	}

	r.logger.Debug("received chat request",
		zap.String("caller", req.Caller),
		zap.String("style", req.Style),
		zap.String("message_preview", truncate(req.Message, 50)),
	)

	reply, err := r.sessions.Turn(c.UserContext(), req.Caller, req.Style, req.Message)
	switch {
	case errors.Is(err, ErrEmptyCaller):
		return c.Status(fiber.StatusBadRequest).JSON(sydney.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(sydney.ErrorResponse{Error: err.Error()})
	case err != nil:
		r.logger.Error("turn failed",
			zap.String("caller", req.Caller),
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(session.Reply{
			Text:        "Error: " + err.Error(),
			Suggestions: []string{},
		})
	}

	r.logger.Info("turn completed",
		zap.String("caller", req.Caller),
		zap.Bool("ended", reply.Ended),
		zap.Int("remaining", reply.Remaining),
		zap.Duration("duration", time.Since(startTime)),
	)
	return c.JSON(reply)
}

// handleGetSession returns the caller's persisted conversation.
func (r *Relay) handleGetSession(c *fiber.Ctx) error {
	conv, err := r.sessions.Peek(c.UserContext(), c.Params("caller"))
	if err != nil {
		var notFound session.ErrNotFound
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(sydney.ErrorResponse{Error: "session not found"})
		}
		r.logger.Error("failed to read session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(sydney.ErrorResponse{Error: "failed to read session"})
	}
	return c.JSON(conv)
}

// handleDeleteSession drops the caller's conversation.
func (r *Relay) handleDeleteSession(c *fiber.Ctx) error {
	if err := r.sessions.Reset(c.UserContext(), c.Params("caller")); err != nil {
		switch {
		case errors.Is(err, ErrEmptyCaller):
			return c.Status(fiber.StatusBadRequest).JSON(sydney.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrBusy):
			return c.Status(fiber.StatusConflict).JSON(sydney.ErrorResponse{Error: err.Error()})
		}
		r.logger.Error("failed to reset session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(sydney.ErrorResponse{Error: "failed to reset session"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
