/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package ingress receives chat events over HTTP and hands them to the
// orchestrator.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"chainguard.dev/autopatch/chatops/orchestrator"
	"github.com/chainguard-dev/clog"
	"github.com/labstack/echo/v4"
)

// EventsPath is where chat events are delivered.
const EventsPath = "/slack/events"

// Handler accepts events. *orchestrator.Orchestrator implements it.
type Handler interface {
	Handle(ctx context.Context, ev orchestrator.Event) bool
}

// Verifier checks that a request really came from the chat platform.
type Verifier interface {
	Verify(header http.Header, body []byte) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(header http.Header, body []byte) error

// Verify implements Verifier.
func (f VerifierFunc) Verify(header http.Header, body []byte) error { return f(header, body) }

type envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	EventID   string `json:"event_id"`
	Event     struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
		Text    string `json:"text"`
		Channel string `json:"channel"`
		User    string `json:"user"`
		BotID   string `json:"bot_id"`
	} `json:"event"`
}

// Server is the HTTP front end.
type Server struct {
	echo      *echo.Echo
	handler   Handler
	verifier  Verifier
	botUserID string
}

// Option configures a Server.
type Option func(*Server)

// WithVerifier rejects requests that v does not accept.
func WithVerifier(v Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithBotUserID ignores messages sent by the bot's own user.
func WithBotUserID(id string) Option {
	return func(s *Server) { s.botUserID = id }
}

// New creates a Server that forwards accepted events to h.
func New(h Handler, opts ...Option) (*Server, error) {
	if h == nil {
		return nil, errors.New("handler cannot be nil")
	}
	s := &Server{echo: echo.New(), handler: h}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.POST(EventsPath, s.events)
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) events(c echo.Context) error {
	ctx := c.Request().Context()
	log := clog.FromContext(ctx)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if s.verifier != nil {
		if err := s.verifier.Verify(c.Request().Header, body); err != nil {
			log.With("error", err).Warn("Rejecting unverified request")
			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.With("error", err).Warn("Rejecting malformed event")
		return c.NoContent(http.StatusBadRequest)
	}

	switch env.Type {
	case "url_verification":
		return c.String(http.StatusOK, env.Challenge)
	case "event_callback":
	default:
		return c.NoContent(http.StatusOK)
	}

	ev := env.Event
	log = log.With("event_id", env.EventID, "channel", ev.Channel)
	if ev.BotID != "" || ev.Subtype == "bot_message" || (s.botUserID != "" && ev.User == s.botUserID) {
		log.Debug("Ignoring bot message")
		return c.NoContent(http.StatusOK)
	}
	if ev.Type != "message" && ev.Type != "app_mention" {
		return c.NoContent(http.StatusOK)
	}
	text := StripMentions(ev.Text)
	if text == "" {
		return c.NoContent(http.StatusOK)
	}

	accepted := s.handler.Handle(ctx, orchestrator.Event{
		ID:        env.EventID,
		ChannelID: ev.Channel,
		SenderID:  ev.User,
		Text:      text,
	})
	log.With("accepted", accepted).Info("Received chat event")
	return c.NoContent(http.StatusOK)
}

var mention = regexp.MustCompile(`<@[^>]+>`)

// StripMentions removes user mention tokens such as <@U123> and trims the
// result.
func StripMentions(text string) string {
	return strings.TrimSpace(mention.ReplaceAllString(text, ""))
}
