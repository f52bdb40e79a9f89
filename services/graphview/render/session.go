// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/depscope/depscope/services/graphview/graph"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 1024 * 1024,
}

// ViewEvent is one client interaction message.
type ViewEvent struct {
	// Action is pointer_down, pointer_move, pointer_up, wheel, resize,
	// highlight or detail.
	Action string  `json:"action"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	// Factor is the zoom multiplier for wheel events.
	Factor float64 `json:"factor,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	// NodeIDs carries the highlight set for highlight actions.
	NodeIDs []string `json:"node_ids,omitempty"`
	// NodeID selects the target for detail actions.
	NodeID string `json:"node_id,omitempty"`
}

// ViewMessage is one server reply: a frame after every state-changing
// event, a pick result after a click, or a node detail.
type ViewMessage struct {
	Action string      `json:"action"`
	Frame  *Frame      `json:"frame,omitempty"`
	Picked string      `json:"picked,omitempty"`
	Detail *NodeDetail `json:"detail,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ViewSession drives one interactive view over a websocket: the client
// streams pointer and zoom events, the server answers with culled
// frames and pick results.
type ViewSession struct {
	renderer *Renderer
	viewport *Viewport
	details  *DetailLoader
	logger   *slog.Logger
}

// NewViewSession wires a session over an existing renderer.
func NewViewSession(g *graph.Graph, renderer *Renderer, viewport *Viewport, logger *slog.Logger) *ViewSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewSession{
		renderer: renderer,
		viewport: viewport,
		details:  NewDetailLoader(g),
		logger:   logger,
	}
}

// Serve upgrades the request and runs the event loop until the client
// disconnects or the request context ends.
func (s *ViewSession) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx := r.Context()
	log := s.logger.With(slog.String("remote", ws.RemoteAddr().String()))
	log.Info("view session connected")

	// Initial frame so the client has something to draw immediately.
	if frame, err := s.renderer.BuildFrame(ctx); err == nil {
		s.send(ws, ViewMessage{Action: "frame", Frame: frame})
	}

	for {
		var event ViewEvent
		if err := ws.ReadJSON(&event); err != nil {
			log.Info("view session disconnected", slog.String("reason", err.Error()))
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch event.Action {
		case "pointer_down":
			s.viewport.PointerDown(event.X, event.Y)

		case "pointer_move":
			s.viewport.PointerMove(event.X, event.Y)
			s.sendFrame(ctx, ws)

		case "pointer_up":
			if s.viewport.PointerUp() {
				if id, hit := s.renderer.Pick(event.X, event.Y); hit {
					s.send(ws, ViewMessage{Action: "picked", Picked: id})
				}
			}
			s.sendFrame(ctx, ws)

		case "wheel":
			s.viewport.Zoom(event.Factor, event.X, event.Y)
			s.sendFrame(ctx, ws)

		case "resize":
			s.viewport.Resize(event.Width, event.Height)
			s.sendFrame(ctx, ws)

		case "highlight":
			s.renderer.Highlight(event.NodeIDs)
			s.sendFrame(ctx, ws)

		case "detail":
			detail, err := s.details.Load(ctx, event.NodeID)
			if err != nil && detail == nil {
				s.send(ws, ViewMessage{Action: "detail", Error: err.Error()})
				continue
			}
			s.send(ws, ViewMessage{Action: "detail", Detail: detail})

		default:
			log.Warn("unknown view action", slog.String("action", event.Action))
		}
	}
}

func (s *ViewSession) sendFrame(ctx context.Context, ws *websocket.Conn) {
	frame, err := s.renderer.BuildFrame(ctx)
	if err != nil {
		s.send(ws, ViewMessage{Action: "frame", Error: err.Error()})
		return
	}
	s.send(ws, ViewMessage{Action: "frame", Frame: frame})
}

func (s *ViewSession) send(ws *websocket.Conn, msg ViewMessage) {
	if err := ws.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", slog.String("error", err.Error()))
	}
}
