// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"math"
	"sync"

	"github.com/depscope/depscope/services/graphview/graph"
)

const (
	// MinScale and MaxScale clamp the zoom level.
	MinScale = 0.1
	MaxScale = 3.0

	// clickThresholdPx separates a click from the start of a pan.
	clickThresholdPx = 4.0

	// cullBufferPx widens the viewport bounds before culling so nodes
	// just offscreen pop in without a visible gap while panning.
	cullBufferPx = 150.0
)

// Camera is the visible window into world space. X and Y are the world
// coordinates of the viewport's top-left corner.
type Camera struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// Viewport tracks the camera plus in-flight pointer state.
//
// # Thread Safety
//
// Safe for concurrent use; a websocket reader and a frame builder may
// touch it from different goroutines.
type Viewport struct {
	mu  sync.Mutex
	cam Camera

	pressed bool
	pressX  float64
	pressY  float64
	lastX   float64
	lastY   float64
	panning bool
}

// NewViewport creates a viewport of the given pixel size at scale 1,
// centered on the world origin.
func NewViewport(width, height float64) *Viewport {
	return &Viewport{cam: Camera{
		X:      -width / 2,
		Y:      -height / 2,
		Width:  width,
		Height: height,
		Scale:  1.0,
	}}
}

// Camera returns the current camera.
func (v *Viewport) Camera() Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cam
}

// Resize updates the viewport pixel dimensions.
func (v *Viewport) Resize(width, height float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cam.Width = width
	v.cam.Height = height
}

// Zoom scales around the pointer position so the world point under the
// cursor stays put. The factor multiplies the current scale and the
// result is clamped to [MinScale, MaxScale].
func (v *Viewport) Zoom(factor, px, py float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	oldScale := v.cam.Scale
	newScale := oldScale * factor
	if newScale < MinScale {
		newScale = MinScale
	}
	if newScale > MaxScale {
		newScale = MaxScale
	}
	if newScale == oldScale {
		return
	}

	// Keep the world point under the pointer fixed.
	wx := v.cam.X + px/oldScale
	wy := v.cam.Y + py/oldScale
	v.cam.X = wx - px/newScale
	v.cam.Y = wy - py/newScale
	v.cam.Scale = newScale
}

// PointerDown starts tracking a potential pan or click.
func (v *Viewport) PointerDown(px, py float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pressed = true
	v.panning = false
	v.pressX, v.pressY = px, py
	v.lastX, v.lastY = px, py
}

// PointerMove pans once the pointer travels past the click threshold.
// Pan deltas are inverse-scaled so the world tracks the cursor 1:1.
func (v *Viewport) PointerMove(px, py float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.pressed {
		return
	}

	if !v.panning {
		if math.Hypot(px-v.pressX, py-v.pressY) <= clickThresholdPx {
			return
		}
		v.panning = true
	}

	v.cam.X -= (px - v.lastX) / v.cam.Scale
	v.cam.Y -= (py - v.lastY) / v.cam.Scale
	v.lastX, v.lastY = px, py
}

// PointerUp ends the gesture. It reports true when the gesture never
// exceeded the click threshold, i.e. the release is a click.
func (v *Viewport) PointerUp() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.pressed {
		return false
	}
	v.pressed = false
	click := !v.panning
	v.panning = false
	return click
}

// ScreenToWorld converts a pixel coordinate to world space.
func (v *Viewport) ScreenToWorld(px, py float64) (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cam.X + px/v.cam.Scale, v.cam.Y + py/v.cam.Scale
}

// WorldToScreen converts a world coordinate to pixel space.
func (v *Viewport) WorldToScreen(wx, wy float64) (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return (wx - v.cam.X) * v.cam.Scale, (wy - v.cam.Y) * v.cam.Scale
}

// CullBounds returns the world-space rectangle to keep when culling:
// the visible area grown by the pixel buffer at the current scale.
func (v *Viewport) CullBounds() graph.CullBounds {
	v.mu.Lock()
	defer v.mu.Unlock()

	buffer := cullBufferPx / v.cam.Scale
	return graph.CullBounds{
		MinX: v.cam.X - buffer,
		MinY: v.cam.Y - buffer,
		MaxX: v.cam.X + v.cam.Width/v.cam.Scale + buffer,
		MaxY: v.cam.Y + v.cam.Height/v.cam.Scale + buffer,
	}
}
