// Package server implements the MCP (Model Context Protocol) server for
// image-target tracking.
//
// This package provides a JSON-RPC 2.0 server that exposes target compilation,
// feature detection, matching and frame-to-frame tracking through the MCP
// protocol. Clients hand it image files: reference images to compile into
// targets and camera frames to find and follow them in.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Target Registry:
//   - target_compile: Compile and register a reference image, optionally saving it
//   - target_load: Register a previously saved target
//   - target_list: List targets and their tracking status
//
// Features:
//   - features_detect: Detect feature points in an image
//   - features_overlay: Render feature points or target inliers as PNG
//
// Pipeline:
//   - target_match: Find targets in a frame; the best one starts tracking
//   - target_track: Follow a target into the next frame
//   - target_reset: Forget tracking state
//
// # Tracking State
//
// The server keeps one controller.TargetState per target across calls. A
// successful target_match acquires the best target; target_track then refines
// its pose frame by frame until it reports lost, after which the client
// matches again.
//
// # Image Caching
//
// Reference images are cached by path. Camera frames passed to matching,
// tracking and detection are evicted after each call.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A target that is not found or is lost is not an error; it is reported in
// the tool result.
//
// # Usage
//
//	ctrl := controller.New(cfg, log)
//	srv := server.New(ctrl, log)
//	if err := srv.Run(); err != nil {
//	    log.Fatal().Err(err).Msg("server error")
//	}
package server
