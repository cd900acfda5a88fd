package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/ironsheep/target-tracker-mcp/internal/controller"
	"github.com/ironsheep/target-tracker-mcp/internal/imaging"
	"github.com/ironsheep/target-tracker-mcp/internal/match"
	"github.com/ironsheep/target-tracker-mcp/internal/pose"
	"github.com/ironsheep/target-tracker-mcp/internal/target"
	"github.com/ironsheep/target-tracker-mcp/internal/track"
)

var errMissingPath = errors.New("path is required")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "target_match", "target_track").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Str("tool", params.Name).Err(err).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Target Registry
	case "target_compile":
		return s.handleTargetCompile(args)
	case "target_load":
		return s.handleTargetLoad(args)
	case "target_list":
		return s.handleTargetList(args)

	// Features
	case "features_detect":
		return s.handleFeaturesDetect(args)
	case "features_overlay":
		return s.handleFeaturesOverlay(args)

	// Pipeline
	case "target_match":
		return s.handleTargetMatch(args)
	case "target_track":
		return s.handleTargetTrack(args)
	case "target_reset":
		return s.handleTargetReset(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// loadFrame reads a camera frame. Frames are evicted after the call since
// every frame is normally new.
func (s *Server) loadFrame(path string) (*imaging.Frame, error) {
	if path == "" {
		return nil, errMissingPath
	}
	defer s.cache.Evict(path)
	return s.cache.LoadFrame(path)
}

// === Shared result views ===

// poseView is a pose in the forms a renderer needs.
type poseView struct {
	// ModelView and Projection are OpenGL column-major matrices.
	ModelView  [16]float64 `json:"model_view"`
	Projection [16]float64 `json:"projection"`

	// Transform is the row-major 3x4 [R | t] in camera convention.
	Transform pose.ModelViewTransform `json:"transform"`

	// Corners is the target outline projected into the frame.
	Corners []imaging.OverlayPoint `json:"corners"`
}

func (s *Server) viewPose(m pose.ModelViewTransform, tgt *target.Target, f *imaging.Frame) *poseView {
	k := s.ctrl.Intrinsics(f.Width, f.Height)
	cam := s.ctrl.Config().Camera
	return &poseView{
		ModelView:  columnMajor(m.GL()),
		Projection: columnMajor(k.Projection(f.Width, f.Height, cam.Near, cam.Far)),
		Transform:  m,
		Corners:    outline(k, m, tgt),
	}
}

// columnMajor transposes a row-major 4x4 matrix into the layout glUniformMatrix4fv
// expects.
func columnMajor(m [16]float64) [16]float64 {
	var out [16]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = m[r*4+c]
		}
	}
	return out
}

// outline projects the target's corners, skipping any behind the camera.
func outline(k pose.Intrinsics, m pose.ModelViewTransform, tgt *target.Target) []imaging.OverlayPoint {
	w, h := float64(tgt.Width), float64(tgt.Height)
	var pts []imaging.OverlayPoint
	for _, c := range []r2.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}} {
		if p, ok := k.Project(m.Apply(c)); ok {
			pts = append(pts, imaging.OverlayPoint{X: p.X, Y: p.Y})
		}
	}
	return pts
}

// === Target Registry Handlers ===

type targetCompileArgs struct {
	Path   string `json:"path"`
	ID     string `json:"id"`
	Output string `json:"output"`
}

func (s *Server) handleTargetCompile(args json.RawMessage) (interface{}, error) {
	var a targetCompileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errMissingPath
	}
	if a.ID == "" {
		a.ID = strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path))
	}

	img, err := s.cache.LoadImage(a.Path)
	if err != nil {
		return nil, err
	}
	tgt, err := s.ctrl.Compile(a.ID, img)
	if err != nil {
		return nil, err
	}
	s.resetState(a.ID)

	if a.Output != "" {
		if err := writeTarget(a.Output, tgt); err != nil {
			return nil, err
		}
	}
	return tgt.Info(), nil
}

func writeTarget(path string, tgt *target.Target) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create target file: %w", err)
	}
	if err := target.Encode(f, tgt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type targetLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleTargetLoad(args json.RawMessage) (interface{}, error) {
	var a targetLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errMissingPath
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open target: %w", err)
	}
	defer f.Close()

	tgt, err := target.Decode(f)
	if err != nil {
		return nil, err
	}
	if err := s.ctrl.Register(tgt); err != nil {
		return nil, err
	}
	s.resetState(tgt.ID)
	return tgt.Info(), nil
}

type targetListEntry struct {
	target.Info
	Tracking bool `json:"tracking"`
}

func (s *Server) handleTargetList(json.RawMessage) (interface{}, error) {
	infos := s.ctrl.Targets()
	out := make([]targetListEntry, len(infos))
	for i, info := range infos {
		out[i] = targetListEntry{Info: info, Tracking: s.state(info.ID).Tracking()}
	}
	return map[string]interface{}{
		"count":   len(out),
		"targets": out,
	}, nil
}

// === Feature Handlers ===

type featuresDetectArgs struct {
	Path  string `json:"path"`
	Limit int    `json:"limit"`
}

type featureView struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Scale  float64 `json:"scale"`
	Angle  float64 `json:"angle"`
	Maxima bool    `json:"maxima"`
	Octave int     `json:"octave"`
}

func (s *Server) handleFeaturesDetect(args json.RawMessage) (interface{}, error) {
	var a featuresDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Limit <= 0 {
		a.Limit = 50
	}
	f, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}
	points, err := s.ctrl.Detect(f)
	if err != nil {
		return nil, err
	}

	perOctave := map[int]int{}
	for _, p := range points {
		perOctave[p.Octave]++
	}
	sorted := append(points[:0:0], points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Response > sorted[j].Response
	})
	if len(sorted) > a.Limit {
		sorted = sorted[:a.Limit]
	}
	views := make([]featureView, len(sorted))
	for i, p := range sorted {
		views[i] = featureView{X: p.X, Y: p.Y, Scale: p.Scale, Angle: p.Angle, Maxima: p.Maxima, Octave: p.Octave}
	}

	return map[string]interface{}{
		"width":      f.Width,
		"height":     f.Height,
		"descriptor": s.ctrl.Config().Detector.Kind.String(),
		"count":      len(points),
		"per_octave": perOctave,
		"points":     views,
	}, nil
}

type featuresOverlayArgs struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

func (s *Server) handleFeaturesOverlay(args json.RawMessage) (interface{}, error) {
	var a featuresOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	var (
		markers []imaging.Marker
		quad    []imaging.OverlayPoint
		label   string
	)
	if a.Target == "" {
		points, err := s.ctrl.Detect(f)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			markers = append(markers, imaging.Marker{X: p.X, Y: p.Y, Radius: 3 * p.Scale, Angle: p.Angle, Level: p.Octave})
		}
	} else {
		tgt, err := s.ctrl.Target(a.Target)
		if err != nil {
			return nil, err
		}
		res, err := s.ctrl.Match(f)
		if err != nil {
			return nil, err
		}
		for _, d := range res.Detections {
			if d.Target != a.Target {
				continue
			}
			for _, c := range d.Match.Inliers {
				markers = append(markers, imaging.Marker{X: c.Query.X, Y: c.Query.Y, Radius: 4})
			}
			if d.Found() {
				quad = outline(s.ctrl.Intrinsics(f.Width, f.Height), *d.Pose, tgt)
			}
			label = fmt.Sprintf("%s: %d inliers", a.Target, d.Inliers)
		}
	}
	return imaging.DrawOverlay(f, markers, quad, label)
}

// === Pipeline Handlers ===

type targetMatchArgs struct {
	Path string `json:"path"`
}

type detectionView struct {
	Target       string                `json:"target"`
	Found        bool                  `json:"found"`
	Keyframe     int                   `json:"keyframe"`
	Inliers      int                   `json:"inliers"`
	Reprojection float64               `json:"reprojection_error,omitempty"`
	Pose         *poseView             `json:"pose,omitempty"`
	Debug        []match.KeyframeDebug `json:"debug,omitempty"`
}

func (s *Server) handleTargetMatch(args json.RawMessage) (interface{}, error) {
	var a targetMatchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.ctrl.Match(f)
	if err != nil {
		return nil, err
	}

	views := make([]detectionView, len(res.Detections))
	for i, d := range res.Detections {
		v := detectionView{
			Target:       d.Target,
			Found:        d.Found(),
			Keyframe:     d.Keyframe,
			Inliers:      d.Inliers,
			Reprojection: d.Reprojection,
			Debug:        d.Match.Debug,
		}
		if d.Found() {
			if tgt, err := s.ctrl.Target(d.Target); err == nil {
				v.Pose = s.viewPose(*d.Pose, tgt, f)
			}
		}
		views[i] = v
	}

	best := ""
	if w := res.Winner(); w != nil {
		best = w.Target
		s.state(w.Target).Acquire(*w.Pose)
	}
	return map[string]interface{}{
		"points":     res.Points,
		"best":       best,
		"detections": views,
	}, nil
}

type targetTrackArgs struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

type trackView struct {
	Target       string        `json:"target"`
	Lost         bool          `json:"lost"`
	Reason       string        `json:"reason,omitempty"`
	Octave       int           `json:"octave"`
	Tracked      int           `json:"tracked"`
	Reprojection float64       `json:"reprojection_error,omitempty"`
	Pose         *poseView     `json:"pose,omitempty"`
	Points       []track.Point `json:"points,omitempty"`
	Mesh         []r2.Point    `json:"mesh,omitempty"`
}

func (s *Server) handleTargetTrack(args json.RawMessage) (interface{}, error) {
	var a targetTrackArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, errors.New("id is required")
	}
	tgt, err := s.ctrl.Target(a.ID)
	if err != nil {
		return nil, err
	}
	f, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := s.ctrl.Track(f, a.ID, s.state(a.ID))
	if err != nil {
		return nil, err
	}
	v := trackView{
		Target:  a.ID,
		Lost:    res.Lost(),
		Reason:  res.Track.Reason,
		Octave:  res.Track.Octave,
		Tracked: len(res.Track.Points),
		Points:  res.Track.Points,
		Mesh:    res.Track.Mesh,
	}
	if !res.Lost() {
		v.Reprojection = res.Reprojection
		v.Pose = s.viewPose(*res.Pose, tgt, f)
	}
	return v, nil
}

type targetResetArgs struct {
	ID string `json:"id"`
}

func (s *Server) handleTargetReset(args json.RawMessage) (interface{}, error) {
	var a targetResetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ID != "" {
		if _, err := s.ctrl.Target(a.ID); err != nil {
			return nil, err
		}
		s.resetState(a.ID)
		return map[string]interface{}{"reset": []string{a.ID}}, nil
	}

	ids := make([]string, 0)
	for _, info := range s.ctrl.Targets() {
		s.resetState(info.ID)
		ids = append(ids, info.ID)
	}
	return map[string]interface{}{"reset": ids}, nil
}

func (s *Server) resetState(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = controller.NewTargetState()
}
