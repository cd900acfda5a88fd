package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func pathProp() map[string]interface{} {
	return stringProp("Absolute path to the image file")
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Target Registry
		{
			Name:        "target_compile",
			Description: "Compile an image into a trackable target: matching keyframes at several scales and tracking templates. The target is registered under the given ID and can optionally be saved for target_load.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProp(),
					"id":     stringProp("Target ID; defaults to the file name"),
					"output": stringProp("Optional path to write the compiled target to"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "target_load",
			Description: "Register a target previously written by target_compile. The target data is validated before use.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the compiled target file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "target_list",
			Description: "List registered targets with their keyframe scales, feature counts, tracking widths and whether each is currently being tracked.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Features
		{
			Name:        "features_detect",
			Description: "Detect scale-space feature points in an image. Returns the point count per octave and the strongest points with position, scale, orientation and polarity.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProp(),
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of points to return. Default 50",
						"default":     50,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "features_overlay",
			Description: "Draw detected feature points on an image, coloured by octave, and return it as base64-encoded PNG. When a target is given and found, its outline is drawn too.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProp(),
					"target": stringProp("Optional target ID whose matched outline is drawn"),
				},
				"required": []string{"path"},
			},
		},

		// Pipeline
		{
			Name:        "target_match",
			Description: "Find registered targets in a camera frame. Returns, per target, the matching keyframe, inlier count, pose and projected outline. The best target starts being tracked.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProp(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "target_track",
			Description: "Follow a target into the next camera frame from its last pose. Returns the refined pose and tracked points, or lost with a reason. A lost target needs target_match again.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProp(),
					"id":   stringProp("Target ID"),
				},
				"required": []string{"path", "id"},
			},
		},
		{
			Name:        "target_reset",
			Description: "Forget the tracking state of one target, or of all targets when no ID is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": stringProp("Target ID; omit to reset every target"),
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
