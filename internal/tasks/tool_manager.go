package tasks

import (
	"fmt"
	"os/exec"
	"strings"

	"planetalign/internal/config"
)

// ToolManager handles external tool selection and fallbacks.
type ToolManager struct {
	cfg *config.Config
}

// NewToolManager creates a tool manager with configuration.
func NewToolManager(cfg *config.Config) *ToolManager {
	return &ToolManager{cfg: cfg}
}

// ToolStatus represents the availability of a tool.
type ToolStatus struct {
	Available bool
	Version   string
	Path      string
	Error     error
}

// CheckTool verifies if a tool is available and working.
func (tm *ToolManager) CheckTool(toolName string) ToolStatus {
	// The native implementations ship with the binary.
	if toolName == "native" {
		return ToolStatus{Available: true, Version: "builtin"}
	}

	// Map logical tool names to actual binary names.
	binaryName := toolName
	if toolName == "imagemagick" {
		binaryName = "convert"
	}

	path, err := exec.LookPath(binaryName)
	if err != nil {
		return ToolStatus{Available: false, Error: err}
	}

	cmd := exec.Command(binaryName, "-version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			return ToolStatus{Available: true, Version: extractVersion(string(output)), Path: path}
		}
		return ToolStatus{Available: false, Path: path, Error: err}
	}
	return ToolStatus{Available: true, Version: extractVersion(string(output)), Path: path}
}

// Thresholder returns the first available thresholder, preferred first.
func (tm *ToolManager) Thresholder() (Thresholder, error) {
	for _, name := range toolOrder(tm.cfg.Tools.Threshold) {
		var t Thresholder
		switch name {
		case "imagemagick":
			t = &MagickThresholder{}
		case "native":
			t = &NativeThresholder{}
		default:
			continue
		}
		if t.IsAvailable() {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no available threshold tool found")
}

// Cropper returns the first available cropper, preferred first.
func (tm *ToolManager) Cropper() (Cropper, error) {
	for _, name := range toolOrder(tm.cfg.Tools.Crop) {
		var c Cropper
		switch name {
		case "imagemagick":
			c = &MagickCropper{}
		case "native":
			c = &NativeCropper{}
		default:
			continue
		}
		if c.IsAvailable() {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no available crop tool found")
}

// GetToolStatus returns the status of all configured tools.
func (tm *ToolManager) GetToolStatus() map[string]map[string]ToolStatus {
	status := make(map[string]map[string]ToolStatus)

	status["threshold"] = make(map[string]ToolStatus)
	for _, tool := range toolOrder(tm.cfg.Tools.Threshold) {
		status["threshold"][tool] = tm.CheckTool(tool)
	}

	status["crop"] = make(map[string]ToolStatus)
	for _, tool := range toolOrder(tm.cfg.Tools.Crop) {
		status["crop"][tool] = tm.CheckTool(tool)
	}

	return status
}

func toolOrder(choice config.ToolChoice) []string {
	tools := []string{choice.Preferred}
	return append(tools, choice.Fallbacks...)
}

// extractVersion extracts version information from tool output.
func extractVersion(output string) string {
	lines := strings.Split(output, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "version") || strings.Contains(line, "Version") {
			return line
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0])
	}
	return "unknown"
}
