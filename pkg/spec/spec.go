package spec

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PlanFileName is the file LoadProject looks for in a project directory.
const PlanFileName = "plan.yaml"

// Load reads a plan from a YAML file.
func Load(path string) (*PlanSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes plan YAML.
func Parse(data []byte) (*PlanSpec, error) {
	var plan PlanSpec
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing plan YAML: %w", err)
	}
	return &plan, nil
}

// LoadProject loads a plan from a project directory.
// It looks for plan.yaml in the given directory. A path to a file is loaded directly.
func LoadProject(projectPath string) (*PlanSpec, error) {
	info, err := os.Stat(projectPath)
	if err == nil && !info.IsDir() {
		return Load(projectPath)
	}
	return Load(filepath.Join(projectPath, PlanFileName))
}
