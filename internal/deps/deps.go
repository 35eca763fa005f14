package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary vidqc relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Source      Source
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Source      Source
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
			Source:      req.Source,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			resolved, err := exec.LookPath(cmd)
			if err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
				break
			}
			status.Command = resolved
			status.Available = true
			if req.Source != "" {
				status.Detail = "source: " + string(req.Source)
			}
		}
		results = append(results, status)
	}
	return results
}
