// Package cadsim is a stand-in CAD client. It speaks the CAD side of the
// push protocol: identify, register a schema, apply pushed values and
// answer each update with freshly "solved" geometry.
package cadsim

import (
	"time"

	"github.com/okian/cadhub/internal/domain/model"
)

// Config holds configuration for a simulator run.
type Config struct {
	URL        string        // push channel URL, e.g. ws://localhost:5001/ws
	Schema     model.Schema  // parameters to register
	Material   string        // material tag attached to the mesh
	Timeout    time.Duration // dial timeout
	SolveDelay time.Duration // pause before answering an update
}

// DefaultSchema is a box with bounded dimensions.
func DefaultSchema() model.Schema {
	return model.Schema{
		{Name: "width", Value: 4, Min: 1, Max: 20, Label: "Width"},
		{Name: "depth", Value: 3, Min: 1, Max: 20, Label: "Depth"},
		{Name: "height", Value: 2, Min: 0.5, Max: 10, Label: "Height"},
	}
}

// Stats counts traffic seen by a simulator.
type Stats struct {
	UpdatesApplied int
	GeometrySent   int
	Acks           int
}
