// File: pkg/combine/types.go
package combine

import (
	"time"

	"amalgam/pkg/config"
)

// Arguments holds the options of one merge run.
type Arguments struct {
	SourceDir   string // Directory the top include and every local include are resolved against.
	TopInclude  string // Root header, relative to SourceDir.
	Target      string // Destination path of the merged header.
	Tree        string // Optional destination path of the include tree report.
	GuardPrefix string // Include guard prefix shared by all headers.
	Banner      string // License banner written above the top-level guard.
}

// ArgumentsFromConfig maps configuration onto run arguments.
func ArgumentsFromConfig(cfg *config.Config) Arguments {
	return Arguments{
		SourceDir:   cfg.SourceDir,
		TopInclude:  cfg.TopInclude,
		Target:      cfg.Target,
		Tree:        cfg.Tree,
		GuardPrefix: cfg.GuardPrefix,
		Banner:      cfg.Banner,
	}
}

// Report summarizes a successful run.
type Report struct {
	RunID          string        // Identifier attached to every log line of the run.
	Target         string        // Absolute path of the written artifact.
	Tree           string        // Absolute path of the tree report, if written.
	Files          []string      // Merged headers in first-discovery order.
	SystemIncludes []string      // Hoisted system includes, sorted.
	Bytes          int           // Size of the artifact.
	Digest         uint64        // HighwayHash-64 of the artifact.
	Elapsed        time.Duration // Wall time of the run.
}
