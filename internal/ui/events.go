package ui

import (
	"time"

	"mcsweep/internal/model"
)

// EventType classifies pipeline events for the UI.
type EventType int

const (
	EvtReachable EventType = iota
	EvtServer
	EvtState
	EvtInfo
	EvtDone
)

// ScanEvent is a single event emitted by the pipeline to the UI.
type ScanEvent struct {
	Type     EventType
	Address  string
	Port     uint16
	Progress string              // EvtReachable: "<tested>/<target>" or "continuous"
	Server   *model.StatusRecord // EvtServer
	State    string              // EvtState
	Msg      string              // EvtInfo
}

// ScanStats contains periodic stats for the UI.
type ScanStats struct {
	Generated      uint64
	Tested         uint64
	Duplicates     uint64
	Reachable      uint64
	Servers        uint64
	Failures       uint64
	DiscoveryQueue int
	AnalysisQueue  int
	Elapsed        time.Duration
	Progress       float64 // 0.0 - 1.0, negative in continuous mode
	Rate           float64 // candidates per second
	State          string
}

// Mode selects the UI output mode.
type Mode int

const (
	ModeTUI    Mode = iota // full bubbletea interactive
	ModeText               // simple \r status + \n results
	ModeSilent             // no terminal output
)
