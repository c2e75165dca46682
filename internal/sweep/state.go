package sweep

// State is a stage of a run. States only move forward.
type State int32

const (
	Filling State = iota
	DrainingDiscovery
	AnalyzingFrontier
	DrainingAnalysis
	Terminated
)

func (s State) String() string {
	switch s {
	case Filling:
		return "filling"
	case DrainingDiscovery:
		return "draining discovery"
	case AnalyzingFrontier:
		return "analyzing frontier"
	case DrainingAnalysis:
		return "draining analysis"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}
