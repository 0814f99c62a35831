package feed

import (
	"github.com/scipunch/echofeed/source"
)

// State is the controller's coarse lifecycle state
type State int

const (
	Idle State = iota
	Debouncing
	Loading
	LoadingMore
	Error
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Loading:
		return "loading"
	case LoadingMore:
		return "loading_more"
	case Error:
		return "error"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Busy reports whether a mutating fetch is outstanding in this state
func (s State) Busy() bool {
	return s == Loading || s == LoadingMore
}

// Snapshot is a read-only copy of the controller state
type Snapshot struct {
	State        State
	ErrorMessage string // empty when there is no error
	Err          error  // underlying failure behind ErrorMessage
	Items        []source.Article
	HasMore      bool

	// Filter is the value the current Items were fetched with
	Filter float64
	// Requested is the latest filter asked for, possibly still debouncing or loading
	Requested  float64
	Generation uint64
	NextPage   int
}
