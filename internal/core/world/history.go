package world

// History stores one state per tick for a contiguous range of ticks. The
// latest tick is always the current one.
type History struct {
	base        uint32
	states      []*State
	maxRetained int
}

// NewHistory starts at tick 0 with initial. maxRetained bounds the number
// of stored ticks; zero keeps everything.
func NewHistory(initial *State, maxRetained int) *History {
	return &History{states: []*State{initial}, maxRetained: maxRetained}
}

func (h *History) Get(tick uint32) (*State, bool) {
	if tick < h.base || tick > h.Latest() {
		return nil, false
	}
	return h.states[tick-h.base], true
}

func (h *History) Oldest() uint32 { return h.base }

func (h *History) Latest() uint32 { return h.base + uint32(len(h.states)) - 1 }

func (h *History) Len() int { return len(h.states) }

func (h *History) Current() *State { return h.states[len(h.states)-1] }

// Push stores s as the tick after Latest and returns that tick. The oldest
// ticks are dropped once more than maxRetained are stored.
func (h *History) Push(s *State) uint32 {
	h.states = append(h.states, s)
	if h.maxRetained > 0 {
		if excess := len(h.states) - h.maxRetained; excess > 0 {
			clear(h.states[:excess])
			h.states = h.states[excess:]
			h.base += uint32(excess)
		}
	}
	return h.Latest()
}

// TruncateAfter drops every tick after tick. It returns false and keeps
// everything when tick is not stored.
func (h *History) TruncateAfter(tick uint32) bool {
	if _, ok := h.Get(tick); !ok {
		return false
	}
	keep := int(tick-h.base) + 1
	clear(h.states[keep:])
	h.states = h.states[:keep]
	return true
}
