package security

// Engine applies a system's rules to a session State.
type Engine struct {
	rules   Rules
	enabled bool
	doors   []Door
}

// NewEngine builds an engine for a resolved system. Nil rules disable
// threshold reactions while trace keeps accumulating with default costs.
func NewEngine(rules *Rules, doors []Door) *Engine {
	e := &Engine{doors: doors}
	if rules == nil {
		e.rules = Rules{MaxTrace: DefaultMaxTrace}
		return e
	}
	e.rules, _ = rules.Normalize()
	e.enabled = true
	return e
}

// Rules returns the normalized rules in effect.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Enabled reports whether threshold reactions are active.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Update describes one trace mutation.
type Update struct {
	Action      Action       `json:"action,omitempty"`
	Delta       int          `json:"delta"`
	Trace       int          `json:"trace"`
	MaxTrace    int          `json:"maxTrace"`
	Band        Band         `json:"band"`
	Fired       Effect       `json:"fired,omitempty"`
	FiredBand   Band         `json:"firedBand,omitempty"`
	DoorChanges []DoorChange `json:"doorChanges,omitempty"`
}

// Record adds the cost of action to the state's trace and evaluates bands.
func (e *Engine) Record(s *State, action Action) Update {
	before := s.Trace
	s.Trace += e.rules.ActionTraceCosts.Cost(action)
	if s.Trace > e.rules.MaxTrace {
		s.Trace = e.rules.MaxTrace
	}
	update := e.Evaluate(s)
	update.Action = action
	update.Delta = s.Trace - before
	return update
}

// Evaluate checks the current trace against the thresholds. Entering a band
// above the highest one already reached fires that band's effect once; when
// both bands are crossed together only panic fires.
func (e *Engine) Evaluate(s *State) Update {
	band := e.rules.BandFor(s.Trace)
	update := Update{Trace: s.Trace, MaxTrace: e.rules.MaxTrace, Band: band}
	if !e.enabled || band <= s.HighestBand {
		return update
	}
	s.HighestBand = band
	update.FiredBand = band
	update.Fired = e.rules.EffectFor(band)
	if update.Fired == EffectTightenDoors {
		update.DoorChanges = Tighten(e.doors, s)
	}
	return update
}

// Reset clears trace and the band memory.
func (e *Engine) Reset(s *State) {
	s.Trace = 0
	s.HighestBand = BandCalm
}
