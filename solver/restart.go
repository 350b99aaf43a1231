package solver

// movingAverage tracks both a fixed-size windowed average and a lifetime
// average of a series.
type movingAverage struct {
	window      []float64
	next        int
	full        bool
	windowSum   float64
	globalSum   float64
	globalCount int64
}

func newMovingAverage(size int) *movingAverage {
	return &movingAverage{window: make([]float64, size)}
}

func (m *movingAverage) Add(x float64) {
	m.globalSum += x
	m.globalCount++
	m.windowSum += x - m.window[m.next]
	m.window[m.next] = x
	m.next++
	if m.next == len(m.window) {
		m.next = 0
		m.full = true
	}
}

func (m *movingAverage) WindowFull() bool {
	return m.full
}

func (m *movingAverage) WindowAverage() float64 {
	if !m.full {
		return 0
	}
	return m.windowSum / float64(len(m.window))
}

func (m *movingAverage) GlobalAverage() float64 {
	if m.globalCount == 0 {
		return 0
	}
	return m.globalSum / float64(m.globalCount)
}

// ClearWindow forgets the recent window but keeps the lifetime average.
func (m *movingAverage) ClearWindow() {
	for i := range m.window {
		m.window[i] = 0
	}
	m.next = 0
	m.full = false
	m.windowSum = 0
}

// luby returns the ith term (1-based) of the Luby sequence
// 1 1 2 1 1 2 4 1 1 2 1 1 2 4 8 ...
func luby(i int64) int64 {
	for k := int64(1); ; k++ {
		p := int64(1)<<uint(k) - 1
		if i == p {
			return int64(1) << uint(k-1)
		}
		if i < p {
			i -= int64(1)<<uint(k-1) - 1
			k = 0
		}
	}
}

// RestartPolicy decides when the search should restart. Several strategies
// can be configured; the active one changes after each restart, cycling
// through the list. The decision is (re)computed once per conflict, from
// OnConflict, and latched until Reset.
type RestartPolicy struct {
	params *Parameters

	strategyIndex         int
	lubyCount             int64
	conflictsSinceRestart int64

	lbdAverage   *movingAverage
	levelAverage *movingAverage
	trailAverage *movingAverage

	shouldRestart bool

	// Stats.
	NumRestarts int64
	NumBlocked  int64
}

// NewRestartPolicy returns a policy configured by params.
func NewRestartPolicy(params *Parameters) *RestartPolicy {
	r := &RestartPolicy{params: params}
	r.lbdAverage = newMovingAverage(params.RestartWindowSize)
	r.levelAverage = newMovingAverage(params.RestartWindowSize)
	r.trailAverage = newMovingAverage(params.RestartWindowSize)
	return r
}

// OnConflict accounts for one conflict: the trail size and decision level at
// conflict time and the LBD of the learned clause. It recomputes the restart
// decision.
func (r *RestartPolicy) OnConflict(trailSize int, level int32, lbd int32) {
	r.conflictsSinceRestart++
	r.trailAverage.Add(float64(trailSize))

	// A much larger trail than usual hints at an almost-full assignment;
	// hold back the dynamic strategies so it is not thrown away.
	if r.params.BlockingRestart &&
		r.trailAverage.WindowFull() &&
		float64(trailSize) > r.params.BlockingRestartK*r.trailAverage.WindowAverage() {
		r.lbdAverage.ClearWindow()
		r.levelAverage.ClearWindow()
		r.NumBlocked++
	}
	r.lbdAverage.Add(float64(lbd))
	r.levelAverage.Add(float64(level))

	if r.shouldRestart {
		return
	}
	switch r.activeStrategy() {
	case LubyRestart:
		if r.conflictsSinceRestart >= luby(r.lubyCount+1)*int64(r.params.LubyUnit) {
			r.shouldRestart = true
		}
	case LBDMovingAverageRestart:
		// Recent conflicts are markedly worse than the lifetime norm.
		if r.lbdAverage.WindowFull() &&
			r.lbdAverage.WindowAverage() > r.params.RestartMarginRatio*r.lbdAverage.GlobalAverage() {
			r.shouldRestart = true
		}
	case DecisionLevelMovingAverageRestart:
		if r.levelAverage.WindowFull() &&
			r.levelAverage.WindowAverage() > r.params.RestartMarginRatio*r.levelAverage.GlobalAverage() {
			r.shouldRestart = true
		}
	}
}

// ShouldRestart reports the latched decision of the last OnConflict.
func (r *RestartPolicy) ShouldRestart() bool {
	return r.shouldRestart
}

// Reset acknowledges a restart: counters restart from zero and the next
// configured strategy becomes active.
func (r *RestartPolicy) Reset() {
	r.NumRestarts++
	if r.activeStrategy() == LubyRestart {
		r.lubyCount++
	}
	r.conflictsSinceRestart = 0
	r.lbdAverage.ClearWindow()
	r.levelAverage.ClearWindow()
	r.shouldRestart = false
	if n := len(r.params.RestartStrategies); n > 0 {
		r.strategyIndex = (r.strategyIndex + 1) % n
	}
}

func (r *RestartPolicy) activeStrategy() RestartStrategy {
	if len(r.params.RestartStrategies) == 0 {
		return LubyRestart
	}
	return r.params.RestartStrategies[r.strategyIndex]
}
