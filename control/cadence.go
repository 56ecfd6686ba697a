package control

// Cadence decides which frame families are due on a tick.
type Cadence struct {
	Steer  int
	Long   int
	Resume int // 0 disables
}

func due(tick uint64, divisor int) bool {
	return divisor > 0 && tick%uint64(divisor) == 0
}

func (c Cadence) SteerDue(tick uint64) bool  { return due(tick, c.Steer) }
func (c Cadence) LongDue(tick uint64) bool   { return due(tick, c.Long) }
func (c Cadence) ResumeDue(tick uint64) bool { return due(tick, c.Resume) }

// rollingCounter is a per-family sequence counter that only advances when
// the family is sent.
type rollingCounter struct {
	value  int
	modulo int
}

func (r *rollingCounter) advance() {
	r.value = (r.value + 1) % r.modulo
}
