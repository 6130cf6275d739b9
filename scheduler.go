package delve

import "sort"

// Phase is a scheduling bucket. The three phases execute in a fixed order
// every tick.
type Phase uint8

const (
	PreUpdate Phase = iota
	Update
	PostUpdate
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PreUpdate:
		return "PreUpdate"
	case Update:
		return "Update"
	case PostUpdate:
		return "PostUpdate"
	}
	return "Unknown"
}

// SystemFunc is a system's callback against the world.
type SystemFunc func(w *World)

// Condition gates a system's execution for one tick.
type Condition func(w *World) bool

type systemDef struct {
	name       string
	phase      Phase
	fn         SystemFunc
	before     []string
	after      []string
	sets       []string
	conditions []Condition
	inherited  []Condition
	enabled    bool
	once       bool
	order      int
}

type setDef struct {
	name       string
	conditions []Condition
	beforeSets []string
	afterSets  []string
}

// Scheduler owns the system graph: named systems partitioned into phases,
// ordered by before/after edges and set-level ordering, gated by composable
// run conditions. The graph compiles on first run and recompiles after any
// registration.
type Scheduler struct {
	systems  []*systemDef
	byName   map[string]*systemDef
	sets     map[string]*setDef
	compiled [][]*systemDef
	dirty    bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		byName: make(map[string]*systemDef),
		sets:   make(map[string]*setDef),
		dirty:  true,
	}
}

// SystemConfig configures one registered system.
type SystemConfig struct {
	sched *Scheduler
	def   *systemDef
}

// AddSystem registers a named callback into a phase. Registration order
// breaks ordering ties.
func (s *Scheduler) AddSystem(name string, phase Phase, fn SystemFunc) *SystemConfig {
	def := &systemDef{
		name:    name,
		phase:   phase,
		fn:      fn,
		enabled: true,
		order:   len(s.systems),
	}
	s.systems = append(s.systems, def)
	s.byName[name] = def
	s.dirty = true
	return &SystemConfig{sched: s, def: def}
}

// Before orders this system ahead of the named systems.
func (c *SystemConfig) Before(names ...string) *SystemConfig {
	c.def.before = append(c.def.before, names...)
	c.sched.dirty = true
	return c
}

// After orders this system behind the named systems.
func (c *SystemConfig) After(names ...string) *SystemConfig {
	c.def.after = append(c.def.after, names...)
	c.sched.dirty = true
	return c
}

// InSet adds the system to a named set, inheriting the set's conditions and
// ordering.
func (c *SystemConfig) InSet(names ...string) *SystemConfig {
	c.def.sets = append(c.def.sets, names...)
	c.sched.dirty = true
	return c
}

// RunIf gates the system on the given conditions.
func (c *SystemConfig) RunIf(conds ...Condition) *SystemConfig {
	c.def.conditions = append(c.def.conditions, conds...)
	return c
}

// Once disables the system after its first successful invocation.
func (c *SystemConfig) Once() *SystemConfig {
	c.def.once = true
	return c
}

// SetConfig configures a named system set.
type SetConfig struct {
	sched *Scheduler
	def   *setDef
}

// ConfigureSet creates or fetches a named set.
func (s *Scheduler) ConfigureSet(name string) *SetConfig {
	def, ok := s.sets[name]
	if !ok {
		def = &setDef{name: name}
		s.sets[name] = def
	}
	s.dirty = true
	return &SetConfig{sched: s, def: def}
}

// RunIf attaches conditions inherited by every member system, evaluated
// before the members' own conditions.
func (c *SetConfig) RunIf(conds ...Condition) *SetConfig {
	c.def.conditions = append(c.def.conditions, conds...)
	return c
}

// Before orders every member of this set ahead of every member of the named
// sets.
func (c *SetConfig) Before(names ...string) *SetConfig {
	c.def.beforeSets = append(c.def.beforeSets, names...)
	c.sched.dirty = true
	return c
}

// After orders every member of this set behind every member of the named sets.
func (c *SetConfig) After(names ...string) *SetConfig {
	c.def.afterSets = append(c.def.afterSets, names...)
	c.sched.dirty = true
	return c
}

// SetEnabled toggles a system by name.
func (s *Scheduler) SetEnabled(name string, enabled bool) bool {
	def, ok := s.byName[name]
	if !ok {
		return false
	}
	def.enabled = enabled
	return true
}

// Compile validates references, applies set inheritance and ordering, and
// topologically sorts each phase. Unknown before/after targets are reported
// in aggregate; a cycle error names every system that could not be ordered,
// which includes systems ordered after the cycle.
func (s *Scheduler) Compile() error {
	var unknown []string
	for _, def := range s.systems {
		for _, name := range def.before {
			if _, ok := s.byName[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		for _, name := range def.after {
			if _, ok := s.byName[name]; !ok {
				unknown = append(unknown, name)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return UnknownSystemsError{Names: dedupStrings(unknown)}
	}

	members := make(map[string][]*systemDef)
	for _, def := range s.systems {
		def.inherited = def.inherited[:0]
		for _, set := range def.sets {
			members[set] = append(members[set], def)
			if sd, ok := s.sets[set]; ok {
				def.inherited = append(def.inherited, sd.conditions...)
			}
		}
	}

	// edges[a] holds systems that must run after a.
	edges := make(map[*systemDef][]*systemDef)
	addEdge := func(before, after *systemDef) {
		if before.phase == after.phase {
			edges[before] = append(edges[before], after)
		}
	}
	for _, def := range s.systems {
		for _, name := range def.before {
			addEdge(def, s.byName[name])
		}
		for _, name := range def.after {
			addEdge(s.byName[name], def)
		}
	}
	for _, sd := range s.sets {
		for _, other := range sd.beforeSets {
			for _, a := range members[sd.name] {
				for _, b := range members[other] {
					addEdge(a, b)
				}
			}
		}
		for _, other := range sd.afterSets {
			for _, a := range members[sd.name] {
				for _, b := range members[other] {
					addEdge(b, a)
				}
			}
		}
	}

	compiled := make([][]*systemDef, phaseCount)
	for phase := Phase(0); phase < phaseCount; phase++ {
		var defs []*systemDef
		for _, def := range s.systems {
			if def.phase == phase {
				defs = append(defs, def)
			}
		}
		sorted, err := topoSort(phase, defs, edges)
		if err != nil {
			return err
		}
		compiled[phase] = sorted
	}
	s.compiled = compiled
	s.dirty = false
	return nil
}

// topoSort runs a stable Kahn sort: among ready systems, the earliest
// registered runs first.
func topoSort(phase Phase, defs []*systemDef, edges map[*systemDef][]*systemDef) ([]*systemDef, error) {
	indegree := make(map[*systemDef]int, len(defs))
	inPhase := make(map[*systemDef]bool, len(defs))
	for _, def := range defs {
		inPhase[def] = true
	}
	for _, def := range defs {
		for _, next := range edges[def] {
			if inPhase[next] {
				indegree[next]++
			}
		}
	}

	var ready []*systemDef
	for _, def := range defs {
		if indegree[def] == 0 {
			ready = append(ready, def)
		}
	}
	sorted := make([]*systemDef, 0, len(defs))
	for len(ready) > 0 {
		best := 0
		for i, def := range ready {
			if def.order < ready[best].order {
				best = i
			}
		}
		def := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		sorted = append(sorted, def)
		for _, next := range edges[def] {
			if !inPhase[next] {
				continue
			}
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	if len(sorted) != len(defs) {
		var cyclic []string
		placed := make(map[*systemDef]bool, len(sorted))
		for _, def := range sorted {
			placed[def] = true
		}
		for _, def := range defs {
			if !placed[def] {
				cyclic = append(cyclic, def.name)
			}
		}
		sort.Strings(cyclic)
		return nil, ScheduleCycleError{Phase: phase, Systems: cyclic}
	}
	return sorted, nil
}

// run executes the three phases in order, compiling first when dirty.
func (s *Scheduler) run(w *World) error {
	if s.dirty {
		if err := s.Compile(); err != nil {
			return err
		}
	}
	for phase := Phase(0); phase < phaseCount; phase++ {
		for _, def := range s.compiled[phase] {
			if !def.enabled {
				continue
			}
			if !evalConditions(w, def.inherited) || !evalConditions(w, def.conditions) {
				continue
			}
			def.fn(w)
			if def.once {
				def.enabled = false
			}
		}
	}
	return nil
}

func evalConditions(w *World, conds []Condition) bool {
	for _, cond := range conds {
		if !cond(w) {
			return false
		}
	}
	return true
}

func dedupStrings(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}
