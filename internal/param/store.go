package param

import "sync"

// Listener is notified after every successful store mutation.
type Listener interface {
	ParametersChanged(model string, snapshot Set)
}

type ListenerFunc func(model string, snapshot Set)

func (f ListenerFunc) ParametersChanged(model string, snapshot Set) { f(model, snapshot) }

type slot struct {
	model   Model
	current Set
}

// Store owns one Set per model. Reads return snapshots; writes go through
// Update, Replace and Reset only.
type Store struct {
	mu        sync.RWMutex
	order     []string
	slots     map[string]*slot
	listeners []Listener
}

func NewStore(models ...Model) *Store {
	s := &Store{slots: make(map[string]*slot, len(models))}
	for _, m := range models {
		if _, ok := s.slots[m.Name]; ok {
			continue
		}
		s.order = append(s.order, m.Name)
		s.slots[m.Name] = &slot{model: m, current: m.Defaults()}
	}
	return s
}

func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Models returns the model names in registration order.
func (s *Store) Models() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) Model(name string) (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[name]
	if !ok {
		return Model{}, false
	}
	return sl.model, true
}

func (s *Store) Get(model string) (Set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[model]
	if !ok {
		return Set{}, false
	}
	return sl.current.Clone(), true
}

func (s *Store) Ranges(model string) (map[string]Range[float64], bool) {
	m, ok := s.Model(model)
	if !ok {
		return nil, false
	}
	return m.Ranges(), true
}

// Update binds name to value in model's set. Unknown models or names are a
// no-op and report false. No clamping is done here.
func (s *Store) Update(model, name string, value float64) (Set, bool) {
	s.mu.Lock()
	sl, ok := s.slots[model]
	if !ok {
		s.mu.Unlock()
		return Set{}, false
	}
	next, ok := sl.current.With(name, value)
	if !ok {
		s.mu.Unlock()
		return sl.current.Clone(), false
	}
	sl.current = next
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, model, next.Clone())
	return next.Clone(), true
}

// Replace swaps model's whole set. set must have the same names in the same
// order as the model's declaration.
func (s *Store) Replace(model string, set Set) bool {
	s.mu.Lock()
	sl, ok := s.slots[model]
	if !ok || !sl.current.SameShape(set) {
		s.mu.Unlock()
		return false
	}
	sl.current = set.Clone()
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, model, set.Clone())
	return true
}

func (s *Store) Reset(model string) bool {
	m, ok := s.Model(model)
	if !ok {
		return false
	}
	return s.Replace(model, m.Defaults())
}

func (s *Store) notify(listeners []Listener, model string, snapshot Set) {
	for _, l := range listeners {
		l.ParametersChanged(model, snapshot)
	}
}
