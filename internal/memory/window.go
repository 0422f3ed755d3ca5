package memory

import (
	"fmt"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

type sample struct {
	ts    time.Duration
	value ir.Value
}

// Aggregator is the state of one window instance. Sliding windows keep the
// samples of the last Duration and evict exactly; discrete windows keep the
// last Count samples.
type Aggregator struct {
	def     ir.Window
	srcType ir.Type
	start   time.Duration
	samples []sample
}

// NewAggregator creates empty window state that started covering at start.
func NewAggregator(def ir.Window, srcType ir.Type, start time.Duration) *Aggregator {
	return &Aggregator{def: def, srcType: srcType, start: start}
}

// Push records a fresh source value observed at now.
func (a *Aggregator) Push(v ir.Value, now time.Duration) {
	if ir.IsNone(v) {
		return
	}
	a.samples = append(a.samples, sample{ts: now, value: v})
	a.evict(now)
}

func (a *Aggregator) evict(now time.Duration) {
	drop := 0
	switch a.def.Kind {
	case ir.WindowSliding:
		// The window covers (now - Duration, now].
		for drop < len(a.samples) && a.samples[drop].ts <= now-a.def.Duration {
			drop++
		}
	case ir.WindowDiscrete:
		if excess := len(a.samples) - a.def.Count; excess > 0 {
			drop = excess
		}
	}
	if drop > 0 {
		a.samples = append(a.samples[:0], a.samples[drop:]...)
	}
}

// Value returns the aggregate at now. With Wait set, a sliding window
// yields None until Duration has passed since start, and a discrete window
// until Count samples were pushed.
func (a *Aggregator) Value(now time.Duration) (ir.Value, error) {
	a.evict(now)
	if a.def.Wait {
		switch a.def.Kind {
		case ir.WindowSliding:
			if now-a.start < a.def.Duration {
				return ir.None{}, nil
			}
		case ir.WindowDiscrete:
			if len(a.samples) < a.def.Count {
				return ir.None{}, nil
			}
		}
	}
	return aggregate(a.def.Op, a.srcType, a.samples)
}

// Len returns the number of retained samples.
func (a *Aggregator) Len() int { return len(a.samples) }

func aggregate(op ir.Aggregation, srcType ir.Type, samples []sample) (ir.Value, error) {
	switch op {
	case ir.AggCount:
		return ir.Int(len(samples)), nil
	case ir.AggLast:
		if len(samples) == 0 {
			return ir.None{}, nil
		}
		return samples[len(samples)-1].value, nil
	case ir.AggConjunction, ir.AggDisjunction:
		acc := op == ir.AggConjunction
		for _, s := range samples {
			b, ok := s.value.(ir.Bool)
			if !ok {
				return nil, fmt.Errorf("%s over %s value", op, s.value.Kind())
			}
			if op == ir.AggConjunction {
				acc = acc && bool(b)
			} else {
				acc = acc || bool(b)
			}
		}
		return ir.Bool(acc), nil
	case ir.AggSum, ir.AggAvg:
		var isum int64
		var fsum float64
		isFloat := srcType == ir.TypeFloat
		for _, s := range samples {
			switch v := s.value.(type) {
			case ir.Int:
				isum += int64(v)
				fsum += float64(v)
			case ir.Float:
				isFloat = true
				fsum += float64(v)
			default:
				return nil, fmt.Errorf("%s over %s value", op, s.value.Kind())
			}
		}
		if op == ir.AggAvg {
			if len(samples) == 0 {
				return ir.None{}, nil
			}
			return ir.Float(fsum / float64(len(samples))), nil
		}
		if isFloat {
			return ir.Float(fsum), nil
		}
		return ir.Int(isum), nil
	case ir.AggMin, ir.AggMax:
		if len(samples) == 0 {
			return ir.None{}, nil
		}
		best := samples[0].value
		for _, s := range samples[1:] {
			if s.value.Kind() != best.Kind() {
				return nil, fmt.Errorf("%s over mixed %s and %s values", op, best.Kind(), s.value.Kind())
			}
			c := ir.CompareValues(s.value, best)
			if (op == ir.AggMin && c < 0) || (op == ir.AggMax && c > 0) {
				best = s.value
			}
		}
		return best, nil
	default:
		return nil, fmt.Errorf("unknown aggregation %q", op)
	}
}

// WindowMemory holds the aggregator state of every window. Windows owned by
// a parameterized output keep one aggregator per live owner instance.
type WindowMemory struct {
	defs      []ir.Window
	srcTypes  []ir.Type
	perSource []bool
	global    map[ir.WindowReference]*Aggregator
	instanced map[ir.WindowReference]map[string]*Aggregator
}

// NewWindowMemory allocates global window state starting at start.
// Instanced state is created by Spawn.
func NewWindowMemory(spec *ir.StreamIR, start time.Duration) *WindowMemory {
	wm := &WindowMemory{
		defs:      spec.Windows,
		srcTypes:  make([]ir.Type, len(spec.Windows)),
		perSource: make([]bool, len(spec.Windows)),
		global:    make(map[ir.WindowReference]*Aggregator),
		instanced: make(map[ir.WindowReference]map[string]*Aggregator),
	}
	for i, w := range spec.Windows {
		ref := ir.WindowReference(i)
		_, ty, _ := spec.Stream(w.Source)
		wm.srcTypes[i] = ty
		if w.IsInstanced() {
			// An instanced window over a parameterized output only sees the
			// source instance with the owner's parameters.
			wm.perSource[i] = w.Source.IsOutput() && w.Source.Index < len(spec.Outputs) &&
				spec.Outputs[w.Source.Index].IsParameterized()
			wm.instanced[ref] = make(map[string]*Aggregator)
		} else {
			wm.global[ref] = NewAggregator(w, ty, start)
		}
	}
	return wm
}

// Spawn creates state for every window owned by output for the new instance.
func (wm *WindowMemory) Spawn(output int, params ir.Parameters, now time.Duration) {
	key := normalize(params).Key()
	for i, w := range wm.defs {
		if w.IsInstanced() && w.Owner.Index == output {
			wm.instanced[ir.WindowReference(i)][key] = NewAggregator(w, wm.srcTypes[i], now)
		}
	}
}

// Close drops the state of every window owned by output for the instance.
func (wm *WindowMemory) Close(output int, params ir.Parameters) {
	key := normalize(params).Key()
	for i, w := range wm.defs {
		if w.IsInstanced() && w.Owner.Index == output {
			delete(wm.instanced[ir.WindowReference(i)], key)
		}
	}
}

// Push feeds a fresh value of source into every window over it. params
// names the written instance of a parameterized source and is nil
// otherwise. Instanced windows over an unparameterized source feed every
// live owner instance; over a parameterized source only the owner instance
// with the same parameters.
func (wm *WindowMemory) Push(source ir.StreamReference, params ir.Parameters, v ir.Value, now time.Duration) {
	for i, w := range wm.defs {
		if w.Source != source {
			continue
		}
		ref := ir.WindowReference(i)
		if !w.IsInstanced() {
			wm.global[ref].Push(v, now)
			continue
		}
		if wm.perSource[i] {
			if agg, ok := wm.instanced[ref][normalize(params).Key()]; ok {
				agg.Push(v, now)
			}
			continue
		}
		for _, agg := range wm.instanced[ref] {
			agg.Push(v, now)
		}
	}
}

// Get returns the aggregate of ref at now. For instanced windows params
// selects the owner instance.
func (wm *WindowMemory) Get(ref ir.WindowReference, params ir.Parameters, now time.Duration) (ir.Value, error) {
	if int(ref) < 0 || int(ref) >= len(wm.defs) {
		return nil, fmt.Errorf("unknown window %d", ref)
	}
	if !wm.defs[ref].IsInstanced() {
		return wm.global[ref].Value(now)
	}
	params = normalize(params)
	agg, ok := wm.instanced[ref][params.Key()]
	if !ok {
		return nil, &InstanceNotFoundError{Params: params}
	}
	return agg.Value(now)
}

// Instances returns the number of live instanced aggregators of ref.
func (wm *WindowMemory) Instances(ref ir.WindowReference) int {
	return len(wm.instanced[ref])
}
