// Package script binds a Dispatcher to a gopher-lua state so scripts can
// register listeners and build, queue and trigger events.
//
// Lua functions installed as globals:
//
//	id = RegisterEventListener(EventType.Name, function(data) ... end)
//	ok = RemoveEventListener(id)
//	ok = QueueEvent(EventType.Name, data)
//	ok = TriggerEvent(EventType.Name, data)
//
// gopher-lua's LState is not goroutine-safe; Exports must live on the
// dispatcher's owning goroutine, which is also where listeners run.
package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/trickstertwo/xevent"
	"github.com/trickstertwo/xlog"
)

const (
	eventTypeTable = "EventType"
	handlersKey    = "_xevent_script_handlers"

	// maxScriptType is the largest id that survives a round trip through a Lua number.
	maxScriptType = 1<<53 - 1
)

var (
	ErrNotScriptEvent   = errors.New("xevent/script: event type is not script constructible")
	ErrInvalidEventData = errors.New("xevent/script: event data rejected by validator")
	ErrTypeTooLarge     = errors.New("xevent/script: event type does not fit a lua number")
	ErrNameTaken        = errors.New("xevent/script: event type name already exported")
)

// Validator checks an event built from script data before it is sent.
// Returning false keeps the event from firing.
type Validator func(e *Event) bool

// Exports is the script side of one dispatcher.
type Exports struct {
	L          *lua.LState
	d          *xevent.Dispatcher
	logger     *xlog.Logger
	validators map[xevent.EventType]Validator
	owned      map[xevent.ListenerID]xevent.EventType
	handlers   *lua.LTable
}

// New binds L to d. Call Install before running scripts.
func New(L *lua.LState, d *xevent.Dispatcher) *Exports {
	return &Exports{
		L:          L,
		d:          d,
		logger:     d.Logger().With(xlog.Str("component", "xevent/script")),
		validators: make(map[xevent.EventType]Validator),
		owned:      make(map[xevent.ListenerID]xevent.EventType),
	}
}

// Install publishes the event functions and the EventType table to Lua.
func (x *Exports) Install() {
	x.handlers = x.L.NewTable()
	x.L.SetGlobal(handlersKey, x.handlers)
	x.eventTypes()

	x.L.SetGlobal("RegisterEventListener", x.L.NewFunction(x.registerEventListener))
	x.L.SetGlobal("RemoveEventListener", x.L.NewFunction(x.removeEventListener))
	x.L.SetGlobal("QueueEvent", x.L.NewFunction(x.queueEvent))
	x.L.SetGlobal("TriggerEvent", x.L.NewFunction(x.triggerEvent))
}

// RegisterEventType makes t constructible from script under name: it binds a
// constructor in the dispatcher's TypeRegistry and sets EventType[name] = t.
func (x *Exports) RegisterEventType(name string, t xevent.EventType, validate Validator) error {
	if uint64(t) > maxScriptType {
		return fmt.Errorf("%s: %w", name, ErrTypeTooLarge)
	}
	tbl := x.eventTypes()
	if tbl.RawGetString(name) != lua.LNil {
		return fmt.Errorf("%s: %w", name, ErrNameTaken)
	}

	clock := x.d.Clock()
	if err := x.d.Types().Register(t, func() xevent.Event {
		return NewEvent(t, name, clock.Now())
	}); err != nil {
		return err
	}
	tbl.RawSetString(name, lua.LNumber(t))
	if validate != nil {
		x.validators[t] = validate
	}
	return nil
}

// BuildEvent creates the event registered for t and fills it from data.
func (x *Exports) BuildEvent(t xevent.EventType, data lua.LValue) (*Event, error) {
	e, err := x.d.Types().Create(t)
	if err != nil {
		return nil, err
	}
	se, ok := e.(*Event)
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, ErrNotScriptEvent)
	}
	if data != nil && data != lua.LNil {
		raw, err := luaToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if err := se.SetJSON(raw); err != nil {
			return nil, err
		}
	}
	if v := x.validators[t]; v != nil && !v(se) {
		return nil, fmt.Errorf("%s: %w", t, ErrInvalidEventData)
	}
	return se, nil
}

// Close removes every listener registered from script.
func (x *Exports) Close() {
	for id, t := range x.owned {
		x.d.RemoveListener(t, id)
		if x.handlers != nil {
			x.handlers.RawSetString(handlerKey(id), lua.LNil)
		}
	}
	x.owned = make(map[xevent.ListenerID]xevent.EventType)
}

// ListenerCount returns the number of live script listeners.
func (x *Exports) ListenerCount() int { return len(x.owned) }

func (x *Exports) eventTypes() *lua.LTable {
	if tbl, ok := x.L.GetGlobal(eventTypeTable).(*lua.LTable); ok {
		return tbl
	}
	tbl := x.L.NewTable()
	x.L.SetGlobal(eventTypeTable, tbl)
	return tbl
}

// RegisterEventListener(type, fn) -> id | nil
func (x *Exports) registerEventListener(L *lua.LState) int {
	t := checkEventType(L, 1)
	fn := L.CheckFunction(2)

	l := &listener{x: x, fn: fn}
	id, ok := x.d.AddListener(t, l)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	x.owned[id] = t
	x.handlers.RawSetString(handlerKey(id), fn)
	L.Push(lua.LNumber(id))
	return 1
}

// RemoveEventListener(id) -> bool
func (x *Exports) removeEventListener(L *lua.LState) int {
	id := xevent.ListenerID(L.CheckInt64(1))
	t, ok := x.owned[id]
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	delete(x.owned, id)
	x.handlers.RawSetString(handlerKey(id), lua.LNil)
	L.Push(lua.LBool(x.d.RemoveListener(t, id)))
	return 1
}

// QueueEvent(type, data) -> bool
func (x *Exports) queueEvent(L *lua.LState) int {
	e, ok := x.buildFromArgs(L)
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(x.d.QueueEvent(e)))
	return 1
}

// TriggerEvent(type, data) -> bool
func (x *Exports) triggerEvent(L *lua.LState) int {
	e, ok := x.buildFromArgs(L)
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(x.d.TriggerEvent(e)))
	return 1
}

func (x *Exports) buildFromArgs(L *lua.LState) (*Event, bool) {
	t := checkEventType(L, 1)
	e, err := x.BuildEvent(t, L.Get(2))
	if err != nil {
		x.logger.With(xlog.Str("event_type", t.String())).
			Error().Err(err).Msg("xevent/script: failed to build event from script")
		return nil, false
	}
	return e, true
}

// eventData converts e's payload to a Lua value. Non-script kinds are
// passed through when their serialized payload is JSON, else as nil.
func (x *Exports) eventData(e xevent.Event) lua.LValue {
	if se, ok := e.(*Event); ok {
		return jsonToLua(x.L, se.Data())
	}
	raw, err := xevent.EncodeEvent(e)
	if err != nil || len(raw) == 0 {
		return lua.LNil
	}
	probe := &Event{}
	if probe.SetJSON(raw) != nil {
		return lua.LNil
	}
	return jsonToLua(x.L, probe.Data())
}

// listener forwards events to a Lua callback.
type listener struct {
	x  *Exports
	fn *lua.LFunction
}

func (l *listener) HandleEvent(e xevent.Event) {
	err := l.x.L.CallByParam(lua.P{Fn: l.fn, NRet: 0, Protect: true}, l.x.eventData(e))
	if err != nil {
		l.x.logger.With(
			xlog.Str("event_type", e.Type().String()),
			xlog.Str("event_name", e.Name()),
		).Error().Err(err).Msg("xevent/script: listener failed")
	}
}

func checkEventType(L *lua.LState, n int) xevent.EventType {
	f := float64(L.CheckNumber(n))
	if f < 0 || f > maxScriptType || f != math.Trunc(f) {
		L.ArgError(n, "invalid event type")
		return 0
	}
	return xevent.EventType(uint64(f))
}

func handlerKey(id xevent.ListenerID) string {
	return strconv.FormatUint(uint64(id), 10)
}
