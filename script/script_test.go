package script

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/trickstertwo/xevent"
)

const (
	evtDamage xevent.EventType = 0x5001
	evtHeal   xevent.EventType = 0x5002
	evtRaw    xevent.EventType = 0x5003
)

func setup(t *testing.T) (*xevent.Dispatcher, *lua.LState, *Exports) {
	t.Helper()
	d, closeFn, err := xevent.New(func(b *xevent.DispatcherBuilder) { b.WithObserverPool(0, 0) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	L := lua.NewState()
	t.Cleanup(L.Close)

	x := New(L, d)
	x.Install()
	require.NoError(t, x.RegisterEventType("Damage", evtDamage, nil))
	require.NoError(t, x.RegisterEventType("Heal", evtHeal, func(e *Event) bool {
		return e.Get("amount").Int() > 0
	}))
	return d, L, x
}

func TestScriptListener_ReceivesGoEvent(t *testing.T) {
	d, L, _ := setup(t)
	require.NoError(t, L.DoString(`
		received = {}
		RegisterEventListener(EventType.Damage, function(data)
			table.insert(received, data.amount)
		end)
	`))

	e := NewEvent(evtDamage, "Damage", time.Now())
	require.NoError(t, e.Set("amount", 12))
	require.True(t, d.QueueEvent(e))
	d.Update(xevent.Unlimited)

	received := L.GetGlobal("received").(*lua.LTable)
	assert.Equal(t, lua.LNumber(12), received.RawGetInt(1))
}

func TestScriptQueueEvent_ReachesGoListener(t *testing.T) {
	d, L, _ := setup(t)
	var got *Event
	d.AddListener(evtHeal, xevent.ListenerFunc(func(e xevent.Event) { got = e.(*Event) }))

	require.NoError(t, L.DoString(`
		ok = QueueEvent(EventType.Heal, {amount = 5, tags = {"a", "b"}, ["x.y"] = true})
	`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("ok"))
	assert.Nil(t, got, "queued, not yet dispatched")

	d.Update(xevent.Unlimited)
	require.NotNil(t, got)
	assert.Equal(t, evtHeal, got.Type())
	assert.Equal(t, "Heal", got.Name())
	assert.Equal(t, int64(5), got.Get("amount").Int())
	assert.Equal(t, "b", got.Get("tags.1").String())
	assert.True(t, got.Get(`x\.y`).Bool())
}

func TestScriptTriggerEvent_Validator(t *testing.T) {
	d, L, _ := setup(t)
	calls := 0
	d.AddListener(evtHeal, xevent.ListenerFunc(func(xevent.Event) { calls++ }))

	require.NoError(t, L.DoString(`
		good = TriggerEvent(EventType.Heal, {amount = 3})
		bad = TriggerEvent(EventType.Heal, {amount = -1})
	`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("good"))
	assert.Equal(t, lua.LFalse, L.GetGlobal("bad"))
	assert.Equal(t, 1, calls)
}

func TestScriptQueueEvent_NoListeners(t *testing.T) {
	_, L, _ := setup(t)
	require.NoError(t, L.DoString(`ok = QueueEvent(EventType.Damage, {amount = 1})`))
	assert.Equal(t, lua.LFalse, L.GetGlobal("ok"))
}

func TestScriptRemoveEventListener(t *testing.T) {
	d, L, x := setup(t)
	require.NoError(t, L.DoString(`
		id = RegisterEventListener(EventType.Damage, function() end)
		first = RemoveEventListener(id)
		second = RemoveEventListener(id)
	`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("first"))
	assert.Equal(t, lua.LFalse, L.GetGlobal("second"))
	assert.False(t, d.HasListeners(evtDamage))
	assert.Equal(t, 0, x.ListenerCount())
}

func TestExports_CloseRemovesScriptListeners(t *testing.T) {
	d, L, x := setup(t)
	goListener := xevent.ListenerFunc(func(xevent.Event) {})
	d.AddListener(evtDamage, goListener)

	require.NoError(t, L.DoString(`
		RegisterEventListener(EventType.Damage, function() end)
		RegisterEventListener(EventType.Heal, function() end)
	`))
	assert.Equal(t, 2, x.ListenerCount())

	x.Close()
	assert.Equal(t, 0, x.ListenerCount())
	assert.Equal(t, 1, d.ListenerCount(evtDamage))
	assert.False(t, d.HasListeners(evtHeal))
}

func TestScriptListener_ErrorDoesNotPanic(t *testing.T) {
	d, L, _ := setup(t)
	after := 0
	require.NoError(t, L.DoString(`
		RegisterEventListener(EventType.Damage, function() error("listener fault") end)
	`))
	d.AddListener(evtDamage, xevent.ListenerFunc(func(xevent.Event) { after++ }))

	assert.NotPanics(t, func() {
		d.TriggerEvent(NewEvent(evtDamage, "Damage", time.Now()))
	})
	assert.Equal(t, 1, after)
}

func TestScript_UnknownEventTypeIsArgError(t *testing.T) {
	_, L, _ := setup(t)
	err := L.DoString(`QueueEvent(EventType.Missing, {})`)
	assert.Error(t, err)
	err = L.DoString(`QueueEvent(1.5, {})`)
	assert.Error(t, err)
}

func TestRegisterEventType_Errors(t *testing.T) {
	_, _, x := setup(t)
	assert.ErrorIs(t, x.RegisterEventType("Damage", 0x9999, nil), ErrNameTaken)
	assert.ErrorIs(t, x.RegisterEventType("Other", evtDamage, nil), xevent.ErrTypeRegistered)
	assert.ErrorIs(t, x.RegisterEventType("Huge", 1<<60, nil), ErrTypeTooLarge)
}

func TestBuildEvent_NotScriptKind(t *testing.T) {
	d, _, x := setup(t)
	d.Types().MustRegister(evtRaw, func() xevent.Event { return &rawEvent{} })
	_, err := x.BuildEvent(evtRaw, lua.LNil)
	assert.ErrorIs(t, err, ErrNotScriptEvent)
}

// rawEvent is a Go-only kind whose payload happens to be JSON.
type rawEvent struct {
	xevent.BaseEvent
	payload string
}

func (e *rawEvent) Type() xevent.EventType { return evtRaw }
func (e *rawEvent) Name() string           { return "rawEvent" }
func (e *rawEvent) Copy() xevent.Event {
	cp := *e
	return &cp
}
func (e *rawEvent) Serialize(w io.Writer) error {
	_, err := io.WriteString(w, e.payload)
	return err
}

func TestScriptListener_ForeignJSONEvent(t *testing.T) {
	d, L, _ := setup(t)
	require.NoError(t, L.DoString(`
		RegisterEventListener(20483, function(data)
			if data == nil then seen = "nil" else seen = data.n end
		end)
	`))

	d.TriggerEvent(&rawEvent{payload: `{"n":7}`})
	assert.Equal(t, lua.LNumber(7), L.GetGlobal("seen"))

	d.TriggerEvent(&rawEvent{payload: `not json`})
	assert.Equal(t, lua.LString("nil"), L.GetGlobal("seen"))
}

func TestEvent_PayloadAccess(t *testing.T) {
	e := NewEvent(evtDamage, "Damage", time.Unix(10, 0))
	assert.Empty(t, e.JSON())
	require.NoError(t, e.Set("target.id", "orc-3"))
	require.NoError(t, e.Set("amount", 4.5))

	assert.Equal(t, "orc-3", e.Get("target.id").String())
	assert.Equal(t, 4.5, e.Data().Get("amount").Float())

	assert.ErrorIs(t, e.SetJSON([]byte(`{"broken"`)), ErrInvalidJSON)
	require.NoError(t, e.SetJSON(nil))
	assert.Empty(t, e.JSON())
}

func TestEvent_CopyAndRoundTrip(t *testing.T) {
	reg := xevent.NewTypeRegistry()
	reg.MustRegister(evtDamage, func() xevent.Event { return NewEvent(evtDamage, "Damage", time.Time{}) })

	src := NewEvent(evtDamage, "Damage", time.Unix(10, 0))
	require.NoError(t, src.SetJSON([]byte(`{"amount":9}`)))

	cp := src.Copy().(*Event)
	require.NoError(t, cp.Set("amount", 1))
	assert.Equal(t, int64(9), src.Get("amount").Int())
	assert.Equal(t, src.Timestamp(), cp.Timestamp())

	raw, err := xevent.EncodeEvent(src)
	require.NoError(t, err)
	got, err := reg.Decode(evtDamage, raw)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(src.JSON(), got.(*Event).JSON()))
}

func TestLuaToJSON(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	require.NoError(t, L.DoString(`
		v = {list = {1, 2, 3}, name = "ok", nested = {flag = false}}
		cyc = {}
		cyc.self = cyc
	`))

	raw, err := luaToJSON(L.GetGlobal("v"))
	require.NoError(t, err)
	e := NewEvent(evtDamage, "Damage", time.Time{})
	require.NoError(t, e.SetJSON(raw))
	assert.Equal(t, int64(3), e.Get("list.#").Int())
	assert.Equal(t, "ok", e.Get("name").String())
	assert.False(t, e.Get("nested.flag").Bool())
	assert.True(t, e.Get("nested.flag").Exists())

	_, err = luaToJSON(L.GetGlobal("cyc"))
	assert.Error(t, err)

	_, err = luaToJSON(L.NewFunction(func(*lua.LState) int { return 0 }))
	assert.Error(t, err)
}
