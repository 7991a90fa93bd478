// Package script lets a Lua file decide which road segments get rasterized.
//
// A script defines roadgrid.accept_segment(seg) and returns false for
// segments to drop. seg has id, length, point_count and points (a list of
// {x=, y=} tables, 1-based).
package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/city"
	"github.com/wegman-software/roadgrid/internal/logger"
)

const callbackName = "accept_segment"

// Filter runs a segment filter script. A Filter is not safe for
// concurrent use.
type Filter struct {
	L      *lua.LState
	accept lua.LValue
	errors int
}

// NewFilter creates a Lua state with the roadgrid API registered
func NewFilter() *Filter {
	L := lua.NewState()
	f := &Filter{L: L}
	f.registerAPI()
	return f
}

// Close releases Lua resources
func (f *Filter) Close() {
	f.L.Close()
}

func (f *Filter) registerAPI() {
	api := f.L.NewTable()
	api.RawSetString("version", lua.LString("1.0.0"))
	f.L.SetGlobal("roadgrid", api)
	f.L.SetGlobal("print", f.L.NewFunction(luaPrint))
}

// LoadFile loads and executes a filter script
func (f *Filter) LoadFile(path string) error {
	if err := f.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load filter script: %w", err)
	}
	f.lookupCallback()
	return nil
}

// LoadString loads and executes filter code from a string
func (f *Filter) LoadString(code string) error {
	if err := f.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load filter code: %w", err)
	}
	f.lookupCallback()
	return nil
}

func (f *Filter) lookupCallback() {
	if api, ok := f.L.GetGlobal("roadgrid").(*lua.LTable); ok {
		f.accept = api.RawGetString(callbackName)
	}
}

// HasCallback reports whether the script defined accept_segment
func (f *Filter) HasCallback() bool {
	return f.accept != nil && f.accept.Type() == lua.LTFunction
}

// Errors returns how many callback invocations failed
func (f *Filter) Errors() int {
	return f.errors
}

// Accept calls the script for seg. Segments are kept when the script has
// no callback, returns anything but false, or raises an error.
func (f *Filter) Accept(seg city.Segment) bool {
	if !f.HasCallback() {
		return true
	}

	err := f.L.CallByParam(lua.P{
		Fn:      f.accept,
		NRet:    1,
		Protect: true,
	}, f.segmentToLua(seg))
	if err != nil {
		f.errors++
		logger.Get().Warn("Filter script failed, keeping segment",
			zap.Int("segment", seg.ID), zap.Error(err))
		return true
	}

	ret := f.L.Get(-1)
	f.L.Pop(1)
	return ret != lua.LFalse
}

func (f *Filter) segmentToLua(seg city.Segment) *lua.LTable {
	L := f.L
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LNumber(seg.ID))
	tbl.RawSetString("point_count", lua.LNumber(len(seg.Pts)))
	tbl.RawSetString("length", lua.LNumber(seg.Length()))

	points := L.CreateTable(len(seg.Pts), 0)
	for i, p := range seg.Pts {
		pt := L.CreateTable(0, 2)
		pt.RawSetString("x", lua.LNumber(p.X()))
		pt.RawSetString("y", lua.LNumber(p.Y()))
		points.RawSetInt(i+1, pt)
	}
	tbl.RawSetString("points", points)
	return tbl
}

// luaPrint sends script output to the debug log
func luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	logger.Get().Debug("filter script", zap.String("output", strings.Join(parts, "\t")))
	return 0
}
