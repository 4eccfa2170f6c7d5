package rules

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// Hook names a rules script may define.
const (
	HookAbilityModifier    = "ability_modifier"
	HookInitiativeModifier = "initiative_modifier"
)

// ScriptedRules lets a house-rules Lua script override DefaultRules.
//
// A script defines any of:
//
//	function ability_modifier(score) return ... end
//	function initiative_modifier(dex_score, bonus) return ... end
//
// Undefined hooks and hooks that fail or return a non-number fall back to the
// defaults. Safe for concurrent use; calls into the VM are serialized.
type ScriptedRules struct {
	*DefaultRules

	mu        sync.Mutex
	L         *lua.LState
	instLimit int
	logger    *zap.Logger
}

// NewScriptedRules loads the script at path on top of base. The script's
// top-level code runs under the same instruction limit as hook calls.
//
// Precondition: base and logger must be non-nil.
// Postcondition: Returns ready rules or the Lua load error.
func NewScriptedRules(base *DefaultRules, path string, instLimit int, logger *zap.Logger) (*ScriptedRules, error) {
	return loadScripted(base, instLimit, logger, func(L *lua.LState) error {
		if err := L.DoFile(path); err != nil {
			return fmt.Errorf("loading rules script %q: %w", path, err)
		}
		return nil
	})
}

// NewScriptedRulesFromString is NewScriptedRules for inline source.
func NewScriptedRulesFromString(base *DefaultRules, src string, instLimit int, logger *zap.Logger) (*ScriptedRules, error) {
	return loadScripted(base, instLimit, logger, func(L *lua.LState) error {
		if err := L.DoString(src); err != nil {
			return fmt.Errorf("loading rules script: %w", err)
		}
		return nil
	})
}

func loadScripted(base *DefaultRules, instLimit int, logger *zap.Logger, load func(*lua.LState) error) (*ScriptedRules, error) {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L := newSandboxedState()
	ctx, cancel := newCountingContext(instLimit)
	L.SetContext(ctx)
	err := load(L)
	L.RemoveContext()
	cancel()
	if err != nil {
		L.Close()
		return nil, err
	}
	return &ScriptedRules{
		DefaultRules: base,
		L:            L,
		instLimit:    instLimit,
		logger:       logger.With(zap.String("component", "rules")),
	}, nil
}

// Close releases the Lua VM.
func (s *ScriptedRules) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.L.Close()
}

// AbilityModifier calls ability_modifier(score) when defined.
func (s *ScriptedRules) AbilityModifier(score int) int {
	if v, ok := s.call(HookAbilityModifier, lua.LNumber(score)); ok {
		return v
	}
	return s.DefaultRules.AbilityModifier(score)
}

// InitiativeModifier calls initiative_modifier(dex, bonus) when defined,
// otherwise adds the (possibly scripted) Dex modifier to the bonus.
func (s *ScriptedRules) InitiativeModifier(sb statblock.StatBlock) int {
	if v, ok := s.call(HookInitiativeModifier, lua.LNumber(sb.Abilities.Dex), lua.LNumber(sb.InitiativeModifier)); ok {
		return v
	}
	return s.AbilityModifier(sb.Abilities.Dex) + sb.InitiativeModifier
}

func (s *ScriptedRules) call(hook string, args ...lua.LValue) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn := s.L.GetGlobal(hook)
	if fn == lua.LNil {
		return 0, false
	}

	ctx, cancel := newCountingContext(s.instLimit)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		s.logger.Warn("rules hook failed",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return 0, false
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		s.logger.Warn("rules hook returned non-number",
			zap.String("hook", hook),
			zap.String("type", ret.Type().String()),
		)
		return 0, false
	}
	return int(n), true
}
