package commander_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tracker/internal/game/commander"
	"github.com/cory-johannsen/tracker/internal/game/dice"
	"github.com/cory-johannsen/tracker/internal/game/encounter"
	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/rules"
	"github.com/cory-johannsen/tracker/internal/game/savedencounter"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// spyFlow counts transitions while delegating to the real flow.
type spyFlow struct {
	encounter.TurnFlow
	starts int
	nexts  int
}

func (s *spyFlow) Start() {
	s.starts++
	s.TurnFlow.Start()
}

func (s *spyFlow) NextTurn() {
	s.nexts++
	s.TurnFlow.NextTurn()
}

type eventLog struct {
	mu     sync.Mutex
	events []commander.Event
}

func (l *eventLog) Publish(_ context.Context, ev commander.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

type harness struct {
	enc    *encounter.Encounter
	flow   *spyFlow
	store  *persistent.MemoryStore
	saved  *savedencounter.MemoryStore
	events *eventLog
	cmd    *commander.Commander
}

func buildEncounter(t testing.TB) *encounter.Encounter {
	logger := zaptest.NewLogger(t)
	return encounter.New(rules.NewDefaultRules(dice.NewRoller(dice.FixedSource(9), logger)), logger)
}

func newHarness(t testing.TB, settings commander.Settings, confirmer commander.Confirmer) *harness {
	h := &harness{
		enc:    buildEncounter(t),
		store:  persistent.NewMemoryStore(),
		saved:  savedencounter.NewMemoryStore(),
		events: &eventLog{},
	}
	h.flow = &spyFlow{TurnFlow: h.enc.Flow}
	h.enc.Flow = h.flow
	h.cmd = commander.New(h.enc, h.store, h.saved, confirmer, h.events, settings, zaptest.NewLogger(t))
	return h
}

func defaultHarness(t testing.TB) *harness {
	return newHarness(t, commander.Settings{AutoRollInitiative: encounter.RollNone, ConfirmDestructive: true}, commander.AlwaysConfirm)
}

func playerStatBlock() statblock.StatBlock {
	sb := statblock.Default()
	sb.Player = statblock.PlayerTag
	return sb
}

func (h *harness) addPlayer(t *testing.T) *encounter.Combatant {
	t.Helper()
	pc := persistent.Initialize(playerStatBlock())
	require.NoError(t, h.store.AddNewPersistentCharacter(context.Background(), pc))
	c, err := h.enc.AddCombatantFromPersistentCharacter(context.Background(), pc, persistent.NopUpdater)
	require.NoError(t, err)
	return c
}

func TestStartEncounter_EmptyIsNoop(t *testing.T) {
	h := defaultHarness(t)
	assert.False(t, h.cmd.StartEncounter(context.Background()))
	assert.Equal(t, encounter.StateInactive, h.enc.Flow.State())
	assert.Equal(t, 0, h.enc.Len())
	assert.Nil(t, h.enc.Flow.ActiveCombatant())
	assert.Empty(t, h.events.types())
}

func TestNextTurn_EmptyDoesNotAdvance(t *testing.T) {
	h := defaultHarness(t)
	assert.Nil(t, h.enc.Flow.ActiveCombatant())
	h.cmd.NextTurn(context.Background())
	assert.Equal(t, 0, h.flow.nexts)
	assert.Equal(t, encounter.StateInactive, h.enc.Flow.State())
}

func TestNextTurn_StartsInactiveEncounter(t *testing.T) {
	h := defaultHarness(t)
	h.enc.AddCombatantFromStatBlock(statblock.Default())
	require.Nil(t, h.enc.Flow.ActiveCombatant())

	assert.True(t, h.cmd.NextTurn(context.Background()))
	assert.Equal(t, 1, h.flow.starts)
	assert.Equal(t, 0, h.flow.nexts, "starting consumes the NextTurn")
	assert.Equal(t, encounter.StateActive, h.enc.Flow.State())
	assert.Equal(t, 1, h.enc.Flow.RoundCounter())

	assert.True(t, h.cmd.NextTurn(context.Background()))
	assert.Equal(t, 1, h.flow.starts)
	assert.Equal(t, 1, h.flow.nexts)
	assert.Equal(t, 2, h.enc.Flow.RoundCounter())
	assert.Equal(t, []string{commander.EventEncounterStarted, commander.EventTurnChanged}, h.events.types())
}

func TestCleanEncounter_KeepsPersistentCharacters(t *testing.T) {
	h := defaultHarness(t)
	h.enc.AddCombatantFromStatBlock(statblock.Default())
	pc := h.addPlayer(t)
	require.Equal(t, 2, h.enc.Len())

	assert.True(t, h.cmd.CleanEncounter(context.Background()))
	require.Equal(t, 1, h.enc.Len())
	assert.Same(t, pc, h.enc.Combatants()[0])
}

func TestClearEncounter_RemovesEveryone(t *testing.T) {
	h := defaultHarness(t)
	h.enc.AddCombatantFromStatBlock(statblock.Default())
	h.addPlayer(t)
	h.cmd.StartEncounter(context.Background())
	require.Equal(t, 2, h.enc.Len())

	assert.True(t, h.cmd.ClearEncounter(context.Background()))
	assert.Equal(t, 0, h.enc.Len())
	assert.Equal(t, encounter.StateInactive, h.enc.Flow.State())
}

func TestRestoreAllPlayerCharacterHP_OnlyPlayers(t *testing.T) {
	h := defaultHarness(t)
	npc := h.enc.AddCombatantFromStatBlock(statblock.Default())
	pc := h.addPlayer(t)
	assert.Equal(t, 1, npc.CurrentHP())
	assert.Equal(t, 1, pc.CurrentHP())

	npc.ApplyDamage(context.Background(), 1)
	pc.ApplyDamage(context.Background(), 1)
	assert.Equal(t, 0, npc.CurrentHP())
	assert.Equal(t, 0, pc.CurrentHP())

	h.cmd.RestoreAllPlayerCharacterHP(context.Background())
	assert.Equal(t, 0, npc.CurrentHP())
	assert.Equal(t, 1, pc.CurrentHP())
}

func TestRestoreAllPlayerCharacterHP_PlayerFlagNotPersistence(t *testing.T) {
	h := defaultHarness(t)
	pcSB := playerStatBlock()
	pcSB.HP.Value = 5
	quickPC := h.enc.AddCombatantFromStatBlock(pcSB)

	npcChar := persistent.Initialize(statblock.Default())
	require.NoError(t, h.store.AddNewPersistentCharacter(context.Background(), npcChar))
	sidekick, err := h.enc.AddCombatantFromPersistentCharacter(context.Background(), npcChar, nil)
	require.NoError(t, err)

	quickPC.ApplyDamage(context.Background(), 5)
	sidekick.ApplyDamage(context.Background(), 1)
	h.cmd.RestoreAllPlayerCharacterHP(context.Background())
	assert.Equal(t, 5, quickPC.CurrentHP())
	assert.Equal(t, 0, sidekick.CurrentHP())
}

func TestDestructiveCommands_Declined(t *testing.T) {
	h := newHarness(t, commander.Settings{ConfirmDestructive: true}, commander.NeverConfirm)
	npc := h.enc.AddCombatantFromStatBlock(statblock.Default())
	pc := h.addPlayer(t)
	pc.ApplyDamage(context.Background(), 1)

	assert.False(t, h.cmd.CleanEncounter(context.Background()))
	assert.False(t, h.cmd.ClearEncounter(context.Background()))
	assert.False(t, h.cmd.RestoreAllPlayerCharacterHP(context.Background()))
	assert.Equal(t, 2, h.enc.Len())
	assert.Equal(t, 1, npc.CurrentHP())
	assert.Equal(t, 0, pc.CurrentHP())
}

func TestDestructiveCommands_ConfirmationDisabled(t *testing.T) {
	var prompts int
	confirmer := commander.ConfirmerFunc(func(context.Context, string) bool {
		prompts++
		return false
	})
	h := newHarness(t, commander.Settings{ConfirmDestructive: false}, confirmer)
	h.enc.AddCombatantFromStatBlock(statblock.Default())

	assert.True(t, h.cmd.ClearEncounter(context.Background()))
	assert.Equal(t, 0, prompts)
}

func buildSavedEncounterWithPersistentCharacter(t *testing.T) (encounter.State, *persistent.Character) {
	npc := statblock.Default()
	npc.Name = "Goblin"
	sb := statblock.Default()
	sb.Name = "Encounter Gregorr"
	pc := persistent.Initialize(sb)

	old := buildEncounter(t)
	old.AddCombatantFromStatBlock(npc)
	_, err := old.AddCombatantFromPersistentCharacter(context.Background(), pc, persistent.NopUpdater)
	require.NoError(t, err)
	return old.GetEncounterState(), pc
}

func TestLoadSavedEncounter_PreservesOrder(t *testing.T) {
	h := defaultHarness(t)
	saved, pc := buildSavedEncounterWithPersistentCharacter(t)
	require.NoError(t, h.store.AddNewPersistentCharacter(context.Background(), pc))

	require.NoError(t, h.cmd.LoadSavedEncounter(context.Background(), saved))
	require.Equal(t, 2, h.enc.Len())
	assert.Equal(t, "Goblin", h.enc.Combatants()[0].DisplayName())
	assert.Equal(t, saved.Combatants[0].ID, h.enc.Combatants()[0].ID())
}

func TestLoadSavedEncounter_UsesCurrentLibraryVersion(t *testing.T) {
	h := defaultHarness(t)
	saved, _ := buildSavedEncounterWithPersistentCharacter(t)

	sb := statblock.Default()
	sb.Name = "Library Gregorr"
	sb.HP.Value = 12
	current := persistent.Initialize(sb)
	current.ID = saved.Combatants[1].PersistentCharacterID
	current.CurrentHP = 9
	require.NoError(t, h.store.AddNewPersistentCharacter(context.Background(), current))

	require.NoError(t, h.cmd.LoadSavedEncounter(context.Background(), saved))
	loaded := h.enc.Combatants()[1]
	assert.Equal(t, "Library Gregorr", loaded.DisplayName())
	assert.Equal(t, 12, loaded.MaxHP())
	assert.Equal(t, 9, loaded.CurrentHP())
	assert.Equal(t, current.ID, loaded.PersistentCharacterID())

	loaded.ApplyDamage(context.Background(), 4)
	stored, err := h.store.Get(context.Background(), current.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.CurrentHP, "reloaded combatants stay linked to the library")
}

func TestLoadSavedEncounter_SkipsUnknownCharacter(t *testing.T) {
	h := defaultHarness(t)
	h.enc.AddCombatantFromStatBlock(statblock.Default())
	saved, pc := buildSavedEncounterWithPersistentCharacter(t)

	err := h.cmd.LoadSavedEncounter(context.Background(), saved)
	require.ErrorIs(t, err, commander.ErrUnknownPersistentCharacter)
	var skipped *commander.SkippedCombatantsError
	require.ErrorAs(t, err, &skipped)
	assert.Equal(t, []string{pc.ID}, skipped.IDs)

	require.Equal(t, 1, h.enc.Len(), "the previous roster is replaced")
	assert.Equal(t, "Goblin", h.enc.Combatants()[0].DisplayName())
	assert.Equal(t, saved.Combatants[0].ID, h.enc.Combatants()[0].ID())
	assert.Equal(t, []string{commander.EventEncounterLoaded}, h.events.types())
}

// buildMixedSavedEncounter saves goblin, A, orc, B, C where A, B and C are
// persistent characters.
func buildMixedSavedEncounter(t *testing.T) (encounter.State, []*persistent.Character) {
	old := buildEncounter(t)
	var pcs []*persistent.Character
	addNPC := func(name string) {
		sb := statblock.Default()
		sb.Name = name
		old.AddCombatantFromStatBlock(sb)
	}
	addPC := func(name string) {
		sb := playerStatBlock()
		sb.Name = name
		pc := persistent.Initialize(sb)
		_, err := old.AddCombatantFromPersistentCharacter(context.Background(), pc, persistent.NopUpdater)
		require.NoError(t, err)
		pcs = append(pcs, pc)
	}
	addNPC("Goblin")
	addPC("Saved A")
	addNPC("Orc")
	addPC("Saved B")
	addPC("Saved C")
	return old.GetEncounterState(), pcs
}

func seedLibraryVersion(t *testing.T, h *harness, pc *persistent.Character, name string) {
	t.Helper()
	sb := pc.StatBlock
	sb.Name = name
	current := persistent.Initialize(sb)
	current.ID = pc.ID
	require.NoError(t, h.store.AddNewPersistentCharacter(context.Background(), current))
}

func displayNames(enc *encounter.Encounter) []string {
	var out []string
	for _, cb := range enc.Combatants() {
		out = append(out, cb.DisplayName())
	}
	return out
}

func TestLoadSavedEncounter_MixedDescriptorsKeepSavedOrder(t *testing.T) {
	h := defaultHarness(t)
	saved, pcs := buildMixedSavedEncounter(t)
	seedLibraryVersion(t, h, pcs[0], "Library A")
	seedLibraryVersion(t, h, pcs[1], "Library B")
	seedLibraryVersion(t, h, pcs[2], "Library C")

	require.NoError(t, h.cmd.LoadSavedEncounter(context.Background(), saved))
	assert.Equal(t, []string{"Goblin", "Library A", "Orc", "Library B", "Library C"}, displayNames(h.enc))
	require.Equal(t, len(saved.Combatants), h.enc.Len())
	for i, cb := range h.enc.Combatants() {
		assert.Equal(t, saved.Combatants[i].ID, cb.ID(), "position %d", i)
	}
}

func TestLoadSavedEncounter_MixedDescriptorsSkipMissingInPlace(t *testing.T) {
	h := defaultHarness(t)
	saved, pcs := buildMixedSavedEncounter(t)
	seedLibraryVersion(t, h, pcs[0], "Library A")
	seedLibraryVersion(t, h, pcs[2], "Library C")

	err := h.cmd.LoadSavedEncounter(context.Background(), saved)
	var skipped *commander.SkippedCombatantsError
	require.ErrorAs(t, err, &skipped)
	assert.Equal(t, []string{pcs[1].ID}, skipped.IDs)
	assert.Equal(t, []string{"Goblin", "Library A", "Orc", "Library C"}, displayNames(h.enc))
}

func TestLoadSavedEncounter_RestoresFlow(t *testing.T) {
	h := defaultHarness(t)
	old := buildEncounter(t)
	a := old.AddCombatantFromStatBlock(statblock.Default())
	b := old.AddCombatantFromStatBlock(statblock.Default())
	a.SetInitiative(15)
	b.SetInitiative(5)
	old.Flow.Start()
	old.Flow.NextTurn()
	old.Flow.NextTurn()
	old.Flow.NextTurn()

	require.NoError(t, h.cmd.LoadSavedEncounter(context.Background(), old.GetEncounterState()))
	assert.Equal(t, encounter.StateActive, h.enc.Flow.State())
	assert.Equal(t, 2, h.enc.Flow.RoundCounter())
	assert.Equal(t, b.ID(), h.enc.Flow.ActiveCombatant().ID())
}

func TestSaveAndLoadByName(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()
	sb := statblock.Default()
	sb.Name = "Orc"
	h.cmd.AddStatBlock(ctx, sb)
	require.NoError(t, h.cmd.SaveEncounter(ctx, "orc camp"))

	entries, err := h.cmd.ListSavedEncounters(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "orc camp", entries[0].Name)

	require.True(t, h.cmd.ClearEncounter(ctx))
	require.NoError(t, h.cmd.LoadSavedEncounterByName(ctx, "orc camp"))
	require.Equal(t, 1, h.enc.Len())
	assert.Equal(t, "Orc", h.enc.Combatants()[0].DisplayName())

	err = h.cmd.LoadSavedEncounterByName(ctx, "missing")
	assert.ErrorIs(t, err, savedencounter.ErrNotFound)
}

func TestStartEncounter_AutoRollEnemies(t *testing.T) {
	h := newHarness(t, commander.Settings{AutoRollInitiative: encounter.RollEnemies}, nil)
	ctx := context.Background()
	goblin := statblock.Default()
	goblin.Name = "Goblin"
	npcID := h.cmd.AddStatBlock(ctx, goblin)
	pcID := h.cmd.AddStatBlock(ctx, playerStatBlock())
	require.NoError(t, h.cmd.SetInitiative(ctx, pcID, 4))

	require.True(t, h.cmd.StartEncounter(ctx))
	state := h.cmd.State()
	require.Len(t, state.Combatants, 2)
	assert.Equal(t, npcID, state.Combatants[0].ID)
	assert.Equal(t, 10, state.Combatants[0].Initiative)
	assert.Equal(t, 4, state.Combatants[1].Initiative)
	assert.Equal(t, npcID, state.ActiveCombatantID)
}

func TestAddPersistentCharacter(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()
	pc := persistent.Initialize(playerStatBlock())
	require.NoError(t, h.store.AddNewPersistentCharacter(ctx, pc))

	id, err := h.cmd.AddPersistentCharacter(ctx, pc.ID)
	require.NoError(t, err)
	again, err := h.cmd.AddPersistentCharacter(ctx, pc.ID)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, h.enc.Len())

	_, err = h.cmd.AddPersistentCharacter(ctx, "nope")
	assert.ErrorIs(t, err, commander.ErrUnknownPersistentCharacter)
}

func TestCombatantCommands(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()
	sb := playerStatBlock()
	sb.HP.Value = 10
	pc := persistent.Initialize(sb)
	require.NoError(t, h.store.AddNewPersistentCharacter(ctx, pc))
	id, err := h.cmd.AddPersistentCharacter(ctx, pc.ID)
	require.NoError(t, err)

	require.NoError(t, h.cmd.ApplyTemporaryHP(ctx, id, 2))
	require.NoError(t, h.cmd.DamageCombatant(ctx, id, 5))
	stored, err := h.store.Get(ctx, pc.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.CurrentHP)

	require.NoError(t, h.cmd.HealCombatant(ctx, id, 1))
	require.NoError(t, h.cmd.SetAlias(ctx, id, "Greg"))
	require.NoError(t, h.cmd.AddTag(ctx, id, encounter.Tag{Text: "Raging"}))
	require.NoError(t, h.cmd.SetHidden(ctx, id, true))

	c, ok := h.enc.Combatant(id)
	require.True(t, ok)
	assert.Equal(t, 8, c.CurrentHP())
	assert.Equal(t, "Greg", c.DisplayName())
	assert.Len(t, c.Tags(), 1)
	assert.Empty(t, h.cmd.PlayerView().Combatants)

	require.NoError(t, h.cmd.RemoveTag(ctx, id, "Raging"))
	assert.Empty(t, c.Tags())

	assert.ErrorIs(t, h.cmd.DamageCombatant(ctx, "nope", 1), commander.ErrUnknownCombatant)
	assert.True(t, h.cmd.RemoveCombatant(ctx, id))
	assert.False(t, h.cmd.RemoveCombatant(ctx, id))
}

func TestEndAndPreviousTurn(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()
	assert.False(t, h.cmd.PreviousTurn(ctx))
	assert.False(t, h.cmd.EndEncounter(ctx))
	assert.False(t, h.cmd.RerollInitiative(ctx))

	h.cmd.AddStatBlock(ctx, statblock.Default())
	h.cmd.AddStatBlock(ctx, statblock.Default())
	h.cmd.StartEncounter(ctx)
	first := h.enc.Flow.ActiveCombatant()
	h.cmd.NextTurn(ctx)
	assert.True(t, h.cmd.PreviousTurn(ctx))
	assert.Same(t, first, h.enc.Flow.ActiveCombatant())
	assert.True(t, h.cmd.RerollInitiative(ctx))
	assert.Same(t, first, h.enc.Flow.ActiveCombatant())
	assert.True(t, h.cmd.EndEncounter(ctx))
	assert.Equal(t, encounter.StateInactive, h.enc.Flow.State())
}

func TestDispatch(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()
	h.cmd.AddStatBlock(ctx, statblock.Default())

	changed, err := h.cmd.Dispatch(ctx, "n")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, encounter.StateActive, h.enc.Flow.State())

	changed, err = h.cmd.Dispatch(ctx, "alt+n")
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = h.cmd.Dispatch(ctx, "teleport")
	assert.ErrorIs(t, err, commander.ErrUnknownCommand)
}

func TestDefaultRegistry(t *testing.T) {
	r := commander.DefaultRegistry()
	for _, tc := range []struct{ input, name string }{
		{"start", "start"},
		{"next", "next"},
		{"n", "next"},
		{"previous", "previous"},
		{"alt+n", "previous"},
		{"end", "end"},
		{"clean", "clean"},
		{"clear", "clear"},
		{"restore-pc-hp", "restore-pc-hp"},
		{"reroll", "reroll"},
	} {
		cmd, ok := r.Resolve(tc.input)
		require.True(t, ok, tc.input)
		assert.Equal(t, tc.name, cmd.Name)
	}
	assert.Len(t, r.Commands(), 8)
}

func TestNewRegistry_Collisions(t *testing.T) {
	run := (*commander.Commander).NextTurn
	_, err := commander.NewRegistry([]commander.Command{{Name: "a", Run: run}, {Name: "a", Run: run}})
	assert.Error(t, err)
	_, err = commander.NewRegistry([]commander.Command{{Name: "a", Aliases: []string{"b"}, Run: run}, {Name: "b", Run: run}})
	assert.Error(t, err)
	_, err = commander.NewRegistry([]commander.Command{{Name: "a", Hotkey: "x", Run: run}, {Name: "b", Hotkey: "x", Run: run}})
	assert.Error(t, err)
	_, err = commander.NewRegistry([]commander.Command{{Name: "a"}})
	assert.Error(t, err)
}

// TestPropertyNextTurn_InactiveOnlyStarts verifies NextTurn on an inactive
// encounter starts it without advancing, for any roster size.
func TestPropertyNextTurn_InactiveOnlyStarts(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(rt, "combatants")
		h := defaultHarness(t)
		for i := 0; i < n; i++ {
			h.enc.AddCombatantFromStatBlock(statblock.Default())
		}
		h.cmd.NextTurn(context.Background())
		if h.flow.nexts != 0 {
			rt.Fatalf("NextTurn advanced an inactive encounter")
		}
		wantActive := n > 0
		if (h.enc.Flow.State() == encounter.StateActive) != wantActive {
			rt.Fatalf("state = %s with %d combatants", h.enc.Flow.State(), n)
		}
		if wantActive && h.enc.Flow.ActiveCombatant() != h.enc.Combatants()[0] {
			rt.Fatalf("first combatant is not active")
		}
	})
}

type ctxKey struct{}

// ctxRecordingStore records the ctxKey value seen by each HP write-back.
type ctxRecordingStore struct {
	*persistent.MemoryStore
	mu   sync.Mutex
	seen []any
}

func (s *ctxRecordingStore) UpdatePersistentCharacter(ctx context.Context, id string, u persistent.Update) error {
	s.mu.Lock()
	s.seen = append(s.seen, ctx.Value(ctxKey{}))
	s.mu.Unlock()
	return s.MemoryStore.UpdatePersistentCharacter(ctx, id, u)
}

func TestHPCommands_PassContextToLibrary(t *testing.T) {
	store := &ctxRecordingStore{MemoryStore: persistent.NewMemoryStore()}
	cmd := commander.New(buildEncounter(t), store, savedencounter.NewMemoryStore(), commander.AlwaysConfirm,
		&eventLog{}, commander.Settings{ConfirmDestructive: true}, zaptest.NewLogger(t))

	sb := playerStatBlock()
	sb.HP.Value = 10
	pc := persistent.Initialize(sb)
	require.NoError(t, store.AddNewPersistentCharacter(context.Background(), pc))
	id, err := cmd.AddPersistentCharacter(context.Background(), pc.ID)
	require.NoError(t, err)

	with := func(v string) context.Context { return context.WithValue(context.Background(), ctxKey{}, v) }
	require.NoError(t, cmd.DamageCombatant(with("damage"), id, 3))
	require.NoError(t, cmd.HealCombatant(with("heal"), id, 1))
	require.True(t, cmd.RestoreAllPlayerCharacterHP(with("restore")))

	assert.Equal(t, []any{"damage", "heal", "restore"}, store.seen)
	stored, err := store.Get(context.Background(), pc.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.CurrentHP)
}
