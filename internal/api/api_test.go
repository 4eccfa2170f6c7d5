package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/tracker/internal/api"
	"github.com/cory-johannsen/tracker/internal/game/commander"
	"github.com/cory-johannsen/tracker/internal/game/dice"
	"github.com/cory-johannsen/tracker/internal/game/encounter"
	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/rules"
	"github.com/cory-johannsen/tracker/internal/game/savedencounter"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Warning string          `json:"warning"`
}

type fixture struct {
	router *gin.Engine
	cmd    *commander.Commander
	store  *persistent.MemoryStore
	hub    *api.Hub
}

func goblin() statblock.StatBlock {
	sb := statblock.Default()
	sb.ID = "goblin"
	sb.Name = "Goblin"
	sb.HP = statblock.ValueWithNotes{Value: 7, Notes: "(2d6)"}
	sb.AC = statblock.ValueWithNotes{Value: 15}
	return sb
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	lib, err := statblock.NewLibrary([]statblock.StatBlock{goblin()})
	require.NoError(t, err)
	enc := encounter.New(rules.NewDefaultRules(dice.NewRoller(dice.FixedSource(9), logger)), logger)
	store := persistent.NewMemoryStore()
	hub := api.NewHub(nil, logger)
	t.Cleanup(hub.Close)

	cmd := commander.New(enc, store, savedencounter.NewMemoryStore(), api.RequestConfirmer{}, hub,
		commander.Settings{AutoRollInitiative: encounter.RollNone, ConfirmDestructive: true}, logger)
	h := api.NewHandler(cmd, lib, store, hub, logger)
	return &fixture{router: api.NewRouter(h, logger), cmd: cmd, store: store, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (f *fixture) addGoblin(t *testing.T) string {
	t.Helper()
	w, env := f.do(t, http.MethodPost, "/api/encounter/combatants", map[string]string{"statblock_id": "goblin"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var out struct{ ID string }
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestAddCombatant_FromLibrary(t *testing.T) {
	f := newFixture(t)
	id := f.addGoblin(t)

	state := f.cmd.State()
	require.Len(t, state.Combatants, 1)
	assert.Equal(t, id, state.Combatants[0].ID)
	assert.Equal(t, 7, state.Combatants[0].CurrentHP)
}

func TestAddCombatant_Errors(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/encounter/combatants", map[string]string{"statblock_id": "dragon"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := f.do(t, http.MethodPost, "/api/encounter/combatants", map[string]string{"persistent_character_id": "nobody"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, env.Success)

	w, _ = f.do(t, http.MethodPost, "/api/encounter/combatants", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunCommand_NextStartsEncounter(t *testing.T) {
	f := newFixture(t)
	f.addGoblin(t)

	w, env := f.do(t, http.MethodPost, "/api/encounter/commands/n", nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	var out struct {
		Command string
		Changed bool
		State   encounter.State
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "next", out.Command)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, out.State.RoundCounter)
	assert.NotEmpty(t, out.State.ActiveCombatantID)
}

func TestRunCommand_UnknownIs404(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodPost, "/api/encounter/commands/explode", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, env.Error, "unknown command")
}

func TestRunCommand_DestructiveRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	f.addGoblin(t)

	w, env := f.do(t, http.MethodPost, "/api/encounter/commands/clear", nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Contains(t, env.Error, "confirm=true")
	assert.Len(t, f.cmd.State().Combatants, 1)

	w, env = f.do(t, http.MethodPost, "/api/encounter/commands/clear?confirm=true", nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Empty(t, f.cmd.State().Combatants)
}

func TestCombatantEndpoints(t *testing.T) {
	f := newFixture(t)
	id := f.addGoblin(t)
	base := "/api/encounter/combatants/" + id

	w, _ := f.do(t, http.MethodPost, base+"/damage", map[string]int{"amount": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, f.cmd.State().Combatants[0].CurrentHP)

	w, _ = f.do(t, http.MethodPost, base+"/heal", map[string]int{"amount": 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, f.cmd.State().Combatants[0].CurrentHP)

	w, _ = f.do(t, http.MethodPost, base+"/damage", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPatch, base, map[string]any{"alias": "Snaggletooth", "hidden": true})
	require.Equal(t, http.StatusOK, w.Code)
	cs := f.cmd.State().Combatants[0]
	assert.Equal(t, "Snaggletooth", cs.Alias)
	assert.True(t, cs.Hidden)

	w, _ = f.do(t, http.MethodPost, base+"/tags", encounter.Tag{Text: "prone"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.cmd.State().Combatants[0].Tags, 1)

	w, _ = f.do(t, http.MethodDelete, base+"/tags/prone", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.cmd.State().Combatants[0].Tags)

	w, _ = f.do(t, http.MethodPost, "/api/encounter/combatants/missing/damage", map[string]int{"amount": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.cmd.State().Combatants)
}

func TestCharacters_CreateAndAdd(t *testing.T) {
	f := newFixture(t)
	sb := statblock.Default()
	sb.Name = "Aria"
	sb.HP.Value = 30
	sb.Player = statblock.PlayerTag

	w, env := f.do(t, http.MethodPost, "/api/characters", sb)
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var pc persistent.Character
	require.NoError(t, json.Unmarshal(env.Data, &pc))
	require.NotEmpty(t, pc.ID)

	w, _ = f.do(t, http.MethodPost, "/api/encounter/combatants", map[string]string{"persistent_character_id": pc.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/characters/"+pc.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodDelete, "/api/characters/"+pc.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/characters/"+pc.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSavedEncounters_SaveAndLoad(t *testing.T) {
	f := newFixture(t)
	f.addGoblin(t)

	w, env := f.do(t, http.MethodPost, "/api/saved-encounters", map[string]string{"name": "ambush"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)

	w, _ = f.do(t, http.MethodPost, "/api/encounter/commands/clear?confirm=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, f.cmd.State().Combatants)

	w, env = f.do(t, http.MethodPost, "/api/saved-encounters/ambush/load", nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Len(t, f.cmd.State().Combatants, 1)

	w, _ = f.do(t, http.MethodPost, "/api/saved-encounters/nope/load", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = f.do(t, http.MethodGet, "/api/saved-encounters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "ambush")
}

func TestSavedEncounters_LoadSkipsDeletedCharacter(t *testing.T) {
	f := newFixture(t)
	f.addGoblin(t)
	sb := statblock.Default()
	sb.Name = "Aria"
	sb.Player = statblock.PlayerTag
	w, env := f.do(t, http.MethodPost, "/api/characters", sb)
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var pc persistent.Character
	require.NoError(t, json.Unmarshal(env.Data, &pc))
	w, _ = f.do(t, http.MethodPost, "/api/encounter/combatants", map[string]string{"persistent_character_id": pc.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/saved-encounters", map[string]string{"name": "party"})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/encounter/commands/clear?confirm=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/characters/"+pc.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = f.do(t, http.MethodPost, "/api/saved-encounters/party/load", nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.True(t, env.Success)
	assert.Contains(t, env.Warning, pc.ID)
	combatants := f.cmd.State().Combatants
	require.Len(t, combatants, 1)
	assert.Equal(t, "Goblin", combatants[0].StatBlock.Name)
}

func TestLibrarySearch(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodGet, "/api/library/statblocks?q=gob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var blocks []statblock.StatBlock
	require.NoError(t, json.Unmarshal(env.Data, &blocks))
	require.Len(t, blocks, 1)
	assert.Equal(t, "goblin", blocks[0].ID)

	w, _ = f.do(t, http.MethodGet, "/api/library/statblocks/dragon", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayerViewSocket_ReceivesSnapshotAndEvents(t *testing.T) {
	f := newFixture(t)
	f.addGoblin(t)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/player-view"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() commander.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev commander.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	snap := read()
	assert.Equal(t, commander.EventSnapshot, snap.Type)
	require.Len(t, snap.View.Combatants, 1)

	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, f.cmd.StartEncounter(context.Background()))

	ev := read()
	assert.Equal(t, commander.EventEncounterStarted, ev.Type)
	assert.Equal(t, encounter.StateActive, ev.View.State)
}
