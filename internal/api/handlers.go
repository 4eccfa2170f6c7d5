package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/game/commander"
	"github.com/cory-johannsen/tracker/internal/game/encounter"
	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/savedencounter"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
	"github.com/cory-johannsen/tracker/internal/observability"
)

// Handler serves the tracker HTTP API.
type Handler struct {
	cmd        *commander.Commander
	library    *statblock.Library
	characters persistent.Store
	hub        *Hub
	logger     *zap.Logger
}

// NewHandler creates a Handler.
//
// Precondition: cmd, characters, hub and logger must be non-nil. A nil
// library serves no stat blocks.
func NewHandler(cmd *commander.Commander, library *statblock.Library, characters persistent.Store, hub *Hub, logger *zap.Logger) *Handler {
	if library == nil {
		library, _ = statblock.NewLibrary(nil)
	}
	return &Handler{
		cmd:        cmd,
		library:    library,
		characters: characters,
		hub:        hub,
		logger:     observability.Component(logger, "api"),
	}
}

// ErrConfirmationRequired is returned when a destructive command was issued
// without confirm=true.
var ErrConfirmationRequired = errors.New("confirmation required")

func statusFor(err error) int {
	switch {
	case errors.Is(err, commander.ErrUnknownCommand),
		errors.Is(err, commander.ErrUnknownCombatant),
		errors.Is(err, persistent.ErrNotFound),
		errors.Is(err, savedencounter.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, commander.ErrUnknownPersistentCharacter):
		return http.StatusUnprocessableEntity
	case errors.Is(err, persistent.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) health(c *gin.Context) {
	ok(c, gin.H{"status": "ok"})
}

func (h *Handler) getEncounter(c *gin.Context) {
	ok(c, h.cmd.State())
}

func (h *Handler) getPlayerView(c *gin.Context) {
	ok(c, h.cmd.PlayerView())
}

type commandResult struct {
	Command string          `json:"command"`
	Changed bool            `json:"changed"`
	State   encounter.State `json:"state"`
}

func (h *Handler) listCommands(c *gin.Context) {
	type commandInfo struct {
		Name        string   `json:"name"`
		Aliases     []string `json:"aliases,omitempty"`
		Hotkey      string   `json:"hotkey,omitempty"`
		Description string   `json:"description"`
		Destructive bool     `json:"destructive"`
	}
	cmds := h.cmd.Registry().Commands()
	out := make([]commandInfo, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, commandInfo{cmd.Name, cmd.Aliases, cmd.Hotkey, cmd.Description, cmd.Destructive})
	}
	ok(c, out)
}

func (h *Handler) runCommand(c *gin.Context) {
	name := c.Param("name")
	cmd, found := h.cmd.Registry().Resolve(name)
	if !found {
		fail(c, http.StatusNotFound, fmt.Errorf("%w: %q", commander.ErrUnknownCommand, name))
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	ctx, answer := withConfirmation(c.Request.Context(), confirmed)

	changed, err := h.cmd.Dispatch(ctx, cmd.Name)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	if answer.prompt != "" && !answer.confirmed {
		fail(c, http.StatusPreconditionRequired, fmt.Errorf("%w: %s (repeat with confirm=true)", ErrConfirmationRequired, answer.prompt))
		return
	}
	ok(c, commandResult{Command: cmd.Name, Changed: changed, State: h.cmd.State()})
}

func (h *Handler) loadEncounter(c *gin.Context) {
	var state encounter.State
	if err := c.ShouldBindJSON(&state); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	h.respondLoaded(c, h.cmd.LoadSavedEncounter(c.Request.Context(), state))
}

// respondLoaded replies with the loaded state. Skipped persistent references
// are a warning, not a failure.
func (h *Handler) respondLoaded(c *gin.Context, err error) {
	var skipped *commander.SkippedCombatantsError
	switch {
	case err == nil:
		ok(c, h.cmd.State())
	case errors.As(err, &skipped):
		h.logger.Warn("encounter loaded with skipped combatants",
			zap.String("encounter", skipped.Encounter),
			zap.Strings("persistent_character_ids", skipped.IDs),
		)
		okWithWarning(c, h.cmd.State(), skipped.Error())
	default:
		fail(c, statusFor(err), err)
	}
}

type addCombatantRequest struct {
	StatBlockID           string               `json:"statblock_id"`
	StatBlock             *statblock.StatBlock `json:"statblock"`
	PersistentCharacterID string               `json:"persistent_character_id"`
}

func (h *Handler) addCombatant(c *gin.Context) {
	var req addCombatantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	var (
		id  string
		err error
	)
	switch {
	case req.PersistentCharacterID != "":
		id, err = h.cmd.AddPersistentCharacter(ctx, req.PersistentCharacterID)
	case req.StatBlockID != "":
		sb, found := h.library.Get(req.StatBlockID)
		if !found {
			fail(c, http.StatusNotFound, fmt.Errorf("stat block %q not found", req.StatBlockID))
			return
		}
		id = h.cmd.AddStatBlock(ctx, sb)
	case req.StatBlock != nil:
		if verr := req.StatBlock.Validate(); verr != nil {
			fail(c, http.StatusBadRequest, verr)
			return
		}
		id = h.cmd.AddStatBlock(ctx, *req.StatBlock)
	default:
		fail(c, http.StatusBadRequest, errors.New("one of statblock_id, statblock or persistent_character_id is required"))
		return
	}
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	created(c, gin.H{"id": id})
}

func (h *Handler) removeCombatant(c *gin.Context) {
	id := c.Param("id")
	if !h.cmd.RemoveCombatant(c.Request.Context(), id) {
		fail(c, http.StatusNotFound, fmt.Errorf("%w: %q", commander.ErrUnknownCombatant, id))
		return
	}
	ok(c, h.cmd.State())
}

type amountRequest struct {
	Amount *int `json:"amount" binding:"required"`
}

// amountHandler binds {"amount": n} and applies fn to the path combatant.
func (h *Handler) amountHandler(fn func(ctx context.Context, id string, amount int) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req amountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		if err := fn(c.Request.Context(), c.Param("id"), *req.Amount); err != nil {
			fail(c, statusFor(err), err)
			return
		}
		ok(c, h.cmd.State())
	}
}

type updateCombatantRequest struct {
	Alias  *string `json:"alias"`
	Hidden *bool   `json:"hidden"`
}

func (h *Handler) updateCombatant(c *gin.Context) {
	var req updateCombatantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ctx, id := c.Request.Context(), c.Param("id")
	if req.Alias != nil {
		if err := h.cmd.SetAlias(ctx, id, *req.Alias); err != nil {
			fail(c, statusFor(err), err)
			return
		}
	}
	if req.Hidden != nil {
		if err := h.cmd.SetHidden(ctx, id, *req.Hidden); err != nil {
			fail(c, statusFor(err), err)
			return
		}
	}
	ok(c, h.cmd.State())
}

func (h *Handler) addTag(c *gin.Context) {
	var tag encounter.Tag
	if err := c.ShouldBindJSON(&tag); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if tag.Text == "" {
		fail(c, http.StatusBadRequest, errors.New("tag text is required"))
		return
	}
	if err := h.cmd.AddTag(c.Request.Context(), c.Param("id"), tag); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, h.cmd.State())
}

func (h *Handler) removeTag(c *gin.Context) {
	if err := h.cmd.RemoveTag(c.Request.Context(), c.Param("id"), c.Param("text")); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, h.cmd.State())
}

func (h *Handler) searchStatBlocks(c *gin.Context) {
	ok(c, h.library.Search(c.Query("q")))
}

func (h *Handler) getStatBlock(c *gin.Context) {
	sb, found := h.library.Get(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, fmt.Errorf("stat block %q not found", c.Param("id")))
		return
	}
	ok(c, sb)
}

func (h *Handler) listCharacters(c *gin.Context) {
	chars, err := h.characters.List(c.Request.Context())
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, chars)
}

func (h *Handler) getCharacter(c *gin.Context) {
	pc, err := h.characters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, pc)
}

func (h *Handler) createCharacter(c *gin.Context) {
	var sb statblock.StatBlock
	if err := c.ShouldBindJSON(&sb); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := sb.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	pc := persistent.Initialize(sb)
	if err := h.characters.AddNewPersistentCharacter(c.Request.Context(), pc); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	created(c, pc)
}

func (h *Handler) deleteCharacter(c *gin.Context) {
	if err := h.characters.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, gin.H{"id": c.Param("id")})
}

func (h *Handler) listSavedEncounters(c *gin.Context) {
	entries, err := h.cmd.ListSavedEncounters(c.Request.Context())
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, entries)
}

type saveEncounterRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) saveEncounter(c *gin.Context) {
	var req saveEncounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := savedencounter.ValidateName(req.Name); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := h.cmd.SaveEncounter(c.Request.Context(), req.Name); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	created(c, gin.H{"name": req.Name})
}

func (h *Handler) loadSavedEncounter(c *gin.Context) {
	h.respondLoaded(c, h.cmd.LoadSavedEncounterByName(c.Request.Context(), c.Param("name")))
}

func (h *Handler) playerViewSocket(c *gin.Context) {
	initial := commander.Event{Type: commander.EventSnapshot, View: h.cmd.PlayerView()}
	if err := h.hub.Serve(c.Writer, c.Request, &initial); err != nil {
		h.logger.Debug("player view socket", zap.Error(err))
	}
}
