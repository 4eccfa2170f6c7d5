// Package api exposes the encounter commander over HTTP and pushes the player
// view to websocket clients.
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/observability"
)

// NewRouter builds the gin engine serving h.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), observability.RequestLogger(observability.Component(logger, "http")))

	r.GET("/healthz", h.health)
	r.GET("/ws/player-view", h.playerViewSocket)

	api := r.Group("/api")
	{
		enc := api.Group("/encounter")
		enc.GET("", h.getEncounter)
		enc.PUT("", h.loadEncounter)
		enc.GET("/player-view", h.getPlayerView)
		enc.GET("/commands", h.listCommands)
		enc.POST("/commands/:name", h.runCommand)

		enc.POST("/combatants", h.addCombatant)
		enc.PATCH("/combatants/:id", h.updateCombatant)
		enc.DELETE("/combatants/:id", h.removeCombatant)
		enc.POST("/combatants/:id/damage", h.amountHandler(h.cmd.DamageCombatant))
		enc.POST("/combatants/:id/heal", h.amountHandler(h.cmd.HealCombatant))
		enc.POST("/combatants/:id/temporary-hp", h.amountHandler(h.cmd.ApplyTemporaryHP))
		enc.POST("/combatants/:id/initiative", h.amountHandler(h.cmd.SetInitiative))
		enc.POST("/combatants/:id/tags", h.addTag)
		enc.DELETE("/combatants/:id/tags/:text", h.removeTag)

		lib := api.Group("/library")
		lib.GET("/statblocks", h.searchStatBlocks)
		lib.GET("/statblocks/:id", h.getStatBlock)

		chars := api.Group("/characters")
		chars.GET("", h.listCharacters)
		chars.POST("", h.createCharacter)
		chars.GET("/:id", h.getCharacter)
		chars.DELETE("/:id", h.deleteCharacter)

		saved := api.Group("/saved-encounters")
		saved.GET("", h.listSavedEncounters)
		saved.POST("", h.saveEncounter)
		saved.POST("/:name/load", h.loadSavedEncounter)
	}

	return r
}
