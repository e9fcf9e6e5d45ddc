package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/civiclab/agora/internal/handlers"
)

func RegisterPublicRoutes(rg *gin.RouterGroup, handler *handlers.VotingHandler) {
	{
		rg.GET("/polls", handler.GetPolls)
		rg.GET("/polls/:id", handler.GetPollByID)
		rg.GET("/polls/:id/results", handler.GetResults)
	}
}

func RegisterPrivateRoutes(rg *gin.RouterGroup, handler *handlers.VotingHandler) {
	{
		rg.POST("/polls", handler.CreatePoll)
		rg.POST("/polls/:id/ballots", handler.CastBallot)
		rg.POST("/polls/:id/extend", handler.ExtendPoll)
		rg.POST("/polls/:id/deactivate", handler.DeactivatePoll)

		rg.GET("/logs", handler.GetLogs)
	}
}
