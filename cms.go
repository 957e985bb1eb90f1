package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"inotherwords/internal/puzzleapi"
	"inotherwords/internal/types"
)

// requireSuperAdmin hides the content API from everyone but superadmins.
func (app *App) requireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := identityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		admin, err := app.API.IsSuperAdmin(ctx, puzzleapi.Caller{Token: id.Token})
		if err != nil {
			logWarnCtx(ctx, "Superadmin check failed for %s: %v", id.UserID, err)
		}
		if !admin {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Next()
	}
}

func (app *App) registerCMSRoutes(r *gin.Engine) {
	g := r.Group("/cms/api", app.requireSuperAdmin())
	g.GET("/puzzles", app.cmsListPuzzles)
	g.POST("/puzzles", app.cmsCreatePuzzle)
	g.GET("/puzzles/:id", app.cmsGetPuzzle)
	g.PUT("/puzzles/:id", app.cmsUpdatePuzzle)
	g.DELETE("/puzzles/:id", app.cmsSoftDeletePuzzle)
	g.DELETE("/puzzles/:id/hard", app.cmsHardDeletePuzzle)
	g.DELETE("/users/:id/attempts", app.cmsDeleteUserAttempts)
}

func adminCaller(c *gin.Context) puzzleapi.Caller {
	id, _ := identityFrom(c)
	return puzzleapi.Caller{Token: id.Token}
}

func (app *App) cmsListPuzzles(c *gin.Context) {
	puzzles, err := app.API.ListPuzzles(c.Request.Context(), adminCaller(c))
	if err != nil {
		cmsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": puzzles})
}

func (app *App) cmsGetPuzzle(c *gin.Context) {
	p, err := app.API.GetPuzzle(c.Request.Context(), adminCaller(c), c.Param("id"))
	if err != nil {
		cmsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

func (app *App) cmsCreatePuzzle(c *gin.Context) {
	var p types.Puzzle
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid puzzle: " + err.Error()})
		return
	}
	if p.Question == "" || p.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question and answer are required"})
		return
	}
	created, err := app.API.CreatePuzzle(c.Request.Context(), adminCaller(c), p)
	if err != nil {
		cmsError(c, err)
		return
	}
	logInfoCtx(c.Request.Context(), "Created puzzle %s", created.ID)
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (app *App) cmsUpdatePuzzle(c *gin.Context) {
	var p types.Puzzle
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid puzzle: " + err.Error()})
		return
	}
	p.ID = c.Param("id")
	updated, err := app.API.UpdatePuzzle(c.Request.Context(), adminCaller(c), p)
	if err != nil {
		cmsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (app *App) cmsSoftDeletePuzzle(c *gin.Context) {
	archived, err := app.API.SoftDeletePuzzle(c.Request.Context(), adminCaller(c), c.Param("id"))
	if err != nil {
		cmsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": archived})
}

func (app *App) cmsHardDeletePuzzle(c *gin.Context) {
	id := c.Param("id")
	if err := app.API.HardDeletePuzzle(c.Request.Context(), adminCaller(c), id); err != nil {
		cmsError(c, err)
		return
	}
	logInfoCtx(c.Request.Context(), "Hard-deleted puzzle %s", id)
	c.Status(http.StatusNoContent)
}

func (app *App) cmsDeleteUserAttempts(c *gin.Context) {
	userID := c.Param("id")
	if err := app.API.DeleteUserAttempts(c.Request.Context(), adminCaller(c), userID); err != nil {
		cmsError(c, err)
		return
	}
	logInfoCtx(c.Request.Context(), "Deleted attempts of user %s", userID)
	c.Status(http.StatusNoContent)
}

// cmsError passes API status codes through and reports anything else as a
// bad gateway.
func cmsError(c *gin.Context, err error) {
	var se *puzzleapi.StatusError
	if errors.As(err, &se) {
		c.JSON(se.StatusCode, gin.H{"error": http.StatusText(se.StatusCode)})
		return
	}
	logWarnCtx(c.Request.Context(), "Content API call failed: %v", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "content API unavailable"})
}
