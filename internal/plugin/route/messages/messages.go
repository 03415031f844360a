package messages

import (
	"errors"
	"fmt"
	"net/http"

	registryroute "github.com/chirino/chat-service/internal/registry/route"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/chirino/chat-service/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 100,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts message routes on the given router.
// Called after store initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.GET("/messages", func(c *gin.Context) {
		listMessages(c, store)
	})
	g.POST("/messages", func(c *gin.Context) {
		sendMessage(c, store)
	})
	g.GET("/messages/:id", func(c *gin.Context) {
		getMessage(c, store)
	})
	g.PATCH("/messages/:id", func(c *gin.Context) {
		updateMessage(c, store)
	})
	// Delete takes a conversation name, not a message ID, and removes the whole
	// conversation the name resolves to.
	g.DELETE("/messages/:id", func(c *gin.Context) {
		deleteByConversationName(c, store)
	})
}

func listMessages(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}
	page := queryInt(c, "page", 1)

	paged, err := store.ListMessages(c.Request.Context(), userID, page)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages retrieved successfully", "data": paged})
}

func sendMessage(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}
	var req struct {
		Conversation string `json:"conversation"`
		Content      string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	convID, err := uuid.Parse(req.Conversation)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "conversation not found"})
		return
	}

	msg, err := store.SendMessage(c.Request.Context(), userID, convID, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Message sent successfully", "data": msg})
}

func getMessage(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "message not found"})
		return
	}

	msg, err := store.GetMessage(c.Request.Context(), userID, msgID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message retrieved successfully", "data": msg})
}

func updateMessage(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "message not found"})
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	msg, err := store.UpdateMessage(c.Request.Context(), userID, msgID, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message updated successfully", "data": msg})
}

func deleteByConversationName(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	// The wildcard is a conversation name here; the whole conversation goes,
	// messages included.
	if err := store.DeleteConversationByName(c.Request.Context(), userID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted successfully", "data": nil})
}

// --- Helpers ---

func requesterID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(security.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "authenticated principal is not a known user"})
		return uuid.Nil, false
	}
	return id, true
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var forbidden *registrystore.ForbiddenError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return def
	}
	return i
}
