package conversations

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

// MountRoutes mounts conversation routes on the given router.
// Called after store initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.GET("/conversations", func(c *gin.Context) {
		listConversations(c, store)
	})
	g.POST("/conversations", func(c *gin.Context) {
		createConversation(c, store)
	})
	g.GET("/conversations/:name", func(c *gin.Context) {
		getConversationsByName(c, store)
	})
	g.DELETE("/conversations/:name", func(c *gin.Context) {
		deleteConversationByName(c, store)
	})
	// The wildcard carries a conversation ID here, not a derived name: derived
	// names are not unique, so membership mutations must target one conversation.
	g.POST("/conversations/:name/participants", func(c *gin.Context) {
		addParticipants(c, store)
	})
}

func listConversations(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}
	page := queryInt(c, "page", 1)

	paged, err := store.ListConversations(c.Request.Context(), userID, page)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversations retrieved successfully", "data": paged})
}

func createConversation(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}
	var req struct {
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	participantIDs := make([]uuid.UUID, 0, len(req.Participants))
	for _, raw := range req.Participants {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid participant id %q", raw)})
			return
		}
		participantIDs = append(participantIDs, id)
	}

	conv, err := store.CreateConversation(c.Request.Context(), userID, participantIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Conversation created successfully", "data": conv})
}

func getConversationsByName(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	// Multi-match lookup: group conversations share one sentinel name, so a
	// single name can resolve to several conversations.
	views, err := store.GetConversationsByName(c.Request.Context(), userID, c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversations retrieved successfully", "data": views})
}

func deleteConversationByName(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}

	if err := store.DeleteConversationByName(c.Request.Context(), userID, c.Param("name")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func addParticipants(c *gin.Context, store registrystore.ChatStore) {
	userID, ok := requesterID(c)
	if !ok {
		return
	}
	convID, err := uuid.Parse(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "conversation not found"})
		return
	}
	var req struct {
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	participantIDs := make([]uuid.UUID, 0, len(req.Participants))
	for _, raw := range req.Participants {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid participant id %q", raw)})
			return
		}
		participantIDs = append(participantIDs, id)
	}

	conv, err := store.AddParticipants(c.Request.Context(), userID, convID, participantIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Participants added successfully", "data": conv})
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
		// IntegrityError and KeyNotFoundError land here: both are server-side
		// invariant failures and must not leak detail to the client.
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
