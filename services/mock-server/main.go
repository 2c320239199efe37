package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stoik/contactsync/internal/mockapi"
)

var segmentNames = []string{"VIP Customers", "Regular Customers"}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	clientID := os.Getenv("MOCK_CLIENT_ID")
	if clientID == "" {
		clientID = "dev-client"
	}
	clientSecret := os.Getenv("MOCK_CLIENT_SECRET")
	if clientSecret == "" {
		clientSecret = "dev-secret"
	}

	server := mockapi.New(clientID, clientSecret)

	// Pre-create part of the catalog so the registry exercises both paths.
	for i, name := range segmentNames {
		server.SeedSegment(name, "seed-"+strconv.Itoa(i))
	}

	r := server.Router()

	// Admin endpoints for testing
	admin := r.Group("/admin")
	{
		admin.POST("/contacts/add", func(c *gin.Context) {
			handleAddContacts(c, server)
		})
		admin.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"contacts":       server.ContactCount(),
				"segments":       server.Segments(),
				"api_calls":      len(server.Calls()),
				"token_requests": server.TokenRequests(),
			})
		})
	}

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting mock marketing API on %s (client_id=%s)", addr, clientID)
	log.Fatal(http.ListenAndServe(addr, r))
}

// handleAddContacts seeds contacts that exist only on the marketing side,
// e.g. to exercise search-before-create.
func handleAddContacts(c *gin.Context, server *mockapi.Server) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Emails) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emails is required"})
		return
	}

	ids := make([]int64, 0, len(req.Emails))
	for _, email := range req.Emails {
		ids = append(ids, server.SeedContact(map[string]any{"email": email}))
	}

	c.JSON(http.StatusOK, gin.H{
		"added":   len(ids),
		"ids":     ids,
		"total":   server.ContactCount(),
		"message": fmt.Sprintf("Added %d contact(s). Total contacts: %d", len(ids), server.ContactCount()),
	})
}
