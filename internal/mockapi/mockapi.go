// Package mockapi is an in-memory stand-in for the marketing-automation API:
// OAuth2 client-credentials tokens, segments, contacts and segment membership.
// It enforces unique contact emails the way the real system does, and records
// every API call so tests can count remote traffic.
package mockapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stoik/contactsync/internal/models"
)

// Call is one recorded API request.
type Call struct {
	Method string
	Path   string
}

type failure struct {
	method string
	prefix string
	status int
	body   string
	times  int
}

// Server holds the mocked marketing system state.
type Server struct {
	clientID     string
	clientSecret string
	tokenTTL     time.Duration

	mu            sync.Mutex
	tokens        map[string]time.Time
	tokenRequests int
	nextSegmentID int64
	nextContactID int64
	segments      map[int64]models.Segment
	contacts      map[int64]map[string]any
	members       map[int64]map[int64]bool
	calls         []Call
	failures      []*failure
}

// New creates an empty mock accepting the given client credentials.
func New(clientID, clientSecret string) *Server {
	return &Server{
		clientID:      clientID,
		clientSecret:  clientSecret,
		tokenTTL:      time.Hour,
		tokens:        make(map[string]time.Time),
		nextSegmentID: 1,
		nextContactID: 1,
		segments:      make(map[int64]models.Segment),
		contacts:      make(map[int64]map[string]any),
		members:       make(map[int64]map[int64]bool),
	}
}

// SetTokenTTL changes the expires_in value of tokens issued from now on.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// RevokeTokens makes every issued token answer 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]time.Time)
}

// TokenRequests returns how many tokens were issued.
func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests
}

// FailNext makes the next n API requests whose method matches and whose path
// starts with prefix answer status with body.
func (s *Server) FailNext(method, prefix string, n, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, prefix: prefix, status: status, body: body, times: n})
}

// Calls returns the recorded API requests, token requests excluded.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountCalls counts recorded requests with method and a path prefix.
func (s *Server) CountCalls(method, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetCalls clears the recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// SeedSegment inserts a segment and returns its id.
func (s *Server) SeedSegment(name, alias string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSegment(name, alias).ID
}

// SeedContact inserts a contact bypassing the unique email check.
func (s *Server) SeedContact(fields map[string]any) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextContactID
	s.nextContactID++
	s.contacts[id] = copyFields(fields)
	return id
}

// Contact returns a copy of a stored contact's fields.
func (s *Server) Contact(id int64) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, false
	}
	return copyFields(c), true
}

// ContactCount returns the number of stored contacts.
func (s *Server) ContactCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts)
}

// Segments returns every segment ordered by id.
func (s *Server) Segments() []models.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Segment, 0, len(s.segments))
	for _, seg := range s.segments {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SegmentID returns the id of the segment with name.
func (s *Server) SegmentID(name string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.segments {
		if seg.Name == name {
			return seg.ID, true
		}
	}
	return 0, false
}

// IsMember reports whether contactID belongs to segmentID.
func (s *Server) IsMember(segmentID, contactID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[segmentID][contactID]
}

// Router returns the gin engine serving the mock API.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/oauth/v2/token", s.handleToken)

	api := r.Group("/api", s.record, s.authenticate, s.injectFailures)
	{
		api.GET("/segments", s.handleListSegments)
		api.POST("/segments/new", s.handleCreateSegment)
		api.POST("/segments/:segmentId/contact/:contactId/:op", s.handleMembership)
		api.GET("/contacts", s.handleSearchContacts)
		api.POST("/contacts/new", s.handleCreateContact)
		api.PATCH("/contacts/:contactId/edit", s.handleEditContact)
	}

	return r
}

func (s *Server) handleToken(c *gin.Context) {
	if c.PostForm("grant_type") != "client_credentials" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type"})
		return
	}
	if c.PostForm("client_id") != s.clientID || c.PostForm("client_secret") != s.clientSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}

	s.mu.Lock()
	token := uuid.NewString()
	ttl := s.tokenTTL
	s.tokens[token] = time.Now().Add(ttl)
	s.tokenRequests++
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(ttl.Seconds()),
	})
}

func (s *Server) authenticate(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	s.mu.Lock()
	expires, ok := s.tokens[token]
	s.mu.Unlock()

	if !ok || time.Now().After(expires) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apiError(http.StatusUnauthorized, "The access token provided is invalid."))
		return
	}
	c.Next()
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: c.Request.Method, Path: strings.TrimPrefix(c.Request.URL.Path, "/api")})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) injectFailures(c *gin.Context) {
	path := strings.TrimPrefix(c.Request.URL.Path, "/api")

	s.mu.Lock()
	var hit *failure
	for _, f := range s.failures {
		if f.times > 0 && f.method == c.Request.Method && strings.HasPrefix(path, f.prefix) {
			f.times--
			hit = f
			break
		}
	}
	s.mu.Unlock()

	if hit != nil {
		c.Data(hit.status, "application/json", []byte(hit.body))
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) handleListSegments(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.segments) == 0 {
		c.JSON(http.StatusOK, gin.H{"total": 0, "lists": []any{}})
		return
	}
	lists := make(map[string]models.Segment, len(s.segments))
	for id, seg := range s.segments {
		lists[strconv.FormatInt(id, 10)] = seg
	}
	c.JSON(http.StatusOK, gin.H{"total": len(lists), "lists": lists})
}

func (s *Server) handleCreateSegment(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Alias string `json:"alias"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, apiError(http.StatusBadRequest, "name: A value is required."))
		return
	}

	s.mu.Lock()
	seg := s.addSegment(req.Name, req.Alias)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"list": seg})
}

func (s *Server) handleMembership(c *gin.Context) {
	segmentID, err1 := strconv.ParseInt(c.Param("segmentId"), 10, 64)
	contactID, err2 := strconv.ParseInt(c.Param("contactId"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, apiError(http.StatusBadRequest, "invalid id"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.segments[segmentID]; !ok {
		c.JSON(http.StatusNotFound, apiError(http.StatusNotFound, "Item was not found."))
		return
	}
	if _, ok := s.contacts[contactID]; !ok {
		c.JSON(http.StatusNotFound, apiError(http.StatusNotFound, "Item was not found."))
		return
	}

	switch c.Param("op") {
	case "add":
		if s.members[segmentID] == nil {
			s.members[segmentID] = make(map[int64]bool)
		}
		s.members[segmentID][contactID] = true
	case "remove":
		delete(s.members[segmentID], contactID)
	default:
		c.JSON(http.StatusNotFound, apiError(http.StatusNotFound, "unknown operation"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": 1})
}

func (s *Server) handleSearchContacts(c *gin.Context) {
	search := c.Query("search")
	email, ok := strings.CutPrefix(search, "email:")
	if !ok {
		c.JSON(http.StatusBadRequest, apiError(http.StatusBadRequest, "only email: searches are supported"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := make(map[string]gin.H)
	for id, fields := range s.contacts {
		if e, _ := fields["email"].(string); strings.EqualFold(e, email) {
			found[strconv.FormatInt(id, 10)] = gin.H{"id": id, "fields": gin.H{"all": fields}}
		}
	}
	if len(found) == 0 {
		c.JSON(http.StatusOK, gin.H{"total": 0, "contacts": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(found), "contacts": found})
}

func (s *Server) handleCreateContact(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, apiError(http.StatusBadRequest, "invalid body"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner := s.emailOwner(fields, 0); owner != 0 {
		c.JSON(http.StatusUnprocessableEntity, duplicateEmail())
		return
	}

	id := s.nextContactID
	s.nextContactID++
	s.contacts[id] = copyFields(fields)
	c.JSON(http.StatusCreated, gin.H{"contact": gin.H{"id": id, "fields": gin.H{"all": fields}}})
}

func (s *Server) handleEditContact(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("contactId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError(http.StatusBadRequest, "invalid id"))
		return
	}

	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, apiError(http.StatusBadRequest, "invalid body"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.contacts[id]
	if !ok {
		c.JSON(http.StatusNotFound, apiError(http.StatusNotFound, "Item was not found."))
		return
	}
	current, _ := existing["email"].(string)
	next, _ := fields["email"].(string)
	if !strings.EqualFold(current, next) {
		if owner := s.emailOwner(fields, id); owner != 0 {
			c.JSON(http.StatusUnprocessableEntity, duplicateEmail())
			return
		}
	}

	for k, v := range fields {
		existing[k] = v
	}
	c.JSON(http.StatusOK, gin.H{"contact": gin.H{"id": id, "fields": gin.H{"all": existing}}})
}

// must be called with mu held
func (s *Server) addSegment(name, alias string) models.Segment {
	seg := models.Segment{ID: s.nextSegmentID, Name: name, Alias: alias}
	s.nextSegmentID++
	s.segments[seg.ID] = seg
	return seg
}

// emailOwner returns another contact already holding the email in fields.
// must be called with mu held
func (s *Server) emailOwner(fields map[string]any, self int64) int64 {
	email, _ := fields["email"].(string)
	if email == "" {
		return 0
	}
	for id, other := range s.contacts {
		if id == self {
			continue
		}
		if e, _ := other["email"].(string); strings.EqualFold(e, email) {
			return id
		}
	}
	return 0
}

func apiError(code int, message string) gin.H {
	return gin.H{"errors": []gin.H{{"code": code, "message": message}}}
}

func duplicateEmail() gin.H {
	return gin.H{"errors": []gin.H{{
		"code":    http.StatusUnprocessableEntity,
		"message": "email: This value is already used (unique field).",
		"details": gin.H{"email": []string{"This value is already used."}},
	}}}
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// String renders a call for test failure messages.
func (c Call) String() string {
	return fmt.Sprintf("%s %s", c.Method, c.Path)
}
