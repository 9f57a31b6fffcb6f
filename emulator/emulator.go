// Package emulator is an in-process stand-in for the Google OAuth2 token
// endpoint and the FCM v1 send endpoint. It verifies real signed assertions
// against the service account's own key and records accepted messages, so
// integration tests and local development need no Google project at all.
package emulator

import (
	"crypto/rsa"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/therasuldev/fcm-notification/fcm"
)

const (
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

	tokenLifetime = time.Hour
)

// Message is one notification accepted by the emulated send endpoint.
type Message struct {
	Name       string            `json:"name"`
	Token      string            `json:"token"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Server emulates the token and send endpoints for a single service
// account. Methods are safe for concurrent use.
type Server struct {
	account   *fcm.ServiceAccount
	publicKey *rsa.PublicKey

	mu       sync.Mutex
	tokens   map[string]time.Time // access token -> expiry
	messages []Message
}

// New builds a Server that accepts assertions signed by the given account's
// private key.
func New(account *fcm.ServiceAccount) (*Server, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("invalid service account private key: %w", err)
	}
	return &Server{
		account:   account,
		publicKey: &key.PublicKey,
		tokens:    make(map[string]time.Time),
	}, nil
}

// Router builds the gin engine serving the emulated endpoints.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/token", s.tokenHandler)
	// gin cannot register "messages:send" as one literal segment; the
	// trailing ":send" becomes a route parameter and is checked in the
	// handler.
	router.POST("/v1/projects/:project/messages:send", s.sendHandler)

	// Inspection routes for tests and local tooling
	router.GET("/emulator/messages", s.listMessagesHandler)
	router.DELETE("/emulator/messages", s.clearMessagesHandler)

	return router
}

// Messages returns a copy of every message accepted so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Reset drops all recorded messages and issued tokens.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.tokens = make(map[string]time.Time)
}

// tokenHandler implements the OAuth2 JWT bearer exchange.
func (s *Server) tokenHandler(c *gin.Context) {
	if c.PostForm("grant_type") != jwtBearerGrant {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Only the JWT bearer grant is supported",
		})
		return
	}

	assertion := c.PostForm("assertion")
	if assertion == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing assertion",
		})
		return
	}

	if err := s.verifyAssertion(assertion); err != nil {
		log.Printf("[Emulator] Rejected assertion: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_grant",
			"error_description": err.Error(),
		})
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = time.Now().Add(tokenLifetime)
	s.mu.Unlock()

	log.Printf("[Emulator] Issued access token for %s", s.account.ClientEmail)
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(tokenLifetime.Seconds()),
	})
}

// verifyAssertion checks the signature, issuer and scope of a bearer
// assertion. Expiry is enforced by the JWT parser.
func (s *Server) verifyAssertion(assertion string) error {
	token, err := jwt.Parse(assertion, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("assertion does not verify: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("unexpected claims type")
	}
	if iss, _ := claims["iss"].(string); iss != s.account.ClientEmail {
		return fmt.Errorf("unknown issuer %q", iss)
	}
	if scope, _ := claims["scope"].(string); !strings.Contains(scope, messagingScope) {
		return fmt.Errorf("missing messaging scope")
	}
	return nil
}

// sendHandler implements POST /v1/projects/<project>/messages:send.
func (s *Server) sendHandler(c *gin.Context) {
	// The route parameter swallows the ":send" method suffix.
	if c.Param("send") != ":send" {
		fcmError(c, http.StatusNotFound, "NOT_FOUND", "Requested entity was not found.")
		return
	}

	if !s.authorized(c.GetHeader("Authorization")) {
		fcmError(c, http.StatusUnauthorized, "UNAUTHENTICATED",
			"Request had invalid authentication credentials.")
		return
	}

	project := c.Param("project")
	if project != s.account.ProjectID {
		fcmError(c, http.StatusForbidden, "PERMISSION_DENIED",
			fmt.Sprintf("Permission 'cloudmessaging.messages.create' denied on resource 'projects/%s' (or it may not exist).", project))
		return
	}

	var req struct {
		Message struct {
			Token        string `json:"token"`
			Notification struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			} `json:"notification"`
			Data map[string]string `json:"data"`
		} `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fcmError(c, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid JSON payload received.")
		return
	}
	if req.Message.Token == "" {
		fcmError(c, http.StatusBadRequest, "INVALID_ARGUMENT",
			"The registration token is not a valid FCM registration token")
		return
	}

	name := fmt.Sprintf("projects/%s/messages/%s", project, uuid.NewString())
	msg := Message{
		Name:       name,
		Token:      req.Message.Token,
		Title:      req.Message.Notification.Title,
		Body:       req.Message.Notification.Body,
		Data:       req.Message.Data,
		ReceivedAt: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	log.Printf("[Emulator] Accepted message for token %s: %s", msg.Token, name)
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// authorized reports whether the Authorization header carries a bearer
// token the emulator issued and that has not expired.
func (s *Server) authorized(authHeader string) bool {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}

	s.mu.Lock()
	expiry, ok := s.tokens[parts[1]]
	s.mu.Unlock()

	return ok && time.Now().Before(expiry)
}

func (s *Server) listMessagesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": s.Messages()})
}

func (s *Server) clearMessagesHandler(c *gin.Context) {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Messages cleared"})
}

// fcmError replies with the v1 API's error envelope.
func fcmError(c *gin.Context, code int, status, message string) {
	c.JSON(code, gin.H{"error": gin.H{
		"code":    code,
		"message": message,
		"status":  status,
	}})
}
