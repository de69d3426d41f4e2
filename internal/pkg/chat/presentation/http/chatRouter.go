package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/apaluca/CipherTalk/internal/auth"
	queueport "github.com/apaluca/CipherTalk/internal/infrastructure/queue/port"
	"github.com/apaluca/CipherTalk/internal/infrastructure/realtime"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/broker"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/presentation/controller"
)

// Deps bundles the shared infrastructure handed down to the HTTP layer.
type Deps struct {
	Pool     *pgxpool.Pool
	Queue    queueport.Client
	Registry *realtime.Registry
	Broker   *broker.Broker
	Relay    *broker.Relay
	Presence *broker.Presence
	Authn    *auth.Authenticator
	Log      zerolog.Logger
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router
// group. It constructs per-endpoint controllers and binds them directly to
// routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	registerCtl := controller.NewRegisterController(d.Pool, d.Authn)
	loginCtl := controller.NewLoginController(d.Pool, d.Authn)
	usersCtl := controller.NewListUsersController(d.Pool, d.Presence)
	createConvCtl := controller.NewCreateConversationController(d.Pool)
	listConvCtl := controller.NewListConversationsController(d.Pool)
	getMsgCtl := controller.NewGetMessagesController(d.Pool)
	sendMsgCtl := controller.NewSendMessageController(d.Queue)
	socketCtl := controller.NewChatSocketController(d.Registry, d.Broker, d.Relay, d.Presence, d.Log)

	// POST /api/v1/auth/register -> create an account
	g.POST("/auth/register", registerCtl.Handle())

	// POST /api/v1/auth/login -> exchange credentials for a token
	g.POST("/auth/login", loginCtl.Handle())

	authed := g.Group("", auth.Middleware(d.Authn))

	// GET /api/v1/users -> everyone else, with presence flags
	authed.GET("/users", usersCtl.Handle())

	// POST /api/v1/conversations -> open the DM with another user
	authed.POST("/conversations", createConvCtl.Handle())

	// GET /api/v1/conversations -> caller's conversations, latest first
	authed.GET("/conversations", listConvCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages -> history
	authed.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/messages -> queued send
	authed.POST("/conversations/:conversationId/messages", sendMsgCtl.Handle())

	// GET /api/v1/ws -> websocket endpoint for realtime chat
	authed.GET("/ws", socketCtl.Handle())
}
