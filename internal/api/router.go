package api

import (
	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chainledger/internal/api/handlers"
	"github.com/thanhnp/chainledger/internal/api/middleware"
	"github.com/thanhnp/chainledger/internal/node"
	"github.com/thanhnp/chainledger/internal/rpc"
	"github.com/thanhnp/chainledger/internal/sync"
)

// MaxBodyBytes bounds request bodies, which may carry a full block
const MaxBodyBytes = rpc.MaxBodyBytes

// Router wraps the Gin router with handlers
type Router struct {
	engine         *gin.Engine
	nodeHandler    *handlers.NodeHandler
	txHandler      *handlers.TxHandler
	blockHandler   *handlers.BlockHandler
	addressHandler *handlers.AddressHandler
	networkHandler *handlers.NetworkHandler
}

// NewRouter creates a new Router serving svc. syncer may be nil.
func NewRouter(svc *node.Service, syncer *sync.Syncer) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:         gin.New(),
		nodeHandler:    handlers.NewNodeHandler(svc, syncer),
		txHandler:      handlers.NewTxHandler(svc),
		blockHandler:   handlers.NewBlockHandler(svc),
		addressHandler: handlers.NewAddressHandler(svc),
		networkHandler: handlers.NewNetworkHandler(svc),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// setupMiddleware configures middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.CORS())
	r.engine.Use(middleware.LimitBody(MaxBodyBytes))
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.engine.Group(rpc.APIPrefix)
	{
		// Node state
		v1.GET("/node", r.nodeHandler.GetNode)
		v1.GET("/blockchain", r.nodeHandler.GetBlockchain)

		// Transactions
		v1.POST("/transaction", r.txHandler.Submit)
		v1.POST("/transaction/broadcast", r.txHandler.Broadcast)
		v1.GET("/transaction/:transactionId", r.txHandler.Get)

		// Blocks
		v1.POST("/mine", r.blockHandler.Mine)
		v1.POST("/receive-new-block", r.blockHandler.Receive)
		v1.GET("/block/:blockHash", r.blockHandler.GetByHash)
		v1.GET("/block/index/:index", r.blockHandler.GetByIndex)

		// Addresses
		v1.GET("/address/:address", r.addressHandler.Get)

		// Network
		v1.POST("/register-and-broadcast-node", r.networkHandler.RegisterAndBroadcast)
		v1.POST("/register-node", r.networkHandler.Register)
		v1.POST("/register-nodes-bulk", r.networkHandler.RegisterBulk)
		v1.POST("/consensus", r.networkHandler.Consensus)
	}
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
