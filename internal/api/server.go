// Package api exposes the ledger over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/ledger"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/report"
	"gitlab.com/yelinaung/paywatch/internal/subscription"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Ledger is the card ledger used by the handlers.
type Ledger interface {
	AddCard(ctx context.Context, ownerID int64, in ledger.NewCardInput) (*models.Card, error)
	GetCard(ctx context.Context, cardID, ownerID int64) (*models.Card, error)
	ListCards(ctx context.Context, ownerID int64) ([]models.Card, error)
	UpdateCard(ctx context.Context, cardID, ownerID int64, in ledger.UpdateCardInput) (*models.Card, error)
	DeactivateCard(ctx context.Context, cardID, ownerID int64) error
	LoadBalance(ctx context.Context, cardID, ownerID int64, amount decimal.Decimal) (*ledger.LoadResult, error)
	GetLimitInfo(ctx context.Context, cardID, ownerID int64) (*ledger.LimitInfo, error)
	PostTransaction(ctx context.Context, in ledger.PostTransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID, ownerID int64) (bool, error)
	GetTransaction(ctx context.Context, transactionID, ownerID int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error)
}

// RateSource provides the current USD to NPR rate.
type RateSource interface {
	GetLatestRate(ctx context.Context) decimal.Decimal
}

// Reporter builds spending summaries.
type Reporter interface {
	Summary(ctx context.Context, ownerID int64, from, to time.Time) (*report.Summary, error)
	Dashboard(ctx context.Context, ownerID int64) (*report.Dashboard, error)
}

// Subscriptions manages the owner's recurring charges.
type Subscriptions interface {
	Add(ctx context.Context, ownerID int64, in subscription.NewInput) (*models.Subscription, error)
	List(ctx context.Context, ownerID int64, status string) ([]models.Subscription, error)
	Get(ctx context.Context, ownerID, subscriptionID int64) (*models.Subscription, error)
	Update(ctx context.Context, ownerID, subscriptionID int64, in subscription.UpdateInput) (*models.Subscription, error)
	Cancel(ctx context.Context, ownerID, subscriptionID int64) error
	IncrementUsage(ctx context.Context, ownerID, subscriptionID int64) (int, error)
	Summary(ctx context.Context, ownerID int64) (*subscription.Summary, error)
}

// AlertInbox is the owner-facing side of the alert service.
type AlertInbox interface {
	List(ctx context.Context, ownerID int64, unreadOnly bool) ([]models.Alert, error)
	MarkRead(ctx context.Context, ownerID, alertID int64) error
	MarkAllRead(ctx context.Context, ownerID int64) (int64, error)
	Delete(ctx context.Context, ownerID, alertID int64) error
	CountUnread(ctx context.Context, ownerID int64) (int, error)
}

// Config holds the HTTP layer settings.
type Config struct {
	JWTSecret   string
	FrontendURL string
	// Location decides what "today" is for transaction dates and renewal countdowns.
	Location *time.Location
	Now      func() time.Time
}

// Server holds the handler dependencies.
type Server struct {
	ledger  Ledger
	rates   RateSource
	reports Reporter
	alerts  AlertInbox
	subs    Subscriptions
	cfg     Config
}

// NewServer creates a Server.
func NewServer(cfg Config, l Ledger, rates RateSource, reports Reporter, alerts AlertInbox, subs Subscriptions) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{ledger: l, rates: rates, reports: reports, alerts: alerts, subs: subs, cfg: cfg}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(recovery(), requestID(), requestLogger(), cors(s.cfg.FrontendURL))

	r.GET("/healthz", health)
	r.GET("/api/health", health)
	r.GET("/api/exchange-rate", s.getExchangeRate)

	authed := r.Group("/api")
	authed.Use(userAuthMiddleware(s.cfg.JWTSecret))

	authed.GET("/cards", s.listCards)
	authed.POST("/cards", s.addCard)
	authed.GET("/dashboard", s.getDashboard)

	authed.GET("/cards/:id", s.getCard)
	authed.PUT("/cards/:id", s.updateCard)
	authed.DELETE("/cards/:id", s.deactivateCard)
	authed.POST("/cards/:id/load", s.loadBalance)
	authed.GET("/cards/:id/limits", s.getLimitInfo)

	authed.GET("/transactions", s.listTransactions)
	authed.POST("/transactions", s.postTransaction)
	authed.GET("/transactions/summary", s.getSummary)
	authed.GET("/transactions/summary/chart", s.getSummaryChart)
	authed.GET("/transactions/export", s.exportTransactions)
	authed.GET("/transactions/:id", s.getTransaction)
	authed.DELETE("/transactions/:id", s.deleteTransaction)

	authed.GET("/subscriptions", s.listSubscriptions)
	authed.POST("/subscriptions", s.addSubscription)
	authed.GET("/subscriptions/summary", s.getSubscriptionSummary)
	authed.GET("/subscriptions/:id", s.getSubscription)
	authed.PUT("/subscriptions/:id", s.updateSubscription)
	authed.POST("/subscriptions/:id/cancel", s.cancelSubscription)
	authed.POST("/subscriptions/:id/usage", s.incrementSubscriptionUsage)

	authed.GET("/alerts", s.listAlerts)
	authed.GET("/alerts/unread-count", s.countUnreadAlerts)
	authed.POST("/alerts/read-all", s.markAllAlertsRead)
	authed.POST("/alerts/:id/read", s.markAlertRead)
	authed.DELETE("/alerts/:id", s.deleteAlert)

	return r
}

// Handler returns the router wrapped with OpenTelemetry HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Router(), "paywatch.http")
}

func (s *Server) today() time.Time {
	now := s.cfg.Now().In(s.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "PayWatch API is running"})
}

func (s *Server) getExchangeRate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rate": s.rates.GetLatestRate(c.Request.Context())})
}
