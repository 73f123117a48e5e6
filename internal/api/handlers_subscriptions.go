package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/subscription"
)

// activeOnDashboard is how many active subscriptions the dashboard lists.
const activeOnDashboard = 5

func (s *Server) listSubscriptions(c *gin.Context) {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	subs, err := s.subs.List(c.Request.Context(), getUserID(c), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": toSubscriptionDTOs(subs, s.today())})
}

func (s *Server) getSubscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sub, err := s.subs.Get(c.Request.Context(), getUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": toSubscriptionDTO(sub, s.today())})
}

func (s *Server) addSubscription(c *gin.Context) {
	var body addSubscriptionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if body.CardID <= 0 {
		badRequest(c, "card_id is required")
		return
	}
	required := []struct{ field, value string }{
		{"service_name", body.ServiceName},
		{"category", body.Category},
		{"billing_cycle", body.BillingCycle},
		{"next_billing_date", body.NextBillingDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			badRequest(c, r.field+" is required")
			return
		}
	}

	in := subscription.NewInput{
		CardID:       body.CardID,
		ServiceName:  body.ServiceName,
		Category:     body.Category,
		AmountUSD:    body.AmountUSD,
		BillingCycle: strings.ToLower(strings.TrimSpace(body.BillingCycle)),
	}
	var err error
	if in.NextBillingDate, err = parseDate(body.NextBillingDate); err != nil {
		badRequest(c, "next_billing_date must be YYYY-MM-DD")
		return
	}
	if strings.TrimSpace(body.TrialEndDate) != "" {
		end, err := parseDate(body.TrialEndDate)
		if err != nil {
			badRequest(c, "trial_end_date must be YYYY-MM-DD")
			return
		}
		in.TrialEndDate = &end
	}

	sub, err := s.subs.Add(c.Request.Context(), getUserID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "Subscription added successfully",
		"subscription": toSubscriptionDTO(sub, s.today()),
	})
}

func (s *Server) updateSubscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body updateSubscriptionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json")
		return
	}

	in := subscription.UpdateInput{
		ServiceName:  body.ServiceName,
		Category:     body.Category,
		AmountUSD:    body.AmountUSD,
		BillingCycle: body.BillingCycle,
		Status:       body.Status,
	}
	if body.NextBillingDate != nil {
		next, err := parseDate(*body.NextBillingDate)
		if err != nil {
			badRequest(c, "next_billing_date must be YYYY-MM-DD")
			return
		}
		in.NextBillingDate = &next
	}

	sub, err := s.subs.Update(c.Request.Context(), getUserID(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Subscription updated successfully",
		"subscription": toSubscriptionDTO(sub, s.today()),
	})
}

func (s *Server) cancelSubscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.subs.Cancel(c.Request.Context(), getUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription cancelled successfully"})
}

func (s *Server) incrementSubscriptionUsage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	count, err := s.subs.IncrementUsage(c.Request.Context(), getUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Usage recorded", "usage_count": count})
}

func (s *Server) getSubscriptionSummary(c *gin.Context) {
	summary, err := s.subs.Summary(c.Request.Context(), getUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": toSubscriptionSummaryDTO(summary, s.today())})
}

func (s *Server) getDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := getUserID(c)

	dash, err := s.reports.Dashboard(ctx, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}
	active, err := s.subs.List(ctx, ownerID, models.SubscriptionStatusActive)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(active) > activeOnDashboard {
		active = active[:activeOnDashboard]
	}
	subSummary, err := s.subs.Summary(ctx, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	today := s.today()
	cards := make([]cardDTO, 0, len(dash.Cards))
	for i := range dash.Cards {
		cards = append(cards, toCardDTO(&dash.Cards[i]))
	}
	txns := make([]transactionDTO, 0, len(dash.RecentTransactions))
	for i := range dash.RecentTransactions {
		txns = append(txns, toTransactionDTO(&dash.RecentTransactions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": dashboardDTO{
		Cards:               cards,
		RecentTransactions:  txns,
		SpendingSummary:     toSummaryDTO(dash.MonthToDate),
		ActiveSubscriptions: toSubscriptionDTOs(active, today),
		SubscriptionSummary: toSubscriptionSummaryDTO(subSummary, today),
		Totals:              totalsDTO(dash.Totals),
	}})
}
