package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/paywatch/internal/ledger"
)

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) listCards(c *gin.Context) {
	cards, err := s.ledger.ListCards(c.Request.Context(), getUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]cardDTO, 0, len(cards))
	for i := range cards {
		out = append(out, toCardDTO(&cards[i]))
	}
	c.JSON(http.StatusOK, gin.H{"cards": out})
}

func (s *Server) getCard(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	card, err := s.ledger.GetCard(c.Request.Context(), id, getUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": toCardDTO(card)})
}

func (s *Server) addCard(c *gin.Context) {
	var body addCardRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json")
		return
	}

	required := []struct{ field, value string }{
		{"card_name", body.Name},
		{"card_type", body.CardType},
		{"last_four_digits", body.LastFour},
		{"expiry_date", body.ExpiryDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			badRequest(c, r.field+" is required")
			return
		}
	}

	card, err := s.ledger.AddCard(c.Request.Context(), getUserID(c), ledger.NewCardInput{
		Name:           body.Name,
		CardType:       body.CardType,
		LastFour:       body.LastFour,
		IssuingBank:    body.IssuingBank,
		Color:          body.Color,
		ExpiryDate:     body.ExpiryDate,
		CreditLimit:    body.CreditLimit,
		InitialBalance: body.InitialBalance,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Card added successfully", "card": toCardDTO(card)})
}

func (s *Server) updateCard(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body updateCardRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json")
		return
	}

	card, err := s.ledger.UpdateCard(c.Request.Context(), id, getUserID(c), ledger.UpdateCardInput{
		Name:        body.Name,
		CardType:    body.CardType,
		LastFour:    body.LastFour,
		IssuingBank: body.IssuingBank,
		Color:       body.Color,
		ExpiryDate:  body.ExpiryDate,
		CreditLimit: body.CreditLimit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card updated successfully", "card": toCardDTO(card)})
}

func (s *Server) deactivateCard(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.ledger.DeactivateCard(c.Request.Context(), id, getUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted successfully"})
}

func (s *Server) loadBalance(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body loadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if !body.Amount.IsPositive() {
		badRequest(c, "Amount must be positive")
		return
	}

	ctx := c.Request.Context()
	ownerID := getUserID(c)
	result, err := s.ledger.LoadBalance(ctx, id, ownerID, body.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	data := gin.H{
		"success":                true,
		"new_balance":            result.NewBalance,
		"remaining_yearly_limit": result.RemainingYearlyLimit,
	}
	if card, err := s.ledger.GetCard(ctx, id, ownerID); err == nil {
		data["card"] = toCardDTO(card)
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully loaded $%s to your card!", body.Amount.StringFixed(2)),
		"data":    data,
	})
}

func (s *Server) getLimitInfo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	info, err := s.ledger.GetLimitInfo(c.Request.Context(), id, getUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": toLimitInfoDTO(info)})
}
