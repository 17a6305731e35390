// Standalone mock bank provider used for local development. It serves a
// paginated transaction feed shaped like the real provider API so the sync
// worker can be exercised without credentials.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type FeedRecord struct {
	Date             string `json:"date"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	PayeeName        string `json:"payee_name"`
	Merchant         string `json:"merchant"`
	PaymentReference string `json:"payment_reference"`
}

type FeedPage struct {
	Transactions []FeedRecord `json:"transactions"`
	Page         int          `json:"page"`
	HasMore      bool         `json:"has_more"`
}

// MockProvider holds a generated transaction history and serves it the way
// the real bank feed does.
type MockProvider struct {
	providerID string
	records    []FeedRecord
	minDelay   time.Duration
	maxDelay   time.Duration
	rng        *rand.Rand
}

var merchants = []struct {
	name     string
	payee    string
	currency string
	min, max float64
}{
	{"AWS", "Amazon Web Services EMEA", "USD", -450, -12},
	{"Hetzner", "Hetzner Online GmbH", "EUR", -120, -9},
	{"Delhaize", "Delhaize Brussels", "EUR", -180, -8},
	{"SNCB", "SNCB/NMBS", "EUR", -45, -4},
	{"Shell", "Shell Station E40", "EUR", -95, -30},
	{"Figma", "Figma Inc", "USD", -75, -15},
	{"Acme Corp", "Acme Corporation", "EUR", 800, 6500},
	{"Globex", "Globex International", "USD", 1200, 9800},
}

var descriptions = []string{
	"Card payment %s",
	"Direct debit %s",
	"Wire transfer %s",
	"Recurring payment %s",
	"Invoice settlement %s",
}

func NewMockProvider(historyDays, perDay int, minDelay, maxDelay time.Duration, seed int64) *MockProvider {
	rng := rand.New(rand.NewSource(seed))

	p := &MockProvider{
		providerID: "MOCK_BANK_" + uuid.New().String()[:8],
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		rng:        rng,
	}

	// Oldest first so pagination walks the feed chronologically.
	start := time.Now().AddDate(0, 0, -historyDays)
	for day := 0; day < historyDays; day++ {
		date := start.AddDate(0, 0, day).Format("2006-01-02")
		for i := 0; i < perDay; i++ {
			p.records = append(p.records, p.generateRecord(date))
		}
	}

	return p
}

func (p *MockProvider) generateRecord(date string) FeedRecord {
	m := merchants[p.rng.Intn(len(merchants))]
	amount := m.min + p.rng.Float64()*(m.max-m.min)

	return FeedRecord{
		Date:             date,
		Amount:           fmt.Sprintf("%.2f", amount),
		Currency:         m.currency,
		Description:      fmt.Sprintf(descriptions[p.rng.Intn(len(descriptions))], m.name),
		PayeeName:        m.payee,
		Merchant:         m.name,
		PaymentReference: "REF-" + strings.ToUpper(uuid.New().String()[:12]),
	}
}

func (p *MockProvider) page(since string, page, pageSize int) FeedPage {
	records := p.records
	if since != "" {
		for i, r := range records {
			if r.Date >= since {
				records = records[i:]
				break
			}
		}
		if len(records) > 0 && records[0].Date < since {
			records = nil
		}
	}

	start := (page - 1) * pageSize
	if start >= len(records) {
		return FeedPage{Transactions: []FeedRecord{}, Page: page, HasMore: false}
	}

	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}

	return FeedPage{
		Transactions: records[start:end],
		Page:         page,
		HasMore:      end < len(records),
	}
}

func (p *MockProvider) randomDelay() time.Duration {
	if p.maxDelay <= p.minDelay {
		return p.minDelay
	}
	delta := p.maxDelay - p.minDelay
	return p.minDelay + time.Duration(p.rng.Int63n(int64(delta)))
}

// Handler wires the mock provider into gin routes.
type Handler struct {
	provider *MockProvider
	apiToken string
}

func NewHandler(provider *MockProvider, apiToken string) *Handler {
	return &Handler{provider: provider, apiToken: apiToken}
}

func (h *Handler) authorized(c *gin.Context) bool {
	if h.apiToken == "" {
		return true
	}
	return c.GetHeader("Authorization") == "Bearer "+h.apiToken
}

// ListTransactions serves one page of the feed.
func (h *Handler) ListTransactions(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api token"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "100"))
	if err != nil || pageSize < 1 || pageSize > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be between 1 and 500"})
		return
	}

	since := c.Query("since")
	if since != "" {
		if _, err := time.Parse("2006-01-02", since); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be formatted as 2006-01-02"})
			return
		}
	}

	// Simulate upstream latency.
	time.Sleep(h.provider.randomDelay())

	result := h.provider.page(since, page, pageSize)

	log.Info().
		Int("page", page).
		Int("page_size", pageSize).
		Str("since", since).
		Int("transactions", len(result.Transactions)).
		Bool("has_more", result.HasMore).
		Msg("Served feed page")

	c.JSON(http.StatusOK, result)
}

// HealthCheck answers the probe the sync worker uses before a run.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"provider_id": h.provider.providerID,
		"timestamp":   time.Now(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.GET("/transactions", handler.ListTransactions)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8091")
	apiToken := getEnv("API_TOKEN", "")
	historyDays := getEnvInt("HISTORY_DAYS", 90)
	perDay := getEnvInt("TRANSACTIONS_PER_DAY", 6)
	minDelay := getEnvDuration("MIN_DELAY", 20*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 200*time.Millisecond)
	seed := int64(getEnvInt("SEED", int(time.Now().UnixNano())))

	provider := NewMockProvider(historyDays, perDay, minDelay, maxDelay, seed)

	log.Info().
		Str("port", port).
		Str("provider_id", provider.providerID).
		Int("history_days", historyDays).
		Int("records", len(provider.records)).
		Bool("auth_enabled", apiToken != "").
		Msg("Starting mock bank provider")

	handler := NewHandler(provider, apiToken)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
