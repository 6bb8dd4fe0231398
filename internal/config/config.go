package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	StoreID                 string
	AuthSecret              string
	AccessTokenTTLMinutes   int
	ManagerPIN              string
	ReminderLeadDays        int
	EscalationOverdueDays   int
	RiskCacheTTLSeconds     int
	RiskOutstandingMultiple float64
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	leadDays, err := strconv.Atoi(getEnv("REMINDER_LEAD_DAYS", "3"))
	if err != nil || leadDays < 1 {
		leadDays = 3
	}
	escalationDays, err := strconv.Atoi(getEnv("ESCALATION_OVERDUE_DAYS", "14"))
	if err != nil || escalationDays < 1 {
		escalationDays = 14
	}
	riskTTL, err := strconv.Atoi(getEnv("RISK_CACHE_TTL_SECONDS", "300"))
	if err != nil || riskTTL < 1 {
		riskTTL = 300
	}
	multiple, err := strconv.ParseFloat(getEnv("RISK_OUTSTANDING_MULTIPLE", "2.0"), 64)
	if err != nil || multiple <= 0 {
		multiple = 2.0
	}

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		StoreID:                 getEnv("DEFAULT_STORE_ID", "main-store"),
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:   tokenTTL,
		ManagerPIN:              strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		ReminderLeadDays:        leadDays,
		EscalationOverdueDays:   escalationDays,
		RiskCacheTTLSeconds:     riskTTL,
		RiskOutstandingMultiple: multiple,
		TwilioAccountSID:        strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:         strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		TwilioFromNumber:        strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// TwilioConfigured reports whether all credentials needed for WhatsApp
// dispatch are present. When false the server falls back to dry-run logging.
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
