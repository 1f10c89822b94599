// Package config provides runtime configuration values for the calculator.
package config

import (
	"math"
	"os"
	"strconv"
	"time"
)

// Config holds settings that are not part of a plan file.
type Config struct {
	HTTPAddr        string
	LedgerPath      string
	PlanPath        string
	AnnualBudget    *float64 // overrides the plan budget when set
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// floatenv returns nil when key is unset or not a non-negative number.
func floatenv(key string) *float64 {
	v := getenv(key, "")
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("TICKETCALC_ADDR", ":8080"),
		LedgerPath:      getenv("TICKETCALC_LEDGER", "planned_events.csv"),
		PlanPath:        getenv("TICKETCALC_PLAN", "."),
		AnnualBudget:    floatenv("TICKETCALC_BUDGET"),
		LogLevel:        getenv("TICKETCALC_LOG_LEVEL", "info"),
		LogFormat:       getenv("TICKETCALC_LOG_FORMAT", "json"),
		ShutdownTimeout: durenvs("TICKETCALC_SHUTDOWN_TIMEOUT", 10),
	}
}

// Budget returns the configured override, or planBudget.
func (c Config) Budget(planBudget float64) float64 {
	if c.AnnualBudget != nil {
		return *c.AnnualBudget
	}
	return planBudget
}
