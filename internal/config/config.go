// Package config handles service configuration
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentsight/percept/internal/detect"
	"github.com/agentsight/percept/internal/suppress"
)

type Config struct {
	HTTPAddr             string
	CaptureRate          float64 // Hz
	AutoObserve          bool
	OCREngine            string // "tesseract" (subprocess) or "gosseract" (in-process)
	TesseractPath        string
	OCRLang              string
	OCRTimeout           time.Duration
	HistoryCapacity      int
	ExcludedWindowTitles []string
	TrackedYellow        detect.Target
	TrackedRed           detect.Target
	DefaultSuppressRules []suppress.Rule // applied when a record request names none
}

func Load() *Config {
	// Optional .env file; real environment wins
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		CaptureRate:          getEnvFloat("CAPTURE_RATE", 2.0),
		AutoObserve:          getEnvBool("AUTO_OBSERVE", true),
		OCREngine:            getEnv("OCR_ENGINE", "tesseract"),
		TesseractPath:        getEnv("TESSERACT_PATH", ""),
		OCRLang:              getEnv("OCR_LANG", "eng"),
		OCRTimeout:           time.Duration(getEnvInt("OCR_TIMEOUT_MS", 10000)) * time.Millisecond,
		HistoryCapacity:      getEnvInt("HISTORY_CAPACITY", 1000),
		ExcludedWindowTitles: getEnvList("EXCLUDED_WINDOW_TITLES", []string{"program manager"}),
		TrackedYellow:        getEnvColor("TRACKED_YELLOW", detect.Target{R: 248, G: 208, B: 48, Tolerance: 40}),
		TrackedRed:           getEnvColor("TRACKED_RED", detect.Target{R: 248, G: 56, B: 32, Tolerance: 30}),
		DefaultSuppressRules: getEnvRules("SUPPRESS_RULES"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvColor parses "r,g,b,tolerance" with each part in 0..255.
func getEnvColor(key string, def detect.Target) detect.Target {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return def
	}
	vals := make([]uint8, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return def
		}
		vals[i] = uint8(n)
	}
	return detect.Target{R: vals[0], G: vals[1], B: vals[2], Tolerance: vals[3]}
}

// getEnvRules parses a JSON suppression rule list, dropping the lot on
// any parse or validation error.
func getEnvRules(key string) []suppress.Rule {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	rules, err := suppress.ParseRules([]byte(v))
	if err != nil {
		slog.Warn("ignoring invalid suppression rules", "key", key, "error", err)
		return nil
	}
	return rules
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
