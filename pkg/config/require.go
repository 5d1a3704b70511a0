package config

import (
	"log"
	"strings"
)

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustPositive(value int, envName string) {
	if value <= 0 {
		log.Fatalf("env %s must be > 0, got %d", envName, value)
	}
}

func MustHTTPURL(value, envName string) {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		log.Fatalf("env %s must be an http(s) url", envName)
	}
}
