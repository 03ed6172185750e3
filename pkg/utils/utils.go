// Package utils provides input validation and privacy-safe log formatting
// helpers shared across the service.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Validator provides input validation functions for user-supplied values.
// Validation failures are returned as caller-facing errors with a specific
// reason; they never reach the store.
type Validator struct {
	minInterval int
	maxInterval int
}

// NewValidator creates a new validator. Intervals are bounded by
// [minInterval, 86400] seconds.
func NewValidator(minInterval int) *Validator {
	return &Validator{minInterval: minInterval, maxInterval: 86400}
}

var (
	targetNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)
	domainPattern     = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
)

// ValidateTargetName validates and normalizes a target name.
func (v *Validator) ValidateTargetName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 32 {
		return "", fmt.Errorf("target name must be 1-32 characters")
	}
	if !targetNamePattern.MatchString(name) {
		return "", fmt.Errorf("target name may only contain letters, digits, '-' and '_'")
	}
	return name, nil
}

// ValidateHost validates a hostname or IP address.
func (v *Validator) ValidateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" || len(host) > 253 {
		return fmt.Errorf("host must be 1-253 characters")
	}
	if !domainPattern.MatchString(host) {
		return fmt.Errorf("host is not a valid hostname or IP address")
	}
	return nil
}

// ValidatePort validates a TCP port number.
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// ValidateInterval validates a check interval in seconds.
func (v *Validator) ValidateInterval(seconds int) error {
	if seconds < v.minInterval || seconds > v.maxInterval {
		return fmt.Errorf("interval must be between %d and %d seconds", v.minInterval, v.maxInterval)
	}
	return nil
}

// ValidateNetwork validates a benchmark network class.
func (v *Validator) ValidateNetwork(network string) error {
	switch network {
	case "mainnet", "testnet":
		return nil
	default:
		return fmt.Errorf("network must be one of: mainnet, testnet")
	}
}

// MaskChatID masks a chat id for logging, showing only the last 4 digits.
// Example: 8171181265 -> ****1265
func MaskChatID(chatID int64) string {
	s := strconv.FormatInt(chatID, 10)
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// HashForLog creates a short privacy-safe reference for logging.
// Example: "turtlebp" -> "bench:a3f5e9c1"
func HashForLog(value string, prefix string) string {
	sum := sha256.Sum256([]byte(value))
	short := hex.EncodeToString(sum[:])[:8]
	if prefix == "" {
		return short
	}
	return prefix + ":" + short
}

// SafeTargetRef builds a privacy-safe log reference for a monitored target.
// The plaintext host and port never appear in logs.
func SafeTargetRef(name, host string, port int) string {
	return HashForLog(fmt.Sprintf("%s:%s:%d", name, host, port), "target")
}

// SafeBenchRef builds a privacy-safe log reference for a benchmark target.
func SafeBenchRef(name, network string) string {
	return HashForLog(name+":"+network, "bench")
}
