// Package protocol implements the plaintext gate protocol carried over the
// auth and command characteristics.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// Separator joins the password and device label of an auth request.
	Separator = "|"

	SuccessPrefix = "SUCCESS|"
	FailedPrefix  = "FAILED|"

	// RSSIPrefix starts an RSSI telemetry frame: "rssi:-58".
	RSSIPrefix = "rssi:"
)

// ResponseKind classifies an auth characteristic notification.
type ResponseKind int

const (
	// ResponseUnknown is any notification that is not a protocol frame.
	ResponseUnknown ResponseKind = iota
	ResponseSuccess
	ResponseFailed
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseSuccess:
		return "success"
	case ResponseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthResponse is a decoded auth notification.
type AuthResponse struct {
	Kind ResponseKind
	// Message is the text after the prefix: a greeting on success, the
	// reason on failure.
	Message string
}

// EncodeAuthRequest builds the auth request written to the auth
// characteristic: "<password>|<deviceLabel>".
func EncodeAuthRequest(password, deviceLabel string) []byte {
	return []byte(password + Separator + deviceLabel)
}

// DecodeAuthRequest splits an auth request at the last separator, so a
// password may itself contain "|".
func DecodeAuthRequest(data []byte) (password, deviceLabel string, err error) {
	s := string(data)
	i := strings.LastIndex(s, Separator)
	if i < 0 {
		return "", "", fmt.Errorf("protocol: auth request has no %q separator", Separator)
	}
	return s[:i], s[i+1:], nil
}

// ParseAuthResponse decodes a notification from the auth characteristic.
// Anything not starting with a known prefix is ResponseUnknown.
func ParseAuthResponse(data []byte) AuthResponse {
	if !utf8.Valid(data) {
		return AuthResponse{Kind: ResponseUnknown}
	}
	// Some stacks pad characteristic values with NULs.
	s := strings.TrimRight(string(data), "\x00")

	switch {
	case strings.HasPrefix(s, SuccessPrefix):
		return AuthResponse{Kind: ResponseSuccess, Message: s[len(SuccessPrefix):]}
	case strings.HasPrefix(s, FailedPrefix):
		return AuthResponse{Kind: ResponseFailed, Message: s[len(FailedPrefix):]}
	default:
		return AuthResponse{Kind: ResponseUnknown, Message: s}
	}
}

// EncodeSuccess and EncodeFailure build peripheral responses.
func EncodeSuccess(message string) []byte { return []byte(SuccessPrefix + message) }

func EncodeFailure(reason string) []byte { return []byte(FailedPrefix + reason) }

// EncodeRSSI builds the telemetry frame written to the command
// characteristic.
func EncodeRSSI(rssi int) []byte {
	return []byte(RSSIPrefix + strconv.Itoa(rssi))
}

// ParseRSSI decodes an "rssi:<n>" frame.
func ParseRSSI(frame string) (int, error) {
	if !strings.HasPrefix(frame, RSSIPrefix) {
		return 0, fmt.Errorf("protocol: %q is not an RSSI frame", frame)
	}
	n, err := strconv.Atoi(strings.TrimSpace(frame[len(RSSIPrefix):]))
	if err != nil {
		return 0, fmt.Errorf("protocol: parse RSSI: %w", err)
	}
	return n, nil
}
