package notifications

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/thatsimonsguy/tank-controller/internal/env"
)

var client *http.Client
var topic string
var baseURL = "https://ntfy.sh"
var initialized bool
var breaker *gobreaker.CircuitBreaker

// ErrDisabled is returned by Send when no topic is configured.
var ErrDisabled = errors.New("notifications not initialized")

// Init initializes the notification client
func Init() {
	if env.Cfg.NtfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return
	}
	setup(env.Cfg.NtfyTopic, baseURL)

	log.Info().
		Str("topic", topic).
		Msg("Ntfy notifications initialized")
}

func setup(t, url string) {
	client = &http.Client{
		Timeout: 10 * time.Second,
	}
	topic = t
	baseURL = url
	breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ntfy",
		Timeout: 5 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Notification circuit changed state")
		},
	})
	initialized = true
}

// Send sends a notification to ntfy.sh. While ntfy keeps failing the
// breaker stays open and calls fail fast.
func Send(title, message string) error {
	if !initialized {
		return ErrDisabled
	}
	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, post(title, message)
	})
	return err
}

func post(title, message string) error {
	url := fmt.Sprintf("%s/%s", baseURL, topic)

	payload := map[string]interface{}{
		"topic":   topic,
		"title":   title,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent successfully")

	return nil
}

// Notify sends and only logs failures; for callers that must not stop.
func Notify(title, message string) {
	if err := Send(title, message); err != nil && !errors.Is(err, ErrDisabled) {
		log.Warn().Err(err).Str("title", title).Msg("Failed to send notification")
	}
}
