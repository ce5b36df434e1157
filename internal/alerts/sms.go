package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// SendSMS sends a text through the configured HTTP SMS provider.
// Required: SMS_API_KEY; Optional: SMS_API_URL, SMS_SENDER_ID.
func SendSMS(to, message string) error {
	apiKey := os.Getenv("SMS_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("sms not configured: set SMS_API_KEY")
	}
	apiURL := os.Getenv("SMS_API_URL")
	if apiURL == "" {
		apiURL = "https://api.ng.termii.com/api/sms/send"
	}
	sender := os.Getenv("SMS_SENDER_ID")
	if sender == "" {
		sender = "TipJar"
	}

	payload := map[string]string{
		"api_key": apiKey,
		"to":      to,
		"from":    sender,
		"sms":     message,
		"type":    "plain",
		"channel": "generic",
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg, readErr := io.ReadAll(resp.Body); readErr == nil && len(msg) > 0 {
			return fmt.Errorf("sms send failed: status=%d body=%s", resp.StatusCode, msg)
		}
		return fmt.Errorf("sms send failed: status=%d", resp.StatusCode)
	}
	return nil
}
