package tabular

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Prediction is the model server verdict for one feature vector.
type Prediction struct {
	Prediction  string  `json:"prediction"`
	Probability float64 `json:"probability"`
	Note        string  `json:"note,omitempty"`
}

// Predictor scores a survey feature vector.
type Predictor interface {
	Predict(ctx context.Context, f Features) (Prediction, error)
}

// Client talks to the claim approval model server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a predictor client. timeout of 0 means 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Features Features `json:"features"`
}

type predictResponse struct {
	Prediction
	Error          string   `json:"error,omitempty"`
	RequiredFields []string `json:"required_fields,omitempty"`
	MissingFields  []string `json:"missing_fields,omitempty"`
}

// MissingFieldsError reports which required survey answers the model server
// needs before it can score. It is a structured result, not a transport
// failure: callers surface the field lists instead of the error string.
type MissingFieldsError struct {
	Message  string   `json:"error"`
	Required []string `json:"required_fields,omitempty"`
	Missing  []string `json:"missing_fields"`
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Missing, ", "))
}

// Predict scores the features. Missing required fields come back as a
// *MissingFieldsError; any other model-side error is an opaque Go error.
// Either way callers can skip the prediction without failing the claim.
func (c *Client) Predict(ctx context.Context, f Features) (Prediction, error) {
	body, err := json.Marshal(predictRequest{Features: f})
	if err != nil {
		return Prediction{}, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("model server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("model server returned status %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, fmt.Errorf("decode predict response: %w", err)
	}
	if out.Error != "" {
		if len(out.MissingFields) > 0 {
			return Prediction{}, &MissingFieldsError{
				Message:  out.Error,
				Required: out.RequiredFields,
				Missing:  out.MissingFields,
			}
		}
		return Prediction{}, fmt.Errorf("model server: %s", out.Error)
	}
	return out.Prediction, nil
}
