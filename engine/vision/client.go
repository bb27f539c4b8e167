// Package vision analyzes claim damage photos. Detection runs on a separate
// model server; this package calls it and aggregates per-region detections
// into one claim-level finding.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Region is one detected damage region in one image.
type Region struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	BBox       []int   `json:"bbox,omitempty"`
}

// ImageDetections is the detector output for a single image.
type ImageDetections struct {
	Path          string   `json:"path"`
	Findings      []Region `json:"findings"`
	AnnotatedPath string   `json:"annotated_path,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Detector locates and classifies damage regions in images.
type Detector interface {
	Detect(ctx context.Context, imagePaths []string) ([]ImageDetections, error)
}

// Client talks to the damage detection model server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a detector client. timeout of 0 means 60s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type detectRequest struct {
	ImagePaths []string `json:"image_paths"`
}

type detectResponse struct {
	Images []ImageDetections `json:"images"`
}

// Detect sends image paths to the model server and returns per-image
// detections in the same order.
func (c *Client) Detect(ctx context.Context, imagePaths []string) ([]ImageDetections, error) {
	body, err := json.Marshal(detectRequest{ImagePaths: imagePaths})
	if err != nil {
		return nil, fmt.Errorf("encode detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned status %d", resp.StatusCode)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}
	return out.Images, nil
}
