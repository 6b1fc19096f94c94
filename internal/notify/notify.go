// Package notify implements the downstream-notification leg of the
// Conversion Worker (spec.md §4.10 step 6): a fire-and-forget POST to each
// registered media-server webhook once a conversion job finishes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mediavault/internal/domain/ports"
)

// Target is one registered downstream system.
type Target struct {
	Name string
	URL  string
}

// WebhookNotifier posts a JSON body describing the finished job to every
// configured Target. Grounded on the teacher's single-purpose
// Notifier.NotifyMediaServer: a short-timeout client and logged-not-returned
// errors; the response body is closed without being read.
type WebhookNotifier struct {
	client  *http.Client
	targets []Target
	logger  *slog.Logger
}

func New(targets []Target, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		client:  &http.Client{Timeout: 5 * time.Second},
		targets: targets,
		logger:  logger,
	}
}

type payload struct {
	JobID             string `json:"jobId"`
	ItemID            string `json:"itemId"`
	Succeeded         bool   `json:"succeeded"`
	OutputMediaFileID string `json:"outputMediaFileId,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Notify fans out to every configured target concurrently; per spec.md §5,
// delivery failures are logged and never returned to the caller.
func (w *WebhookNotifier) Notify(ctx context.Context, n ports.ConversionNotification) {
	body, err := json.Marshal(payload{
		JobID:             n.JobID,
		ItemID:            n.ItemID,
		Succeeded:         n.Succeeded,
		OutputMediaFileID: n.OutputMediaFileID,
		Error:             n.Error,
	})
	if err != nil {
		w.logger.Warn("notify: marshal failed", slog.String("error", err.Error()))
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, t := range w.targets {
		go w.post(detached, t, body)
	}
}

func (w *WebhookNotifier) post(ctx context.Context, t Target, body []byte) {
	url := strings.TrimRight(t.URL, "/")
	if url == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("notify: request build failed", slog.String("target", t.Name), slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("notify: POST failed", slog.String("target", t.Name), slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		w.logger.Warn("notify: target rejected", slog.String("target", t.Name), slog.Int("status", resp.StatusCode))
	}
}
