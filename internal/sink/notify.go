package sink

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/retry"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// Completion is posted to the webhook after every run.
type Completion struct {
	Account    string `json:"account"`
	RunID      string `json:"run_id,omitempty"`
	Status     string `json:"status"`
	Kind       string `json:"kind,omitempty"`
	ResultPath string `json:"result_path"`
}

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// NewCompletion summarises result for the webhook.
func NewCompletion(result *models.ScrapeResult, path string) Completion {
	c := Completion{
		Account:    result.Account,
		RunID:      result.RunID,
		Status:     StatusSucceeded,
		ResultPath: path,
	}
	if result.Failed() {
		c.Status = StatusFailed
		c.Kind = result.Error.Kind
	}
	return c
}

// Notifier posts completions to a webhook. A nil Notifier does nothing.
type Notifier struct {
	URL    string
	Policy retry.Policy
	client *resty.Client
}

func NewNotifier(url string, timeout time.Duration) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		URL:    url,
		Policy: retry.DefaultPolicy(),
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "iqscrape"),
	}
}

// Notify delivers c, retrying transient failures. Delivery failures are
// logged and returned; they never change the outcome of a run.
func (n *Notifier) Notify(ctx context.Context, c Completion) error {
	if n == nil {
		return nil
	}

	err := retry.Do(ctx, n.Policy, func(ctx context.Context) error {
		resp, err := n.client.R().SetContext(ctx).SetBody(c).Post(n.URL)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return retry.HTTPError{StatusCode: resp.StatusCode(), Status: resp.Status()}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("account", c.Account).Str("url", n.URL).Msg("Completion webhook failed")
		return err
	}
	log.Debug().Str("account", c.Account).Str("status", c.Status).Msg("Completion webhook delivered")
	return nil
}

// Close releases idle connections.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.client.GetClient().CloseIdleConnections()
}
