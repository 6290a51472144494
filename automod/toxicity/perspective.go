package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/util"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
)

const defaultPerspectiveHost = "https://commentanalyzer.googleapis.com"

// PerspectiveClient scores text with the Perspective comment analyzer API.
type PerspectiveClient struct {
	Client http.Client
	APIKey string
	// scheme and host, without trailing slash
	Host string
	// attribute to request; defaults to TOXICITY
	Attribute string
	// client-side QPS limit, matching the API project's quota. nil disables
	Limiter *rate.Limiter
}

var _ Scorer = (*PerspectiveClient)(nil)

func NewPerspectiveClient(apiKey string) *PerspectiveClient {
	return &PerspectiveClient{
		Client:    *util.RobustHTTPClient(),
		APIKey:    apiKey,
		Host:      defaultPerspectiveHost,
		Attribute: "TOXICITY",
		Limiter:   rate.NewLimiter(rate.Limit(1), 1),
	}
}

// schema: https://developers.perspectiveapi.com/s/about-the-api-methods
type perspectiveReq struct {
	Comment             perspectiveText     `json:"comment"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	DoNotStore          bool                `json:"doNotStore"`
}

type perspectiveText struct {
	Text string `json:"text"`
}

type perspectiveResp struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

func (pc *PerspectiveClient) Score(ctx context.Context, text string) (float64, error) {
	attr := pc.Attribute
	if attr == "" {
		attr = "TOXICITY"
	}
	body, err := json.Marshal(perspectiveReq{
		Comment:             perspectiveText{Text: text},
		RequestedAttributes: map[string]struct{}{attr: {}},
		DoNotStore:          true,
	})
	if err != nil {
		return 0, err
	}

	if pc.Limiter != nil {
		if err := pc.Limiter.Wait(ctx); err != nil {
			scorerCount.WithLabelValues("ratelimited").Inc()
			return 0, fmt.Errorf("toxicity scorer rate limited: %w", err)
		}
	}

	u := fmt.Sprintf("%s/v1alpha1/comments:analyze?key=%s", pc.Host, pc.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "axion-automod/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		scorerDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := pc.Client.Do(req)
	if err != nil {
		scorerCount.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("toxicity scorer request failed: %w", err)
	}
	defer res.Body.Close()

	scorerCount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("toxicity scorer request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read toxicity scorer resp body: %w", err)
	}
	var respObj perspectiveResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return 0, fmt.Errorf("failed to parse toxicity scorer resp JSON: %w", err)
	}
	score, ok := respObj.AttributeScores[attr]
	if !ok {
		return 0, fmt.Errorf("toxicity scorer response missing attribute %s", attr)
	}
	slog.Debug("toxicity-score", "attribute", attr, "score", score.SummaryScore.Value)
	return score.SummaryScore.Value, nil
}
