// Package lms talks to the host LMS over its REST web-service endpoint and
// implements wizard.Backend.
package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

const restPath = "/webservice/rest/server.php"

type Config struct {
	BaseURL string
	WSToken string
	// Optional OAuth2 client credentials for gateways in front of the LMS.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Logger       *zap.Logger
}

type Client struct {
	base  string
	token string
	http  *http.Client
	log   *zap.Logger
}

func New(cfg Config) *Client {
	var h *http.Client
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	} else {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{base: strings.TrimRight(cfg.BaseURL, "/"), token: cfg.WSToken, http: h, log: log}
}

// wsError is the exception envelope the LMS returns with HTTP 200.
type wsError struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

// staleCodes are error codes meaning the referenced record is gone.
var staleCodes = map[string]bool{
	"invalidrecord":        true,
	"invalidrecordunknown": true,
	"questiondoesnotexist": true,
	"invalidcourseid":      true,
}

// call invokes fn with args and decodes the JSON result into out.
func (c *Client) call(ctx context.Context, fn string, args url.Values, out any) error {
	form := url.Values{}
	for k, v := range args {
		form[k] = v
	}
	form.Set("wstoken", c.token)
	form.Set("wsfunction", fn)
	form.Set("moodlewsrestformat", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+restPath, strings.NewReader(form.Encode()))
	if err != nil {
		return &wizard.TransportFailure{Op: fn, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("lms call failed", zap.String("function", fn), zap.Error(err))
		return &wizard.TransportFailure{Op: fn, Err: err}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return &wizard.TransportFailure{Op: fn, Err: fmt.Errorf("read body: %w", err)}
	}
	c.log.Debug("lms call", zap.String("function", fn), zap.Int("status", res.StatusCode), zap.Duration("took", time.Since(start)))
	if res.StatusCode/100 != 2 {
		return &wizard.TransportFailure{Op: fn, Err: fmt.Errorf("status %s", res.Status)}
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var we wsError
		if json.Unmarshal(body, &we) == nil && we.Exception != "" {
			if staleCodes[we.ErrorCode] {
				return fmt.Errorf("%s: %w", fn, wizard.ErrStale)
			}
			msg := we.Message
			if msg == "" {
				msg = we.ErrorCode
			}
			return &wizard.BackendRejected{Message: msg}
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &wizard.TransportFailure{Op: fn, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
