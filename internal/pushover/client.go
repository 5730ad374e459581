package pushover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL        = "https://api.pushover.net/1"
	defaultTimeout        = 30 * time.Second
	maxAttachmentBytes    = 5 * 1024 * 1024
	defaultAttachmentName = "attachment"
	redacted              = "[REDACTED]"
)

// Config holds gateway credentials and client behavior.
type Config struct {
	UserKey  string
	APIToken string
	Debug    bool

	// ErrorHandler receives protocol errors instead of them being returned from Send.
	ErrorHandler func(error)

	ProxyURL          string
	AutoRefreshSounds bool
	Timeout           time.Duration
	BaseURL           string
}

// Client sends messages to the Pushover gateway.
type Client struct {
	cfg      Config
	http     *resty.Client
	strategy transportStrategy
	fs       afero.Fs
	sounds   *SoundCatalog
	logger   *zap.Logger
	baseURL  string
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	return NewClientWithHTTP(cfg, resty.New(), logger)
}

func NewClientWithHTTP(cfg Config, client *resty.Client, logger *zap.Logger) (*Client, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.UserKey = strings.TrimSpace(cfg.UserKey)
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}

	strategy, err := resolveStrategy(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	strategy.apply(client)

	c := &Client{
		cfg:      cfg,
		http:     client,
		strategy: strategy,
		fs:       afero.NewOsFs(),
		sounds:   NewSoundCatalog(),
		logger:   logger,
		baseURL:  baseURL,
	}

	if !c.Enabled() {
		logger.Warn("pushover credentials missing, delivery disabled")
	} else {
		logger.Info("pushover client ready", zap.String("transport", strategy.name()))
	}

	return c, nil
}

// Enabled reports whether both credentials are configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.UserKey != "" && c.cfg.APIToken != ""
}

func (c *Client) AutoRefreshSounds() bool {
	return c != nil && c.cfg.AutoRefreshSounds
}

func (c *Client) Sounds() *SoundCatalog {
	if c == nil {
		return nil
	}
	return c.sounds
}

// Send delivers one message. A disabled client logs and returns nil, nil without any
// network call. Protocol errors go to the configured ErrorHandler when there is one,
// in which case Send still returns the decoded response.
func (c *Client) Send(ctx context.Context, msg Message) (*Response, error) {
	if !c.Enabled() {
		c.logger.Warn("pushover delivery skipped, client disabled")
		return nil, nil
	}

	resp, err := c.send(ctx, msg)
	var protoErr *ProtocolError
	if err != nil && errors.As(err, &protoErr) {
		return resp, c.routeError(err)
	}
	return resp, err
}

// send performs the request and decodes the reply without consulting the ErrorHandler.
func (c *Client) send(ctx context.Context, msg Message) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	msg = ApplyDefaults(msg)
	if err := msg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pushover message: %w", err)
	}

	attachment, err := c.resolveAttachment(msg)
	if err != nil {
		return nil, err
	}

	boundary, err := newBoundary()
	if err != nil {
		return nil, err
	}

	fields := msg.fields(c.cfg.APIToken, c.cfg.UserKey)
	body, err := EncodeMultipart(fields, boundary, attachment)
	if err != nil {
		return nil, err
	}

	endpoint, err := c.strategy.target(c.baseURL + "/messages.json")
	if err != nil {
		return nil, err
	}

	if c.cfg.Debug {
		c.logger.Info("sending pushover request",
			zap.String("endpoint", endpoint),
			zap.String("request", c.redactedRequest(fields)),
			zap.Bool("attachment", attachment != nil),
		)
	}

	response, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", multipartContentType(boundary)).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, &ProtocolError{
			Kind:    KindTransport,
			Message: "gateway request failed",
			Cause:   err,
		}
	}

	return c.handleResponse(response.StatusCode(), response.Body())
}

func (c *Client) handleResponse(httpStatus int, body []byte) (*Response, error) {
	if c.cfg.Debug {
		c.logger.Info("pushover response",
			zap.Int("status", httpStatus),
			zap.String("body", c.redact(string(body))),
		)
	}

	return DecodeResponse(httpStatus, body)
}

// routeError hands err to the ErrorHandler and reports it handled, or returns it.
func (c *Client) routeError(err error) error {
	if c.cfg.ErrorHandler == nil {
		return err
	}
	c.cfg.ErrorHandler(err)
	return nil
}

// SendNotification delivers msg and returns the gateway receipt, which is nil for
// deliveries that do not issue one. Protocol errors are returned with their kind
// intact; a configured ErrorHandler is notified as well.
func (c *Client) SendNotification(ctx context.Context, msg Message) (*string, error) {
	if !c.Enabled() {
		return nil, ErrClientDisabled
	}

	resp, err := c.send(ctx, msg)
	if err != nil {
		var protoErr *ProtocolError
		if c.cfg.ErrorHandler != nil && errors.As(err, &protoErr) {
			c.cfg.ErrorHandler(err)
		}
		return nil, err
	}
	if resp == nil {
		return nil, &ProtocolError{Kind: KindTransport, Message: "gateway returned no response"}
	}
	if len(resp.Errors) > 0 {
		return nil, &ProtocolError{Kind: KindGateway, StatusCode: resp.HTTPStatus, Message: resp.FirstError()}
	}
	if resp.HTTPStatus < http.StatusOK || resp.HTTPStatus >= http.StatusMultipleChoices || resp.Status != 1 {
		return nil, &ProtocolError{
			Kind:       KindStatus,
			StatusCode: resp.HTTPStatus,
			Message:    fmt.Sprintf("gateway returned status %d", resp.Status),
		}
	}

	if strings.TrimSpace(resp.Receipt) == "" {
		return nil, nil
	}
	receipt := resp.Receipt
	return &receipt, nil
}

// UpdateSoundCatalog fetches the gateway's sound list and replaces the catalog.
// Failures are also passed to the ErrorHandler when one is configured.
func (c *Client) UpdateSoundCatalog(ctx context.Context) error {
	if c.cfg.APIToken == "" {
		return ErrClientDisabled
	}
	if ctx == nil {
		ctx = context.Background()
	}

	err := c.fetchSounds(ctx)
	if err != nil && c.cfg.ErrorHandler != nil {
		c.cfg.ErrorHandler(err)
	}
	return err
}

func (c *Client) fetchSounds(ctx context.Context) error {
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token", c.cfg.APIToken).
		Get(c.baseURL + "/sounds.json")
	if err != nil {
		return &ProtocolError{Kind: KindTransport, Message: "sound list request failed", Cause: c.redactError(err)}
	}

	var payload soundsResponse
	if err := json.Unmarshal(response.Body(), &payload); err != nil {
		return &ProtocolError{
			Kind:       KindParse,
			StatusCode: response.StatusCode(),
			Message:    "failed to parse sound list",
			Cause:      err,
		}
	}
	if len(payload.Errors) > 0 {
		return &ProtocolError{Kind: KindGateway, StatusCode: response.StatusCode(), Message: fmt.Sprint(payload.Errors[0])}
	}
	if !c.sounds.Replace(payload.Sounds) {
		return &ProtocolError{Kind: KindParse, StatusCode: response.StatusCode(), Message: "sound list is empty"}
	}

	c.logger.Info("pushover sound catalog refreshed", zap.Int("sounds", len(payload.Sounds)))
	return nil
}

func (c *Client) resolveAttachment(msg Message) (*Attachment, error) {
	var (
		data []byte
		name = strings.TrimSpace(msg.AttachmentName)
	)

	switch {
	case len(msg.Attachment) > 0:
		data = msg.Attachment
	case strings.TrimSpace(msg.AttachmentPath) != "":
		path := strings.TrimSpace(msg.AttachmentPath)
		raw, err := afero.ReadFile(c.fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		data = raw
		if name == "" {
			name = filepath.Base(path)
		}
	default:
		return nil, nil
	}

	if len(data) > maxAttachmentBytes {
		return nil, fmt.Errorf("attachment is %d bytes, limit is %d", len(data), maxAttachmentBytes)
	}
	if name == "" {
		name = defaultAttachmentName
	}

	contentType := strings.TrimSpace(msg.AttachmentType)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}

	return &Attachment{Filename: name, ContentType: contentType, Data: data}, nil
}

func (c *Client) redactedRequest(fields []Field) string {
	values := url.Values{}
	for _, field := range fields {
		if field.Value == "" {
			continue
		}
		switch field.Name {
		case "token", "user":
			values.Set(field.Name, redacted)
		default:
			values.Set(field.Name, field.Value)
		}
	}
	return c.redact(values.Encode())
}

func (c *Client) redact(s string) string {
	for _, secret := range []string{c.cfg.APIToken, c.cfg.UserKey} {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
		s = strings.ReplaceAll(s, url.QueryEscape(secret), redacted)
	}
	return s
}

func (c *Client) redactError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(c.redact(err.Error()))
}
