package pushover

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	PriorityLowest    = -2
	PriorityLow       = -1
	PriorityNormal    = 0
	PriorityHigh      = 1
	PriorityEmergency = 2

	defaultEmergencyRetry  = 60
	defaultEmergencyExpire = 3600
	minEmergencyRetry      = 30
	maxEmergencyExpire     = 10800
)

// Message is a single alert in gateway terms.
type Message struct {
	Message   string
	Title     string
	Device    string
	URL       string
	URLTitle  string
	Sound     string
	Priority  int
	Timestamp int64

	// Emergency-priority acknowledgement settings, in seconds.
	Retry  int
	Expire int

	HTML bool
	TTL  int

	AttachmentPath string
	Attachment     []byte
	AttachmentName string
	AttachmentType string
}

// ApplyDefaults normalizes the message so the encoded field set is stable.
func ApplyDefaults(m Message) Message {
	m.Message = strings.TrimSpace(m.Message)
	m.Title = strings.TrimSpace(m.Title)
	m.Device = strings.TrimSpace(m.Device)
	m.URL = strings.TrimSpace(m.URL)
	m.URLTitle = strings.TrimSpace(m.URLTitle)
	m.Sound = strings.TrimSpace(m.Sound)

	if m.Timestamp < 0 {
		m.Timestamp = 0
	}
	if m.TTL < 0 {
		m.TTL = 0
	}

	if m.Priority == PriorityEmergency {
		if m.Retry <= 0 {
			m.Retry = defaultEmergencyRetry
		}
		m.Retry = max(m.Retry, minEmergencyRetry)
		if m.Expire <= 0 {
			m.Expire = defaultEmergencyExpire
		}
		m.Expire = min(m.Expire, maxEmergencyExpire)
	} else {
		m.Retry = 0
		m.Expire = 0
	}

	return m
}

func (m Message) validate() error {
	if m.Message == "" {
		return fmt.Errorf("message is required")
	}
	if m.Priority < PriorityLowest || m.Priority > PriorityEmergency {
		return fmt.Errorf("priority %d is outside %d..%d", m.Priority, PriorityLowest, PriorityEmergency)
	}
	return nil
}

// fields returns the wire fields in a fixed order. Empty values are dropped by the encoder.
func (m Message) fields(token, user string) []Field {
	return []Field{
		{Name: "token", Value: token},
		{Name: "user", Value: user},
		{Name: "message", Value: m.Message},
		{Name: "title", Value: m.Title},
		{Name: "device", Value: m.Device},
		{Name: "url", Value: m.URL},
		{Name: "url_title", Value: m.URLTitle},
		{Name: "priority", Value: strconv.Itoa(m.Priority)},
		{Name: "timestamp", Value: strconv.FormatInt(m.Timestamp, 10)},
		{Name: "sound", Value: m.Sound},
		{Name: "retry", Value: optionalInt(m.Retry)},
		{Name: "expire", Value: optionalInt(m.Expire)},
		{Name: "html", Value: optionalBool(m.HTML)},
		{Name: "ttl", Value: optionalInt(m.TTL)},
	}
}

func optionalInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func optionalBool(v bool) string {
	if !v {
		return ""
	}
	return "1"
}
