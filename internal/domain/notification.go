package domain

import (
	"fmt"
	"strings"
	"time"
)

// Notification is a single alert record kept in the ledger.
type Notification struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Recipient       string    `json:"recipient"`
	Read            bool      `json:"read"`
	CreatedAt       time.Time `json:"createdAt"`
	PushoverSent    bool      `json:"pushoverSent"`
	PushoverReceipt *string   `json:"pushoverReceipt"`
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	return nil
}

// MarkDelivered records a successful gateway delivery. An empty receipt is stored as nil.
func (n *Notification) MarkDelivered(receipt *string) {
	n.PushoverSent = true
	n.PushoverReceipt = nil
	if receipt != nil && strings.TrimSpace(*receipt) != "" {
		r := strings.TrimSpace(*receipt)
		n.PushoverReceipt = &r
	}
}

// Clone returns a deep copy so callers never share the receipt pointer with the ledger.
func (n Notification) Clone() Notification {
	if n.PushoverReceipt != nil {
		r := *n.PushoverReceipt
		n.PushoverReceipt = &r
	}
	return n
}
