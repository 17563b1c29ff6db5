package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Order is a pending delivery assigned to the courier, as pushed by the
// SSE endpoint.
type Order struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	AssignmentTime string `json:"assignment_time"`
}

// UnmarshalJSON requires all three fields. Numbers are accepted and kept as
// their literal text, so {"order_id": 12} decodes to OrderID "12".
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := []struct {
		key string
		dst *string
	}{
		{"order_id", &o.OrderID},
		{"user_id", &o.UserID},
		{"assignment_time", &o.AssignmentTime},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			return fmt.Errorf("missing field %q", f.key)
		}
		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.key, err)
		}
		*f.dst = s
	}
	return nil
}

func scalarString(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return "", fmt.Errorf("null value")
	}

	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected string, got %s", v)
	default:
		// numbers and booleans keep their literal spelling
		var n any
		if err := json.Unmarshal(v, &n); err != nil {
			return "", err
		}
		return string(v), nil
	}
}

// ParseOrders decodes an SSE event payload. Anything that is not a JSON
// array of complete orders yields ErrMalformedPayload.
func ParseOrders(data []byte) ([]Order, error) {
	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return orders, nil
}

// DefaultPendingMessage is shown when the backend omits a message.
const DefaultPendingMessage = "Operation completed"

// PendingOrdersResponse is the JSON envelope of check_pending_orders.php.
type PendingOrdersResponse struct {
	Success *bool   `json:"success"`
	Message *string `json:"message"`
}

// UnmarshalJSON is lenient about field types. success is true for JSON true
// or the string "true" in any case, and false for any other non-null value.
// message keeps strings as-is and other non-null values as their JSON text.
// Null counts as absent for both.
func (r *PendingOrdersResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = PendingOrdersResponse{}

	if v := bytes.TrimSpace(raw["success"]); len(v) > 0 && !bytes.Equal(v, []byte("null")) {
		var ok bool
		switch v[0] {
		case 't':
			ok = bytes.Equal(v, []byte("true"))
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("field %q: %w", "success", err)
			}
			ok = strings.EqualFold(s, "true")
		}
		r.Success = &ok
	}

	if v := bytes.TrimSpace(raw["message"]); len(v) > 0 && !bytes.Equal(v, []byte("null")) {
		msg := string(v)
		if v[0] == '"' {
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("field %q: %w", "message", err)
			}
		}
		r.Message = &msg
	}
	return nil
}

// IsSuccess reports whether success was present and true.
func (r PendingOrdersResponse) IsSuccess() bool {
	return r.Success != nil && *r.Success
}

// Text returns the message, or DefaultPendingMessage when it was absent.
func (r PendingOrdersResponse) Text() string {
	if r.Message == nil {
		return DefaultPendingMessage
	}
	return *r.Message
}

// ParsePendingOrders decodes the poll endpoint's response body.
func ParsePendingOrders(data []byte) (PendingOrdersResponse, error) {
	var resp PendingOrdersResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return PendingOrdersResponse{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return resp, nil
}
