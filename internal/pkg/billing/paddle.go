package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrMalformedJSON  = errors.New("malformed webhook JSON")
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

const envelopeSchemaJSON = `{
  "type": "object",
  "required": ["event_type", "data"],
  "properties": {
    "event_id": {"type": "string"},
    "event_type": {"type": "string", "minLength": 1},
    "occurred_at": {"type": ["string", "null"], "format": "date-time"},
    "data": {"type": "object"}
  }
}`

const subscriptionSchemaJSON = `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "status": {"type": ["string", "null"]},
    "custom_data": {
      "type": ["object", "null"],
      "properties": {"user_id": {"type": ["string", "null"]}}
    },
    "items": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "price": {
            "type": "object",
            "properties": {"id": {"type": "string"}}
          }
        }
      }
    },
    "current_billing_period": {
      "type": ["object", "null"],
      "properties": {
        "starts_at": {"type": ["string", "null"], "format": "date-time"},
        "ends_at": {"type": ["string", "null"], "format": "date-time"}
      }
    },
    "scheduled_change": {
      "type": ["object", "null"],
      "properties": {"action": {"type": ["string", "null"]}}
    }
  }
}`

var (
	envelopeSchema     = mustSchema(envelopeSchemaJSON)
	subscriptionSchema = mustSchema(subscriptionSchemaJSON)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("billing: invalid schema: %v", err))
	}
	return schema
}

func validateAgainst(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// DecodeEvent parses and validates a Paddle notification body into one of the
// known event kinds. Nothing is mutated when it returns an error.
func DecodeEvent(body []byte) (Event, error) {
	if !json.Valid(body) {
		return nil, ErrMalformedJSON
	}
	if err := validateAgainst(envelopeSchema, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	meta := EventMeta{
		EventID:    strings.TrimSpace(env.EventID),
		EventType:  strings.TrimSpace(env.EventType),
		OccurredAt: env.OccurredAt,
	}

	switch EventKind(meta.EventType) {
	case KindSubscriptionCreated, KindSubscriptionActivated:
		data, err := decodeSubscription(env.Data)
		if err != nil {
			return nil, err
		}
		return SubscriptionActivated{EventMeta: meta, Subscription: data}, nil
	case KindSubscriptionUpdated:
		data, err := decodeSubscription(env.Data)
		if err != nil {
			return nil, err
		}
		return SubscriptionUpdated{EventMeta: meta, Subscription: data}, nil
	case KindSubscriptionCanceled:
		data, err := decodeSubscription(env.Data)
		if err != nil {
			return nil, err
		}
		return SubscriptionCanceled{EventMeta: meta, Subscription: data}, nil
	case KindSubscriptionPastDue:
		data, err := decodeSubscription(env.Data)
		if err != nil {
			return nil, err
		}
		return SubscriptionPastDue{EventMeta: meta, Subscription: data}, nil
	case KindTransactionCompleted:
		var tx struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return TransactionCompleted{EventMeta: meta, TransactionID: tx.ID}, nil
	default:
		return UnknownEvent{EventMeta: meta}, nil
	}
}

func decodeSubscription(raw json.RawMessage) (SubscriptionData, error) {
	var data SubscriptionData
	if err := validateAgainst(subscriptionSchema, raw); err != nil {
		return data, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
	}
	data.ID = strings.TrimSpace(data.ID)
	if data.ID == "" {
		return data, fmt.Errorf("%w: data.id is blank", ErrInvalidPayload)
	}
	return data, nil
}
