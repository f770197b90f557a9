package suirpc

import (
	"encoding/json"

	"github.com/mr-tron/base58"
	"github.com/rotisserie/eris"
)

// EventFilter restricts an event query to a single Move event type.
type EventFilter struct {
	MoveEventType string `json:"MoveEventType"`
}

// EventCursor identifies a position in the event stream: the transaction
// digest (base58) plus the event's sequence number within that transaction.
type EventCursor struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// Validate checks that the cursor's transaction digest is a well-formed
// 32-byte base58 value. Node responses should always satisfy this; the check
// guards externally supplied resume cursors.
func (c *EventCursor) Validate() error {
	if c == nil {
		return nil
	}
	raw, err := base58.Decode(c.TxDigest)
	if err != nil {
		return eris.Wrapf(err, "suirpc: cursor digest %q is not base58", c.TxDigest)
	}
	if len(raw) != 32 {
		return eris.Errorf("suirpc: cursor digest %q decodes to %d bytes, want 32", c.TxDigest, len(raw))
	}
	return nil
}

// Event is a single event-log entry.
type Event struct {
	ID          EventCursor    `json:"id"`
	PackageID   string         `json:"packageId"`
	Module      string         `json:"transactionModule"`
	Sender      string         `json:"sender"`
	Type        string         `json:"type"`
	ParsedJSON  map[string]any `json:"parsedJson"`
	TimestampMs string         `json:"timestampMs"`
}

// EventPage is one page of a paginated event query.
type EventPage struct {
	Data        []Event      `json:"data"`
	NextCursor  *EventCursor `json:"nextCursor"`
	HasNextPage bool         `json:"hasNextPage"`
}

// ObjectDataOptions selects which parts of an object to return.
type ObjectDataOptions struct {
	ShowContent bool `json:"showContent"`
	ShowOwner   bool `json:"showOwner"`
	ShowType    bool `json:"showType"`
}

// ObjectOwner is the owner field of an object. On the wire it is either the
// string "Immutable" or an object keyed by ownership kind.
type ObjectOwner struct {
	AddressOwner string `json:"-"`
	ObjectOwner  string `json:"-"`
	Shared       bool   `json:"-"`
	Immutable    bool   `json:"-"`
}

// UnmarshalJSON accepts both the string and object owner encodings.
func (o *ObjectOwner) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Immutable = s == "Immutable"
		return nil
	}

	var obj struct {
		AddressOwner string          `json:"AddressOwner"`
		ObjectOwner  string          `json:"ObjectOwner"`
		Shared       json.RawMessage `json:"Shared"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return eris.Wrap(err, "suirpc: unmarshal object owner")
	}
	o.AddressOwner = obj.AddressOwner
	o.ObjectOwner = obj.ObjectOwner
	o.Shared = len(obj.Shared) > 0
	return nil
}

// MarshalJSON re-encodes the owner in the wire shape. Used by test fakes.
func (o ObjectOwner) MarshalJSON() ([]byte, error) {
	switch {
	case o.Immutable:
		return json.Marshal("Immutable")
	case o.AddressOwner != "":
		return json.Marshal(map[string]string{"AddressOwner": o.AddressOwner})
	case o.ObjectOwner != "":
		return json.Marshal(map[string]string{"ObjectOwner": o.ObjectOwner})
	case o.Shared:
		return json.Marshal(map[string]map[string]int{"Shared": {"initial_shared_version": 0}})
	default:
		return json.Marshal(map[string]string{})
	}
}

// Address returns the owning address, whichever ownership kind carries one.
func (o ObjectOwner) Address() string {
	if o.AddressOwner != "" {
		return o.AddressOwner
	}
	return o.ObjectOwner
}

// MoveContent is the structured content of a Move object.
type MoveContent struct {
	DataType string         `json:"dataType"`
	Type     string         `json:"type"`
	Fields   map[string]any `json:"fields"`
}

// ObjectData is the live state of an on-chain object.
type ObjectData struct {
	ObjectID string       `json:"objectId"`
	Version  string       `json:"version"`
	Digest   string       `json:"digest"`
	Type     string       `json:"type,omitempty"`
	Owner    *ObjectOwner `json:"owner,omitempty"`
	Content  *MoveContent `json:"content,omitempty"`
}

// objectResponse is the per-object envelope returned by sui_getObject and
// sui_multiGetObjects: exactly one of data or error is populated.
type objectResponse struct {
	Data  *ObjectData  `json:"data,omitempty"`
	Error *objectError `json:"error,omitempty"`
}

type objectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
}
