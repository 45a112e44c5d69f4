// Package protocol defines the wire messages exchanged with game clients.
// Every message is a JSON object with a "type" discriminator; unknown
// fields are preserved only where a message is relayed opaquely.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind extracts the "type" discriminator without decoding the whole
// message. Returns "" for messages that lack one.
func Kind(data []byte) string {
	return gjson.GetBytes(data, "type").String()
}

// RelayTarget extracts the "to" field of a peer-negotiation message.
func RelayTarget(data []byte) (int, bool) {
	to := gjson.GetBytes(data, "to")
	if !to.Exists() {
		return 0, false
	}
	return int(to.Int()), true
}

// Encode marshals an outbound message.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// Annotate injects the sender's id as "from" into a raw inbound message so
// it can be fanned out verbatim to peers.
func Annotate(raw []byte, from int) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("annotate message: %w", err)
	}
	obj["from"] = from
	return json.Marshal(obj)
}
