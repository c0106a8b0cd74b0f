package stream

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// The feed speaks msgpack over a persistent websocket. Every frame, inbound
// or outbound, is a batch: outbound frames carry one control request, inbound
// frames carry a sequence of records tagged by "T".

const (
	recordTypeSuccess        = "success"
	recordTypeError          = "error"
	recordTypeSubscription   = "subscription"
	recordTypeUnsubscription = "unsubscription"
	recordTypeQuote          = "q"
)

type authRequest struct {
	Action string `msgpack:"action"`
	Key    string `msgpack:"key"`
	Secret string `msgpack:"secret"`
}

type subscribeRequest struct {
	Action string   `msgpack:"action"`
	Quotes []string `msgpack:"quotes"`
}

// record is one decoded inbound record. Bid and ask are pointers because the
// feed omits the field entirely for one-sided markets rather than sending a
// zero.
type record struct {
	Type      string    `msgpack:"T"`
	Symbol    string    `msgpack:"S"`
	BidPrice  *float64  `msgpack:"bp"`
	AskPrice  *float64  `msgpack:"ap"`
	Timestamp time.Time `msgpack:"t"`
	Message   string    `msgpack:"msg"`
	Code      int       `msgpack:"code"`
}

func encodeAuth(key, secret string) ([]byte, error) {
	payload, err := msgpack.Marshal(authRequest{Action: "auth", Key: key, Secret: secret})
	if err != nil {
		return nil, fmt.Errorf("encoding auth request: %w", err)
	}
	return payload, nil
}

func encodeSubscribe(symbols []string) ([]byte, error) {
	payload, err := msgpack.Marshal(subscribeRequest{Action: "subscribe", Quotes: symbols})
	if err != nil {
		return nil, fmt.Errorf("encoding subscribe request: %w", err)
	}
	return payload, nil
}

func encodeUnsubscribe(symbols []string) ([]byte, error) {
	payload, err := msgpack.Marshal(subscribeRequest{Action: "unsubscribe", Quotes: symbols})
	if err != nil {
		return nil, fmt.Errorf("encoding unsubscribe request: %w", err)
	}
	return payload, nil
}

// decodeBatch splits one inbound frame into its raw records. Records are
// decoded individually afterwards so one malformed record cannot poison the
// rest of the batch.
func decodeBatch(frame []byte) ([]msgpack.RawMessage, error) {
	var raw []msgpack.RawMessage
	if err := msgpack.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("decoding message batch: %w", err)
	}
	return raw, nil
}

func decodeRecord(raw msgpack.RawMessage) (*record, error) {
	var rec record
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &rec, nil
}
