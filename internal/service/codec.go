package service

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// Envelope is the decoded form of a wire event. Routing fields are lifted
// out of the event so subscribers can filter without decoding it.
type Envelope struct {
	Type       domain.EventType
	Seq        uint64
	QuestionID uint64
	Event      domain.Event
}

// EncodeEvent wraps ev in a protobuf Struct envelope:
//
//	{type, seq, question_id, event: {...}}
//
// Numbers travel as doubles, exact up to 2^53 base units.
func EncodeEvent(ev domain.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal event: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("codec: event to map: %w", err)
	}

	env, err := structpb.NewStruct(map[string]any{
		"type":        string(ev.Type),
		"seq":         ev.Seq,
		"question_id": ev.QuestionID,
		"event":       body,
	})
	if err != nil {
		return nil, fmt.Errorf("codec: build envelope: %w", err)
	}
	data, err := proto.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("codec: encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEvent reverses EncodeEvent.
func DecodeEvent(data []byte) (Envelope, error) {
	var env structpb.Struct
	if err := proto.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("codec: decode envelope: %w", err)
	}
	fields := env.GetFields()
	out := Envelope{
		Type:       domain.EventType(fields["type"].GetStringValue()),
		Seq:        uint64(fields["seq"].GetNumberValue()),
		QuestionID: uint64(fields["question_id"].GetNumberValue()),
	}

	body := fields["event"].GetStructValue()
	if body == nil {
		return Envelope{}, fmt.Errorf("codec: envelope without event")
	}
	raw, err := json.Marshal(body.AsMap())
	if err != nil {
		return Envelope{}, fmt.Errorf("codec: event from map: %w", err)
	}
	if err := json.Unmarshal(raw, &out.Event); err != nil {
		return Envelope{}, fmt.Errorf("codec: unmarshal event: %w", err)
	}
	return out, nil
}
