package grpc

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct renders v through its JSON tags into a Struct message.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStruct decodes a Struct message into v through v's JSON tags.
func fromStruct(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// field wraps a single response value.
func field(name string, v any) (*structpb.Struct, error) {
	return toStruct(map[string]any{name: v})
}

func stringField(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

func numberField(in *structpb.Struct, name string) float64 {
	return in.GetFields()[name].GetNumberValue()
}

// intField saturates at the int32 range; NaN reads as -1 so that it fails
// validation.
func intField(in *structpb.Struct, name string) int {
	v := numberField(in, name)
	switch {
	case math.IsNaN(v):
		return -1
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

func boolField(in *structpb.Struct, name string) bool {
	return in.GetFields()[name].GetBoolValue()
}

func numberListField(in *structpb.Struct, name string) ([]float64, error) {
	values := in.GetFields()[name].GetListValue().GetValues()
	out := make([]float64, len(values))
	for i, v := range values {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not a number", name, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func stringMapField(in *structpb.Struct, name string) map[string]string {
	fields := in.GetFields()[name].GetStructValue().GetFields()
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v.GetStringValue()
	}
	return out
}

// timeField parses an RFC 3339 timestamp; an absent field is the zero time.
func timeField(in *structpb.Struct, name string) (time.Time, error) {
	raw := stringField(in, name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp: %w", name, err)
	}
	return t, nil
}
