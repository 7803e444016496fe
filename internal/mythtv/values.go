package mythtv

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string, number or bool into its string form.
// Older backends quote every value, newer ones emit native JSON types.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(data)
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// Int returns the value as an int, 0 when it does not parse
func (s FlexString) Int() int {
	i, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return 0
	}
	return i
}

// Bool accepts "true"/"1" style values
func (s FlexString) Bool() bool {
	b, err := strconv.ParseBool(strings.TrimSpace(string(s)))
	return err == nil && b
}

// Scalars flattens a JSON object into a map of its scalar members.
// Nested objects and arrays are dropped.
func Scalars(raw json.RawMessage) (map[string]string, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(members))
	for k, v := range members {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] == '{' || v[0] == '[' {
			continue
		}
		var s FlexString
		if err := s.UnmarshalJSON(v); err != nil {
			continue
		}
		out[k] = string(s)
	}
	return out, nil
}

func rawText(raw json.RawMessage) string {
	var s FlexString
	if err := s.UnmarshalJSON(raw); err == nil && len(raw) > 0 && raw[0] != '{' && raw[0] != '[' {
		return string(s)
	}
	return string(raw)
}
