package domain

import (
	"bytes"
	"encoding/json"
)

// Option is an optional variant attribute such as size or color. An unset Option never equals a
// set one, whatever the set value is, so "" and "none" are real values.
type Option struct {
	value string
	set   bool
}

var None = Option{}

func Some(value string) Option {
	return Option{value: value, set: true}
}

// OptionFromPtr maps nil to None.
func OptionFromPtr(value *string) Option {
	if value == nil {
		return None
	}
	return Some(*value)
}

func (o Option) Get() (string, bool) {
	return o.value, o.set
}

func (o Option) IsSet() bool {
	return o.set
}

func (o Option) Ptr() *string {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

func (o Option) String() string {
	if !o.set {
		return "<unset>"
	}
	return o.value
}

func (o Option) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Option) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*o = Some(value)
	return nil
}
