// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
)

// Setting is the interface exposing the metadata for a setting.
type Setting interface {
	// Key returns the name of the setting.
	Key() string
	// Typ returns the short (1 char) string denoting the type of setting.
	Typ() string
	// EncodedDefault returns the default value as a string.
	EncodedDefault() string
	// Encoded returns the value in the given Values as a string.
	Encoded(sv *Values) string
	// Decode parses and validates s and stores it as an override in sv.
	Decode(sv *Values, s string) error
}

// Values holds per-run overrides of registered settings. A nil *Values is
// valid and yields every setting's default. Values is safe for concurrent
// use.
type Values struct {
	mu   sync.RWMutex
	vals map[string]interface{}
}

// MakeValues returns an empty set of overrides.
func MakeValues() *Values {
	return &Values{vals: map[string]interface{}{}}
}

func (sv *Values) get(key string) (interface{}, bool) {
	if sv == nil {
		return nil, false
	}
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	v, ok := sv.vals[key]
	return v, ok
}

func (sv *Values) set(key string, v interface{}) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.vals == nil {
		sv.vals = map[string]interface{}{}
	}
	sv.vals[key] = v
}

// Set parses the string value and overrides the named setting.
func (sv *Values) Set(key, value string) error {
	s, _, ok := Lookup(key)
	if !ok {
		return errors.Newf("unknown setting %q", key)
	}
	return s.Decode(sv, value)
}

// Overridden returns the keys that have been overridden, sorted.
func (sv *Values) Overridden() []string {
	var res []string
	for _, k := range Keys() {
		if _, ok := sv.get(k); ok {
			res = append(res, k)
		}
	}
	return res
}

type common struct {
	key string
}

// Key is part of the Setting interface.
func (c *common) Key() string { return c.key }

// IntSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "int" is updated.
type IntSetting struct {
	common
	defaultValue int64
	validateFn   func(int64) error
}

var _ Setting = &IntSetting{}

// Get retrieves the int value in the setting.
func (i *IntSetting) Get(sv *Values) int64 {
	if v, ok := sv.get(i.key); ok {
		return v.(int64)
	}
	return i.defaultValue
}

// Validate that a value conforms with the validation function.
func (i *IntSetting) Validate(v int64) error {
	if i.validateFn != nil {
		if err := i.validateFn(v); err != nil {
			return err
		}
	}
	return nil
}

// Override changes the setting without validation; used in tests.
func (i *IntSetting) Override(sv *Values, v int64) {
	sv.set(i.key, v)
}

// Typ returns the short (1 char) string denoting the type of setting.
func (*IntSetting) Typ() string { return "i" }

// EncodedDefault is part of the Setting interface.
func (i *IntSetting) EncodedDefault() string {
	return strconv.FormatInt(i.defaultValue, 10)
}

// Encoded is part of the Setting interface.
func (i *IntSetting) Encoded(sv *Values) string {
	return strconv.FormatInt(i.Get(sv), 10)
}

// Decode is part of the Setting interface.
func (i *IntSetting) Decode(sv *Values, s string) error {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "setting %s", i.key)
	}
	if err := i.Validate(v); err != nil {
		return errors.Wrapf(err, "setting %s", i.key)
	}
	sv.set(i.key, v)
	return nil
}

// RegisterIntSetting defines a new setting with type int.
func RegisterIntSetting(key, desc string, defaultValue int64) *IntSetting {
	return RegisterValidatedIntSetting(key, desc, defaultValue, nil)
}

// RegisterPositiveIntSetting defines a new setting with type int which must be
// greater than zero.
func RegisterPositiveIntSetting(key, desc string, defaultValue int64) *IntSetting {
	return RegisterValidatedIntSetting(key, desc, defaultValue, func(v int64) error {
		if v < 1 {
			return errors.Errorf("cannot set to a non-positive value: %d", v)
		}
		return nil
	})
}

// RegisterValidatedIntSetting defines a new setting with type int with a
// validation function.
func RegisterValidatedIntSetting(
	key, desc string, defaultValue int64, validateFn func(int64) error,
) *IntSetting {
	if validateFn != nil {
		if err := validateFn(defaultValue); err != nil {
			panic(errors.Wrap(err, "invalid default"))
		}
	}
	setting := &IntSetting{
		common:       common{key: key},
		defaultValue: defaultValue,
		validateFn:   validateFn,
	}
	register(key, desc, setting)
	return setting
}

// BoolSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "bool" is updated.
type BoolSetting struct {
	common
	defaultValue bool
}

var _ Setting = &BoolSetting{}

// Get retrieves the bool value in the setting.
func (b *BoolSetting) Get(sv *Values) bool {
	if v, ok := sv.get(b.key); ok {
		return v.(bool)
	}
	return b.defaultValue
}

// Override changes the setting; used in tests.
func (b *BoolSetting) Override(sv *Values, v bool) {
	sv.set(b.key, v)
}

// Typ returns the short (1 char) string denoting the type of setting.
func (*BoolSetting) Typ() string { return "b" }

// EncodedDefault is part of the Setting interface.
func (b *BoolSetting) EncodedDefault() string {
	return strconv.FormatBool(b.defaultValue)
}

// Encoded is part of the Setting interface.
func (b *BoolSetting) Encoded(sv *Values) string {
	return strconv.FormatBool(b.Get(sv))
}

// Decode is part of the Setting interface.
func (b *BoolSetting) Decode(sv *Values, s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return errors.Wrapf(err, "setting %s", b.key)
	}
	sv.set(b.key, v)
	return nil
}

// RegisterBoolSetting defines a new setting with type bool.
func RegisterBoolSetting(key, desc string, defaultValue bool) *BoolSetting {
	setting := &BoolSetting{common: common{key: key}, defaultValue: defaultValue}
	register(key, desc, setting)
	return setting
}

// StringSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "string" is updated.
type StringSetting struct {
	common
	defaultValue string
	validateFn   func(string) error
}

var _ Setting = &StringSetting{}

// Get retrieves the string value in the setting.
func (s *StringSetting) Get(sv *Values) string {
	if v, ok := sv.get(s.key); ok {
		return v.(string)
	}
	return s.defaultValue
}

// Override changes the setting without validation; used in tests.
func (s *StringSetting) Override(sv *Values, v string) {
	sv.set(s.key, v)
}

// Typ returns the short (1 char) string denoting the type of setting.
func (*StringSetting) Typ() string { return "s" }

// EncodedDefault is part of the Setting interface.
func (s *StringSetting) EncodedDefault() string { return s.defaultValue }

// Encoded is part of the Setting interface.
func (s *StringSetting) Encoded(sv *Values) string { return s.Get(sv) }

// Decode is part of the Setting interface.
func (s *StringSetting) Decode(sv *Values, v string) error {
	if s.validateFn != nil {
		if err := s.validateFn(v); err != nil {
			return errors.Wrapf(err, "setting %s", s.key)
		}
	}
	sv.set(s.key, v)
	return nil
}

// RegisterStringSetting defines a new setting with type string.
func RegisterStringSetting(key, desc string, defaultValue string) *StringSetting {
	return RegisterValidatedStringSetting(key, desc, defaultValue, nil)
}

// RegisterValidatedStringSetting defines a new setting with type string with a
// validation function.
func RegisterValidatedStringSetting(
	key, desc string, defaultValue string, validateFn func(string) error,
) *StringSetting {
	if validateFn != nil {
		if err := validateFn(defaultValue); err != nil {
			panic(errors.Wrap(err, "invalid default"))
		}
	}
	setting := &StringSetting{
		common:       common{key: key},
		defaultValue: defaultValue,
		validateFn:   validateFn,
	}
	register(key, desc, setting)
	return setting
}
