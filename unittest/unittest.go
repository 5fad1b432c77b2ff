// Copyright (c) 2021-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package unittest contains helpers that are shared by the unit tests of the
// other packages.
package unittest

import (
	"reflect"

	"github.com/pkg/errors"
)

// TestGenericConstMap verifies that a map of human readable descriptions
// covers every value of an enum type. The enum values must be consecutive,
// start at zero, and end right before the provided last value.
func TestGenericConstMap(constMap interface{}, last uint64) error {
	if reflect.TypeOf(constMap).Kind() != reflect.Map {
		return errors.Errorf("not a map: %T", constMap)
	}
	val := reflect.ValueOf(constMap)

	missing := make(map[uint64]struct{}, last)
	for i := uint64(0); i < last; i++ {
		missing[i] = struct{}{}
	}
	for _, k := range val.MapKeys() {
		var key uint64
		switch k.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
			reflect.Uint64:
			key = k.Uint()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
			reflect.Int64:
			key = uint64(k.Int())
		default:
			return errors.Errorf("unsupported key type: %v", k.Kind())
		}
		if key >= last {
			return errors.Errorf("key %v is not below the last value %v",
				key, last)
		}
		delete(missing, key)
	}
	if len(missing) != 0 {
		return errors.Errorf("values without a human readable "+
			"description: %v", missing)
	}

	return nil
}

// CompareStructFieldCounts returns an error if the two provided structs do
// not have the same number of fields. The field types are not checked.
//
// This is used to catch a local type falling out of sync with the API type
// that it is converted to.
func CompareStructFieldCounts(struct1, struct2 interface{}) error {
	v1 := reflect.ValueOf(struct1)
	v2 := reflect.ValueOf(struct2)
	if v1.Kind() != reflect.Struct {
		return errors.Errorf("object 1 is not a struct")
	}
	if v2.Kind() != reflect.Struct {
		return errors.Errorf("object 2 is not a struct")
	}
	if v1.NumField() != v2.NumField() {
		return errors.Errorf("structs have a different number of "+
			"fields: struct 1 has %v fields, struct 2 has %v fields",
			v1.NumField(), v2.NumField())
	}
	return nil
}
