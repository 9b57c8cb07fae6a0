package convert

import "testing"

func TestConverterRoundTrip(t *testing.T) {
	if got, err := Int32Converter.ReadValue(Int32Converter.Convert(42)); err != nil || got != 42 {
		t.Fatalf("int32 round trip: got %v err %v", got, err)
	}
	if got, err := Float64Converter.ReadValue(Float64Converter.Convert(3.5)); err != nil || got != 3.5 {
		t.Fatalf("float64 round trip: got %v err %v", got, err)
	}
	if got, err := BoolConverter.ReadValue(BoolConverter.Convert(true)); err != nil || got != true {
		t.Fatalf("bool round trip: got %v err %v", got, err)
	}
	if got, err := StringConverter.ReadValue(StringConverter.Convert("hi")); err != nil || got != "hi" {
		t.Fatalf("string round trip: got %v err %v", got, err)
	}
}

type testMode string

const (
	testModeOn  testMode = "ON"
	testModeOff testMode = "OFF"
)

func TestEnumConverterRejectsUnknown(t *testing.T) {
	c := EnumConverter(testModeOn, testModeOff)
	if got, err := c.ReadValue(c.Convert(testModeOn)); err != nil || got != testModeOn {
		t.Fatalf("enum round trip: got %v err %v", got, err)
	}
	if _, err := c.ReadValue(c.Convert("BOGUS")); err == nil {
		t.Fatalf("expected error for unknown enum value")
	}
}

func TestBindingRegistryValidate(t *testing.T) {
	r := NewBindingRegistry()
	r.Register(BindingSpec{
		Key:   "modbus",
		Label: "Modbus register map",
		Validate: func(payload any) error {
			m, ok := payload.(map[string]any)
			if !ok {
				return errNotMap
			}
			if _, ok := m["register"]; !ok {
				return errNotMap
			}
			return nil
		},
	})
	if err := r.Validate(map[string]any{"modbus": map[string]any{"register": 40001}}); err != nil {
		t.Fatalf("expected valid binding, got %v", err)
	}
	if err := r.Validate(map[string]any{"modbus": "not a map"}); err == nil {
		t.Fatalf("expected invalid binding error")
	}
	if err := r.Validate(map[string]any{"unregistered-key": 1}); err != nil {
		t.Fatalf("unregistered keys should pass through, got %v", err)
	}
}

var errNotMap = errTestNotMap("not a map")

type errTestNotMap string

func (e errTestNotMap) Error() string { return string(e) }
