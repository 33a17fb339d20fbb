package gate

import (
	"testing"

	"gotest.tools/assert"

	"github.com/chaz8081/gatekeeper/internal/ble"
)

func TestFilterMatch(t *testing.T) {
	f := NewFilter("Gate", DefaultServiceUUID)

	tests := []struct {
		name string
		adv  ble.Advertisement
		want bool
	}{
		{"name only", ble.Advertisement{Name: "Gate"}, true},
		{"service only", ble.Advertisement{Name: "Other", ServiceUUIDs: []string{DefaultServiceUUID}}, true},
		{"service upper case", ble.Advertisement{ServiceUUIDs: []string{"12345678-1234-5678-1234-123456789ABC"}}, true},
		{"service among others", ble.Advertisement{ServiceUUIDs: []string{"0000180f-0000-1000-8000-00805f9b34fb", DefaultServiceUUID}}, true},
		{"name and service", ble.Advertisement{Name: "Gate", ServiceUUIDs: []string{DefaultServiceUUID}}, true},
		{"name differs in case", ble.Advertisement{Name: "gate"}, false},
		{"name prefix", ble.Advertisement{Name: "Gate2"}, false},
		{"other service", ble.Advertisement{Name: "Speaker", ServiceUUIDs: []string{"0000180f-0000-1000-8000-00805f9b34fb"}}, false},
		{"empty", ble.Advertisement{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, f.Match(tt.adv), tt.want)
		})
	}
}

func TestFilterEmptyNameMatchesServiceOnly(t *testing.T) {
	f := NewFilter("", DefaultServiceUUID)
	assert.Assert(t, !f.Match(ble.Advertisement{}))
	assert.Assert(t, f.Match(ble.Advertisement{ServiceUUIDs: []string{DefaultServiceUUID}}))
}

func TestFilterSelectFirst(t *testing.T) {
	f := NewFilter("Gate", DefaultServiceUUID)
	batch := []ble.Advertisement{
		{Peripheral: ble.Peripheral{ID: "a"}, Name: "Speaker"},
		{Peripheral: ble.Peripheral{ID: "b"}, ServiceUUIDs: []string{DefaultServiceUUID}},
		{Peripheral: ble.Peripheral{ID: "c"}, Name: "Gate"},
	}

	adv, ok := f.Select(batch)
	assert.Assert(t, ok)
	assert.Equal(t, adv.Peripheral.ID, "b")

	_, ok = f.Select(batch[:1])
	assert.Assert(t, !ok)
}
