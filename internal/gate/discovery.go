package gate

import (
	"strings"

	mapset "github.com/deckarep/golang-set"

	"github.com/chaz8081/gatekeeper/internal/ble"
)

// Filter decides which advertisement is the gate device: an exact name
// match, or any configured service UUID in the advertisement
// (case-insensitive).
type Filter struct {
	name     string
	services mapset.Set
}

// NewFilter returns a filter for the device name and service UUIDs.
func NewFilter(name string, serviceUUIDs ...string) *Filter {
	services := mapset.NewThreadUnsafeSet()
	for _, u := range serviceUUIDs {
		services.Add(strings.ToLower(u))
	}
	return &Filter{name: name, services: services}
}

// Match reports whether adv is the gate device.
func (f *Filter) Match(adv ble.Advertisement) bool {
	if f.name != "" && adv.Name == f.name {
		return true
	}
	for _, u := range adv.ServiceUUIDs {
		if f.services.Contains(strings.ToLower(u)) {
			return true
		}
	}
	return false
}

// Select returns the first matching advertisement of a batch.
func (f *Filter) Select(advs []ble.Advertisement) (ble.Advertisement, bool) {
	for _, adv := range advs {
		if f.Match(adv) {
			return adv, true
		}
	}
	return ble.Advertisement{}, false
}
