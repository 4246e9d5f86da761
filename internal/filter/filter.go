// Package filter classifies instances as tagged or untagged.
package filter

import (
	"github.com/yairfalse/fleetvoice/pkg/instance"
)

// nameTag is the key AWS consoles use for an instance's display name.
const nameTag = "Name"

// IsUntagged reports whether an instance carries no identifying tags.
//
// An instance is untagged when it has no tags at all, or when its only tag
// is "Name" with an empty value. Anything else, including tags the provider
// returned without a key or value, counts as tagged so that odd shapes lead
// to inaction rather than termination.
func IsUntagged(inst instance.Instance) bool {
	if len(inst.Tags) == 0 {
		return true
	}

	if len(inst.Tags) != 1 {
		return false
	}

	tag := inst.Tags[0]
	if tag.Key == nil || tag.Value == nil {
		return false
	}
	return *tag.Key == nameTag && *tag.Value == ""
}

// UntaggedIDs returns the IDs of untagged instances in input order.
// Instances without an ID cannot be terminated and are skipped.
func UntaggedIDs(instances []instance.Instance) []string {
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		if inst.ID == "" {
			continue
		}
		if IsUntagged(inst) {
			ids = append(ids, inst.ID)
		}
	}
	return ids
}
