// Package instance defines the EC2 instance model used by fleetvoice.
package instance

// StateRunning is the only instance state fleetvoice acts on.
const StateRunning = "running"

// Instance is a compute instance as reported by the provider.
// It is fetched per turn and never cached.
type Instance struct {
	ID     string `json:"id"`     // Instance identifier (e.g., "i-abc123")
	Region string `json:"region"` // Provider region (e.g., "us-east-1")
	State  string `json:"state"`  // Instance state (e.g., "running")
	Tags   []Tag  `json:"tags"`   // Tags in provider order, nil when absent
}

// Tag is a key/value pair. Fields are pointers so a tag the provider
// returned without a key or value can be told apart from an empty string.
type Tag struct {
	Key   *string `json:"key"`
	Value *string `json:"value"`
}

// NewTag returns a tag with both fields set.
func NewTag(key, value string) Tag {
	return Tag{Key: &key, Value: &value}
}

// Running reports whether the instance is in the running state.
func (i Instance) Running() bool {
	return i.State == StateRunning
}

// IDs returns the identifiers of the given instances, in order.
func IDs(instances []Instance) []string {
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.ID)
	}
	return ids
}
