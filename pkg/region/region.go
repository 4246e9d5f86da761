// Package region maps spoken region names to AWS region identifiers.
package region

import "sort"

// Default is used for any spoken name the directory does not know.
const Default = "us-east-1"

var directory = map[string]string{
	"Oregon":     "us-west-2",
	"Virginia":   "us-east-1",
	"California": "us-west-1",
	"Seoul":      "ap-northeast-2",
	"Tokyo":      "ap-northeast-1",
	"Singapore":  "ap-southeast-1",
}

// Resolve returns the AWS region identifier for a spoken region name.
// Matching is exact; unknown and empty names resolve to Default.
func Resolve(spoken string) string {
	if id, ok := directory[spoken]; ok {
		return id
	}
	return Default
}

// Known reports whether the spoken name has an explicit mapping.
func Known(spoken string) bool {
	_, ok := directory[spoken]
	return ok
}

// Names returns the recognized spoken names, sorted.
func Names() []string {
	names := make([]string, 0, len(directory))
	for name := range directory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
