// SPDX-License-Identifier: MIT

package envipath

import "fmt"

// DefaultHost is the public enviPath instance. The host is configurable;
// the package paths below are fixed identifiers on any instance carrying
// the EAWAG data.
const DefaultHost = "https://envipath.org"

// Package identifies one enviPath data package.
type Package struct {
	Key  string
	Name string
	Path string // path below the instance host
}

// packageRegistry lists the EAWAG packages the pipeline knows about.
var packageRegistry = map[string]Package{
	"eawag_soil": {
		Key:  "eawag_soil",
		Name: "EAWAG_SOIL",
		Path: "/package/5882df9c-dae1-4d80-a40e-db4724271456",
	},
	"eawag_sludge": {
		Key:  "eawag_sludge",
		Name: "EAWAG_SLUDGE",
		Path: "/package/7932e576-03c7-4106-819d-fe80dc605b8a",
	},
	"eawag_bbd": {
		Key:  "eawag_bbd",
		Name: "EAWAG_BBD",
		Path: "/package/32de3cf4-e3e6-4168-956e-32fa5ddb0ce1",
	},
}

// LookupPackage resolves a package key from the registry.
func LookupPackage(key string) (Package, error) {
	pkg, ok := packageRegistry[key]
	if !ok {
		return Package{}, fmt.Errorf("%w: %q", ErrUnknownPackage, key)
	}
	return pkg, nil
}

// PackageKeys returns the known package keys.
func PackageKeys() []string {
	keys := make([]string, 0, len(packageRegistry))
	for k := range packageRegistry {
		keys = append(keys, k)
	}
	return keys
}
