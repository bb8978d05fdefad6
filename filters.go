package main

import (
	"fmt"
	"strings"
)

// FilterConfig narrows the compartment set the collector visits. The
// enumerator still walks the whole tree so parent links stay
// resolvable; filters apply to collection only.
type FilterConfig struct {
	IncludeCompartments []string `yaml:"include_compartments"`
	ExcludeCompartments []string `yaml:"exclude_compartments"`
}

// ValidateFilterConfig validates the filter configuration.
func ValidateFilterConfig(filter FilterConfig) error {
	for _, ocid := range filter.IncludeCompartments {
		if !isValidCompartmentOCID(ocid) {
			return fmt.Errorf("invalid compartment OCID in include_compartments: %s", ocid)
		}
	}
	for _, ocid := range filter.ExcludeCompartments {
		if !isValidCompartmentOCID(ocid) {
			return fmt.Errorf("invalid compartment OCID in exclude_compartments: %s", ocid)
		}
	}
	return nil
}

// ApplyCompartmentFilter filters compartments against the allow and
// deny lists. The tenancy root passes an empty include list but is
// subject to exclusion like any other compartment.
func ApplyCompartmentFilter(compartments []Compartment, filter FilterConfig) []Compartment {
	if len(filter.IncludeCompartments) == 0 && len(filter.ExcludeCompartments) == 0 {
		return compartments
	}

	var filtered []Compartment
	for _, compartment := range compartments {
		if len(filter.IncludeCompartments) > 0 {
			if !stringInSlice(compartment.ID, filter.IncludeCompartments) {
				continue
			}
		}
		if stringInSlice(compartment.ID, filter.ExcludeCompartments) {
			continue
		}
		filtered = append(filtered, compartment)
	}

	return filtered
}

// isValidCompartmentOCID checks the OCID prefix for compartment or
// tenancy identifiers. Format: ocid1.<type>.<realm>..<unique_id>
func isValidCompartmentOCID(ocid string) bool {
	return strings.HasPrefix(ocid, "ocid1.compartment.") ||
		strings.HasPrefix(ocid, "ocid1.tenancy.")
}

// stringInSlice checks if a string exists in a slice.
func stringInSlice(str string, slice []string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// ParseCompartmentList parses a comma-separated string of compartment
// OCIDs.
func ParseCompartmentList(input string) []string {
	if input == "" {
		return nil
	}

	var result []string
	for _, ocid := range strings.Split(input, ",") {
		trimmed := strings.TrimSpace(ocid)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
