// Package vault stores off-site copies of the run history.
package vault

import (
	"fmt"
	"strings"
)

// checkName rejects item names that could escape the vault's namespace.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid item name %q", name)
	}
	return nil
}
