/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/allbin/go-serial-terminal/internal/tui/components"
)

// runList prints one path<TAB>pnpId<TAB>manufacturer line per port, or the
// styled table. A failed enumeration is reported but is not an error exit.
func runList(env *Env, table bool) error {
	ports, err := env.List()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Error listing serial ports: %v\n", err)
		return nil
	}

	if table {
		fmt.Fprint(env.Stdout, components.RenderPortTable(ports))
		return nil
	}

	for _, p := range ports {
		fmt.Fprintf(env.Stdout, "%s\t%s\t%s\n", p.Path, p.PnPID, p.Manufacturer)
	}
	return nil
}
