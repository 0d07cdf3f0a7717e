/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package main

import (
	"os"

	"github.com/allbin/go-serial-terminal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
