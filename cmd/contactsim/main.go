// Command contactsim loads contact scenarios and drives them through the
// barrier contact form.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
