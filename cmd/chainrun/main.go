// Command chainrun runs declarative browser suites.
package main

import (
	"context"
)

func main() {
	gs := newGlobalState(context.Background())
	newRootCommand(gs).execute()
}
