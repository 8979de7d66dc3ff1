// cmd/forumgrep/main.go
package main

import (
	"os"

	"github.com/law-makers/forumgrep/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
