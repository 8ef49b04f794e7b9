// Package main provides the bootanim command line tool.
package main

import "github.com/maauso/bootanimation-api/internal/cli"

func main() {
	cli.Execute()
}
