// Package main is the harvester binary.
package main

import "github.com/JakeFAU/bookharvest/cmd"

func main() {
	cmd.Execute()
}
