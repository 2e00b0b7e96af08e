// main.go - Application entry point
package main

import "github.com/valpere/dem_to_vrt/cmd"

func main() {
	cmd.Execute()
}
