package main

import "github.com/deploymenttheory/vfio-probe/cmd"

func main() {
	cmd.Execute()
}
