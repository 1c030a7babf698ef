package main

import "github.com/LENAX/proc-estimator/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
