package main

import "github.com/KaramelBytes/riskcluster-cli/cmd"

func main() {
	cmd.Execute()
}
