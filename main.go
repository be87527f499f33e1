package main

import "github.com/mensylisir/xmism/cmd"

func main() {
	cmd.Execute()
}
