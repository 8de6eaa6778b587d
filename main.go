package main

import "streamcast/cmd"

func main() {
	cmd.Execute()
}
