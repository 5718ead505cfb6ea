package main

import "github.com/jake-scott/avstudio/cmd"

func main() {
	cmd.Execute()
}
