package main

import "github.com/freekieb7/bytegate/cmd"

func main() {
	cmd.Execute()
}
