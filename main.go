package main

import "github.com/LiuAnBoy/591-rent-helper-server/cmd"

func main() {
	cmd.Execute()
}
