package main

import "github.com/foodscope/foodscope/cmd"

func main() {
	cmd.Execute()
}
