package main

import "github.com/inovacc/gitkeeper/cmd"

func main() {
	cmd.Execute()
}
