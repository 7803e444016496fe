package main

import "mythtv_control/internal/cli"

func main() {
	cli.Execute()
}
