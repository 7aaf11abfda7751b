package main

import "github.com/frahmantamala/claims-management/cmd"

func main() {
	cmd.Execute()
}
