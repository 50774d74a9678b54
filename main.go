package main

import "github.com/clubware/ms-go-memberships/cmd"

func main() {
	cmd.Execute()
}
