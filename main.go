package main

import "github.com/AustralianCyberSecurityCentre/azul-extdedup.git/cmd"

func main() {
	cmd.Execute()
}
