package main

import "github.com/ahsanj/local-log-analyzer/internal/cli"

func main() {
	cli.Execute()
}
