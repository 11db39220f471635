package main

import (
	"github.com/luma/keydir/cmd"
)

func main() {
	cmd.Execute()
}
